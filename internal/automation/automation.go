// Package automation implements the background escrow reconciliation
// loop: a single task tied to process lifetime that periodically
// re-drives Settle on every non-final escrow.
package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/escrow"
)

// EscrowStore is the subset of store.Store the loop and the on-demand
// tick handler depend on.
type EscrowStore interface {
	ListEscrowsByStatus(ctx context.Context, statuses []domain.EscrowStatus) ([]*domain.Escrow, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	UpdateEscrow(ctx context.Context, e *domain.Escrow) error
}

var scannedStatuses = []domain.EscrowStatus{
	domain.EscrowPrepared,
	domain.EscrowFundingPending,
	domain.EscrowFunded,
	domain.EscrowSettlementPending,
	domain.EscrowRefundPending,
}

// Loop periodically scans and settles every non-final escrow.
type Loop struct {
	store    EscrowStore
	interval time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	lastTick TickResult
	ticks    int64
}

// New creates a Loop that ticks every interval (default 15s when <= 0).
func New(store EscrowStore, interval time.Duration, log *slog.Logger) *Loop {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{store: store, interval: interval, log: log}
}

// TickResult aggregates the outcome counts of a single tick, used both by
// the status endpoint and the operator-triggered tick endpoint.
type TickResult struct {
	Scanned int            `json:"scanned"`
	Counts  map[string]int `json:"counts"`
	RanAt   time.Time      `json:"ranAt"`
}

// Run blocks, ticking every l.interval, until ctx is cancelled. Each
// tick's failures are logged and ignored; the loop never holds a lock
// across a tick and never returns an error.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := l.Tick(ctx)
			if err != nil {
				l.log.Error("automation tick failed", "error", err)
				continue
			}
			l.log.Info("automation tick complete", "scanned", result.Scanned, "counts", result.Counts)
		}
	}
}

// Tick runs one reconciliation pass immediately, independent of the
// ticker — used both internally and by the operator-triggered
// POST /automation/tick endpoint. It is idempotent: settled and refunded
// escrows are outside scannedStatuses, so a repeat tick leaves them
// untouched and they appear in neither Scanned nor any outcome count.
func (l *Loop) Tick(ctx context.Context) (TickResult, error) {
	escrows, err := l.store.ListEscrowsByStatus(ctx, scannedStatuses)
	if err != nil {
		return TickResult{}, err
	}

	now := time.Now()
	counts := map[string]int{}
	for _, e := range escrows {
		session, err := l.store.GetSession(ctx, e.SessionID)
		if err != nil {
			l.log.Warn("automation tick: session lookup failed", "session", e.SessionID, "error", err)
			continue
		}
		outcome := escrow.Settle(e, session, now)
		counts[string(outcome)]++
		if err := l.store.UpdateEscrow(ctx, e); err != nil {
			l.log.Warn("automation tick: update escrow failed", "session", e.SessionID, "error", err)
		}
	}

	result := TickResult{Scanned: len(escrows), Counts: counts, RanAt: now}
	l.mu.Lock()
	l.lastTick = result
	l.ticks++
	l.mu.Unlock()
	return result, nil
}

// Status reports the loop's configuration and the outcome of its most
// recent tick, for GET /automation/status.
type Status struct {
	IntervalMs int64      `json:"intervalMs"`
	Ticks      int64      `json:"ticks"`
	LastTick   TickResult `json:"lastTick"`
}

func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		IntervalMs: l.interval.Milliseconds(),
		Ticks:      l.ticks,
		LastTick:   l.lastTick,
	}
}
