package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = errors.New("store: not found")

// CreateAgent inserts a new agent row, enforcing id uniqueness by
// surfacing the sqlite UNIQUE constraint violation as
// apierr.CodeAgentIDConflict.
func (s *Store) CreateAgent(ctx context.Context, a *domain.Agent) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal agent metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (id, name, endpoint, api_key, payout_address, enabled, metadata, last_health_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Endpoint, a.APIKey, a.PayoutAddress, a.Enabled, string(meta),
		string(a.LastHealthStatus), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apierr.Validation(apierr.CodeAgentIDConflict, "agent id already registered")
		}
		return fmt.Errorf("store: insert agent: %w", err)
	}
	return nil
}

// GetAgent fetches one agent by id.
func (s *Store) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, endpoint, api_key, payout_address, enabled, metadata, last_health_status, created_at, updated_at
		FROM agents WHERE id = ?`, id)
	return scanAgent(row)
}

// UpdateAgent persists the mutable state of a (everything but id,
// createdAt and lastHealthStatus, which UpdateAgentHealth owns), used by
// the register/update endpoint's update path.
func (s *Store) UpdateAgent(ctx context.Context, a *domain.Agent) error {
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal agent metadata: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET name = ?, endpoint = ?, api_key = ?, payout_address = ?, enabled = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, a.Endpoint, a.APIKey, a.PayoutAddress, a.Enabled, string(meta), a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update agent: %w", err)
	}
	return requireRowAffected(res)
}

// GetAgentByAPIKey looks up the agent whose api_key matches key, used by
// the HTTP transport's bearer-token role resolution.
func (s *Store) GetAgentByAPIKey(ctx context.Context, key string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, endpoint, api_key, payout_address, enabled, metadata, last_health_status, created_at, updated_at
		FROM agents WHERE api_key = ?`, key)
	return scanAgent(row)
}

// ListAgents returns every registered agent ordered by id.
func (s *Store) ListAgents(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, endpoint, api_key, payout_address, enabled, metadata, last_health_status, created_at, updated_at
		FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list agents: %w", err)
	}
	defer rows.Close()

	var out []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateAgentHealth stamps an agent's last observed health status.
func (s *Store) UpdateAgentHealth(ctx context.Context, id string, health domain.AgentHealth, now time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE agents SET last_health_status = ?, updated_at = ? WHERE id = ?`,
		string(health), now, id)
	if err != nil {
		return fmt.Errorf("store: update agent health: %w", err)
	}
	return requireRowAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	var metaRaw, health string
	err := row.Scan(&a.ID, &a.Name, &a.Endpoint, &a.APIKey, &a.PayoutAddress, &a.Enabled,
		&metaRaw, &health, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan agent: %w", err)
	}
	if err := json.Unmarshal([]byte(metaRaw), &a.Metadata); err != nil {
		return nil, fmt.Errorf("store: decode agent metadata: %w", err)
	}
	a.LastHealthStatus = domain.AgentHealth(health)
	return &a, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
