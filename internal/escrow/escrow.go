// Package escrow implements the escrow deposit/settlement state machine:
// a simulated, off-chain ledger that tracks per-player deposits and
// drives session settlement to a terminal escrow state. No on-chain
// transaction is ever submitted — settle stamps a synthetic tx
// identifier rather than broadcasting a real one.
package escrow

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// Config is the escrow configuration carried in a session's
// terms["escrow"] map.
type Config struct {
	ContractAddress string
	TokenAddress    string
	AmountPerPlayer string // decimal-integer string, atomic units
	PlayerAAgentID  string
	PlayerBAgentID  string
}

// ParseConfig extracts and validates the escrow config from a session's
// terms map. ok is false when no escrow config is present (escrow is
// optional per session).
func ParseConfig(terms map[string]any) (Config, bool, error) {
	raw, present := terms["escrow"].(map[string]any)
	if !present {
		return Config{}, false, nil
	}
	cfg := Config{
		ContractAddress: str(raw["contractAddress"]),
		TokenAddress:    str(raw["tokenAddress"]),
		AmountPerPlayer: str(raw["amountPerPlayer"]),
		PlayerAAgentID:  str(raw["playerAAgentId"]),
		PlayerBAgentID:  str(raw["playerBAgentId"]),
	}
	if cfg.ContractAddress == "" {
		return Config{}, true, apierr.Validation(apierr.CodeInvalidRequest, "escrow config missing contractAddress")
	}
	if cfg.AmountPerPlayer == "" {
		return Config{}, true, apierr.Validation(apierr.CodeInvalidRequest, "escrow config missing amountPerPlayer")
	}
	if _, ok := new(big.Int).SetString(cfg.AmountPerPlayer, 10); !ok {
		return Config{}, true, apierr.Validation(apierr.CodeInvalidRequest, "escrow config amountPerPlayer is not a decimal integer")
	}
	return cfg, true, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// Prepare is idempotent: if escrow already exists for the session, it is
// returned unchanged. Otherwise a new row is created with status
// prepared, both deposit flags false, deriving player ids from the
// session's participants when the config left them blank.
func Prepare(existing *domain.Escrow, session *domain.Session, cfg Config, now time.Time) (*domain.Escrow, error) {
	if existing != nil {
		return existing, nil
	}

	playerA, playerB := cfg.PlayerAAgentID, cfg.PlayerBAgentID
	if playerA == "" {
		playerA = session.ProposerAgentID
	}
	if playerB == "" {
		playerB = session.CounterpartyAgentID
	}
	if playerA == "" || playerB == "" {
		return nil, apierr.Validation(apierr.CodeInvalidRequest, "escrow requires two bound participants")
	}

	return &domain.Escrow{
		SessionID:       session.ID,
		ContractAddress: cfg.ContractAddress,
		TokenAddress:    cfg.TokenAddress,
		StakeAmount:     cfg.AmountPerPlayer,
		Status:          domain.EscrowPrepared,
		PlayerAAgentID:  playerA,
		PlayerBAgentID:  playerB,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Deposit records a deposit claim from actorAgentID for amount
// (decimal-integer string, atomic units). The claim is accepted only
// when amount >= stakeAmount and actorAgentID matches one of the two
// bound players; the escrow then transitions per the combined deposit
// state: both ⇒ funded, one ⇒ funding_pending, none ⇒ prepared (unreached
// here since accepting a claim always sets at least one flag).
func Deposit(e *domain.Escrow, actorAgentID, amount string, now time.Time) (*domain.Escrow, error) {
	claimed, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return e, apierr.Validation(apierr.CodeInvalidRequest, "deposit amount is not a decimal integer")
	}
	stake, ok := new(big.Int).SetString(e.StakeAmount, 10)
	if !ok {
		return e, apierr.System(apierr.CodeInternalError, "escrow stake amount is malformed")
	}
	if claimed.Cmp(stake) < 0 {
		return e, apierr.Validation(apierr.CodeInvalidRequest, "deposit amount is below the required stake")
	}

	switch actorAgentID {
	case e.PlayerAAgentID:
		e.PlayerADeposited = true
	case e.PlayerBAgentID:
		e.PlayerBDeposited = true
	default:
		return e, apierr.Scope(apierr.CodeActorScopeViolation, "deposit must come from a bound escrow player")
	}

	e.Status = statusFromDeposits(e.PlayerADeposited, e.PlayerBDeposited)
	e.UpdatedAt = now
	return e, nil
}

func statusFromDeposits(a, b bool) domain.EscrowStatus {
	switch {
	case a && b:
		return domain.EscrowFunded
	case a || b:
		return domain.EscrowFundingPending
	default:
		return domain.EscrowPrepared
	}
}

// SettleOutcome is the per-call result of Settle, used both by the
// synchronous HTTP handler and the automation tick's aggregate counts.
type SettleOutcome string

const (
	SettleSettled         SettleOutcome = "settled"
	SettleRefunded        SettleOutcome = "refunded"
	SettlePending         SettleOutcome = "pending"
	SettleAlreadyFinal    SettleOutcome = "already_finalized"
	SettleSessionNotFinal SettleOutcome = "session_not_final"
)

// Settle dispatches on the session's status:
//   - agreed + not funded: settlement_pending, increments
//     settlementAttempts, stamps lastSettlementError=funding_pending.
//   - agreed + funded: settled, stamping a tx identifier if none recorded.
//   - no_agreement or failed: refunded.
//   - already settled/refunded: no-op already_finalized.
//   - any other (non-final) session status: no-op session_not_final.
func Settle(e *domain.Escrow, session *domain.Session, now time.Time) SettleOutcome {
	if e.Status.IsFinal() {
		return SettleAlreadyFinal
	}

	switch session.Status {
	case domain.SessionAgreed:
		if e.Status != domain.EscrowFunded {
			e.Status = domain.EscrowSettlementPending
			e.SettlementAttempts++
			e.LastSettlementError = "funding_pending"
			e.LastSettlementAt = now
			e.UpdatedAt = now
			return SettlePending
		}
		e.Status = domain.EscrowSettled
		if e.TxHash == "" {
			e.TxHash = syntheticTxHash()
		}
		e.LastSettlementError = ""
		e.LastSettlementAt = now
		e.UpdatedAt = now
		return SettleSettled
	case domain.SessionNoAgreement, domain.SessionFailed:
		e.Status = domain.EscrowRefunded
		if e.TxHash == "" {
			e.TxHash = syntheticTxHash()
		}
		e.LastSettlementAt = now
		e.UpdatedAt = now
		return SettleRefunded
	default:
		return SettleSessionNotFinal
	}
}

func syntheticTxHash() string {
	return fmt.Sprintf("0xsim%s", uuid.NewString())
}
