package escrow

import (
	"testing"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/domain"
)

var now = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestParseConfig_Absent(t *testing.T) {
	cfg, present, err := ParseConfig(map[string]any{})
	if err != nil || present {
		t.Fatalf("expected absent config with no error, got cfg=%v present=%v err=%v", cfg, present, err)
	}
}

func TestParseConfig_MissingAmount(t *testing.T) {
	_, _, err := ParseConfig(map[string]any{"escrow": map[string]any{"contractAddress": "0xabc"}})
	if err == nil {
		t.Fatalf("expected error for missing amountPerPlayer")
	}
}

func TestPrepare_IsIdempotent(t *testing.T) {
	session := &domain.Session{ID: "s1", ProposerAgentID: "a", CounterpartyAgentID: "b"}
	cfg := Config{ContractAddress: "0xabc", AmountPerPlayer: "100"}

	first, err := Prepare(nil, session, cfg, now)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if first.Status != domain.EscrowPrepared || first.PlayerADeposited || first.PlayerBDeposited {
		t.Fatalf("unexpected initial escrow: %+v", first)
	}

	second, err := Prepare(first, session, cfg, now)
	if err != nil {
		t.Fatalf("Prepare (idempotent): %v", err)
	}
	if second != first {
		t.Fatalf("expected Prepare to return the existing escrow unchanged")
	}
}

func TestPrepare_DerivesPlayersFromParticipants(t *testing.T) {
	session := &domain.Session{ID: "s1", ProposerAgentID: "agent-a", CounterpartyAgentID: "agent-b"}
	e, err := Prepare(nil, session, Config{ContractAddress: "0xabc", AmountPerPlayer: "100"}, now)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if e.PlayerAAgentID != "agent-a" || e.PlayerBAgentID != "agent-b" {
		t.Fatalf("expected derived players, got %+v", e)
	}
}

func baseEscrow() *domain.Escrow {
	return &domain.Escrow{
		SessionID:      "s1",
		StakeAmount:    "100",
		Status:         domain.EscrowPrepared,
		PlayerAAgentID: "agent-a",
		PlayerBAgentID: "agent-b",
	}
}

func TestDeposit_BelowStakeRejected(t *testing.T) {
	e := baseEscrow()
	_, err := Deposit(e, "agent-a", "50", now)
	if err == nil {
		t.Fatalf("expected rejection for below-stake deposit")
	}
}

func TestDeposit_UnboundActorRejected(t *testing.T) {
	e := baseEscrow()
	_, err := Deposit(e, "agent-stranger", "100", now)
	if err == nil {
		t.Fatalf("expected rejection for unbound actor")
	}
}

func TestDeposit_SingleThenBothFundsEscrow(t *testing.T) {
	e := baseEscrow()
	e, err := Deposit(e, "agent-a", "100", now)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if e.Status != domain.EscrowFundingPending {
		t.Fatalf("expected funding_pending after one deposit, got %s", e.Status)
	}

	e, err = Deposit(e, "agent-b", "150", now)
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if e.Status != domain.EscrowFunded {
		t.Fatalf("expected funded after both deposits, got %s", e.Status)
	}
}

func TestSettle_AgreedNotFundedIsPending(t *testing.T) {
	e := baseEscrow()
	session := &domain.Session{Status: domain.SessionAgreed}
	outcome := Settle(e, session, now)
	if outcome != SettlePending {
		t.Fatalf("expected pending, got %s", outcome)
	}
	if e.Status != domain.EscrowSettlementPending || e.SettlementAttempts != 1 {
		t.Fatalf("unexpected escrow state: %+v", e)
	}
}

func TestSettle_AgreedFundedSettles(t *testing.T) {
	e := baseEscrow()
	e.Status = domain.EscrowFunded
	session := &domain.Session{Status: domain.SessionAgreed}
	outcome := Settle(e, session, now)
	if outcome != SettleSettled || e.Status != domain.EscrowSettled || e.TxHash == "" {
		t.Fatalf("expected settled with a tx hash, got outcome=%s escrow=%+v", outcome, e)
	}
}

func TestSettle_NoAgreementRefunds(t *testing.T) {
	e := baseEscrow()
	session := &domain.Session{Status: domain.SessionNoAgreement}
	outcome := Settle(e, session, now)
	if outcome != SettleRefunded || e.Status != domain.EscrowRefunded {
		t.Fatalf("expected refunded, got outcome=%s escrow=%+v", outcome, e)
	}
}

func TestSettle_AlreadyFinalIsNoop(t *testing.T) {
	e := baseEscrow()
	e.Status = domain.EscrowSettled
	session := &domain.Session{Status: domain.SessionAgreed}
	outcome := Settle(e, session, now)
	if outcome != SettleAlreadyFinal {
		t.Fatalf("expected already_finalized, got %s", outcome)
	}
}

func TestSettle_NonFinalSessionIsNoop(t *testing.T) {
	e := baseEscrow()
	session := &domain.Session{Status: domain.SessionActive}
	outcome := Settle(e, session, now)
	if outcome != SettleSessionNotFinal {
		t.Fatalf("expected session_not_final, got %s", outcome)
	}
}
