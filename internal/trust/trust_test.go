package trust

import (
	"testing"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/attestation"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

func trustedView(t *testing.T, status domain.SessionStatus, proposer, counterparty string) SessionView {
	t.Helper()
	session := &domain.Session{
		ID:                  "sess-" + proposer + "-" + counterparty,
		Status:              status,
		ProposerAgentID:     proposer,
		CounterpartyAgentID: counterparty,
	}
	turns := []domain.SessionTurn{{SessionID: session.ID, Turn: 1, Status: domain.TurnAgreed}}

	signer, err := attestation.KeyFromConfig("", false, true)
	if err != nil {
		t.Fatalf("KeyFromConfig: %v", err)
	}
	att, err := signer.Build(attestation.BuildInputs{
		Session:        session,
		Turns:          turns,
		PolicySnapshot: map[string]any{},
		ExecutionMode:  "strict",
		StrictVerified: true,
		Now:            time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return SessionView{Session: session, Turns: turns, Attestation: att}
}

func TestIsTrusted_NonTerminalIsFalse(t *testing.T) {
	v := trustedView(t, domain.SessionAgreed, "a", "b")
	v.Session.Status = domain.SessionActive
	if IsTrusted(v) {
		t.Fatalf("expected non-terminal session to be untrusted")
	}
}

func TestIsTrusted_ValidAttestationIsTrue(t *testing.T) {
	v := trustedView(t, domain.SessionAgreed, "a", "b")
	if !IsTrusted(v) {
		t.Fatalf("expected a valid attestation to be trusted")
	}
}

func TestIsTrusted_MissingAttestationIsFalse(t *testing.T) {
	v := trustedView(t, domain.SessionAgreed, "a", "b")
	v.Attestation = nil
	if IsTrusted(v) {
		t.Fatalf("expected missing attestation to be untrusted")
	}
}

func TestAggregate_SortsByTrustScoreThenAgreementsThenID(t *testing.T) {
	views := []SessionView{
		trustedView(t, domain.SessionAgreed, "agent-a", "agent-b"),
		trustedView(t, domain.SessionAgreed, "agent-a", "agent-c"),
		trustedView(t, domain.SessionNoAgreement, "agent-b", "agent-c"),
	}
	counters := Aggregate(views)
	if len(counters) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(counters))
	}
	if counters[0].AgentID != "agent-a" {
		t.Fatalf("expected agent-a to lead with 2 agreements, got %+v", counters)
	}
	if counters[0].TrustScore() != 6 {
		t.Fatalf("expected trust score 6 for agent-a, got %d", counters[0].TrustScore())
	}
}
