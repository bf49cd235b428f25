package session

import (
	"testing"

	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
)

func TestCanTransition_ValidPath(t *testing.T) {
	path := []domain.SessionStatus{
		domain.SessionCreated, domain.SessionAccepted, domain.SessionPrepared,
		domain.SessionActive, domain.SessionAgreed,
	}
	for i := 0; i < len(path)-1; i++ {
		if !CanTransition(path[i], path[i+1]) {
			t.Fatalf("expected %s -> %s to be permitted", path[i], path[i+1])
		}
	}
}

func TestCanTransition_TerminalHasNoOutgoingEdges(t *testing.T) {
	for _, terminal := range []domain.SessionStatus{
		domain.SessionAgreed, domain.SessionNoAgreement, domain.SessionFailed,
		domain.SessionSettled, domain.SessionRefunded, domain.SessionCancelled,
	} {
		if CanTransition(terminal, domain.SessionActive) {
			t.Fatalf("expected terminal state %s to have no outgoing edges", terminal)
		}
	}
}

func TestCanTransition_RejectsSkip(t *testing.T) {
	if CanTransition(domain.SessionCreated, domain.SessionActive) {
		t.Fatalf("expected created -> active to be rejected (must pass through accepted, prepared)")
	}
}

func TestAuthorizeAccept_ProposerCannotAcceptOwnSession(t *testing.T) {
	s := &domain.Session{ProposerAgentID: "agent-a"}
	err := AuthorizeAccept(Actor{AgentID: "agent-a"}, s)
	if err == nil {
		t.Fatalf("expected error when proposer accepts its own session")
	}
}

func TestAuthorizeAccept_BoundCounterpartyMismatch(t *testing.T) {
	s := &domain.Session{ProposerAgentID: "agent-a", CounterpartyAgentID: "agent-b"}
	if err := AuthorizeAccept(Actor{AgentID: "agent-c"}, s); err == nil {
		t.Fatalf("expected scope error for mismatched bound counterparty")
	}
	if err := AuthorizeAccept(Actor{AgentID: "agent-b"}, s); err != nil {
		t.Fatalf("expected bound counterparty to accept cleanly, got %v", err)
	}
}

func TestEvaluateStrictPolicy_PassesWhenNothingRequired(t *testing.T) {
	reasons := EvaluateStrictPolicy(StrictInputs{
		Proposer:     &domain.Agent{ID: "a"},
		Counterparty: &domain.Agent{ID: "b"},
		Snapshot:     policy.Snapshot{},
	})
	if len(reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", reasons)
	}
}

func TestEvaluateStrictPolicy_IndependenceViolation(t *testing.T) {
	reasons := EvaluateStrictPolicy(StrictInputs{
		Proposer:     &domain.Agent{ID: "a", PayoutAddress: "0xSAME"},
		Counterparty: &domain.Agent{ID: "b", PayoutAddress: "0xSAME"},
		Snapshot:     policy.Snapshot{RequireIndependentAgents: true},
	})
	found := false
	for _, r := range reasons {
		if r == "agents_not_independent_payout" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected agents_not_independent_payout in reasons, got %v", reasons)
	}
}

func TestEvaluateStrictPolicy_MissingParticipant(t *testing.T) {
	reasons := EvaluateStrictPolicy(StrictInputs{Proposer: &domain.Agent{ID: "a"}})
	if len(reasons) != 1 || reasons[0] != "participants_incomplete" {
		t.Fatalf("expected participants_incomplete, got %v", reasons)
	}
}
