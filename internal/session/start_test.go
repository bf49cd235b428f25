package session

import (
	"errors"
	"testing"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
)

func baseStartInputs() StartInputs {
	s := &domain.Session{
		ID:                  "sess-1",
		Status:              domain.SessionPrepared,
		ProposerAgentID:     "agent-a",
		CounterpartyAgentID: "agent-b",
	}
	return StartInputs{
		Actor:        Actor{AgentID: "agent-a"},
		Session:      s,
		Proposer:     &domain.Agent{ID: "agent-a"},
		Counterparty: &domain.Agent{ID: "agent-b"},
		Snapshot:     policy.Snapshot{},
	}
}

func TestAuthorizeStart_SucceedsFromPrepared(t *testing.T) {
	if err := AuthorizeStart(baseStartInputs()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestAuthorizeStart_RejectsFromAccepted(t *testing.T) {
	in := baseStartInputs()
	in.Session.Status = domain.SessionAccepted
	err := AuthorizeStart(in)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodePrepareRequiredBeforeStart {
		t.Fatalf("expected prepare_required_before_start, got %v", err)
	}
}

func TestAuthorizeStart_RejectsFromCreated(t *testing.T) {
	in := baseStartInputs()
	in.Session.Status = domain.SessionCreated
	err := AuthorizeStart(in)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodePrepareRequiredBeforeStart {
		t.Fatalf("expected prepare_required_before_start, got %v", err)
	}
}

func TestAuthorizeStart_NonParticipantRejected(t *testing.T) {
	in := baseStartInputs()
	in.Actor = Actor{AgentID: "agent-stranger"}
	err := AuthorizeStart(in)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodeActorScopeViolation {
		t.Fatalf("expected actor_scope_violation, got %v", err)
	}
}

func TestAuthorizeStart_EscrowNotFundedRejected(t *testing.T) {
	in := baseStartInputs()
	in.Escrow = &domain.Escrow{SessionID: "sess-1", Status: domain.EscrowFundingPending}
	err := AuthorizeStart(in)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodeFundingPending {
		t.Fatalf("expected funding_pending, got %v", err)
	}
}

func TestAuthorizeStart_EscrowFundedPasses(t *testing.T) {
	in := baseStartInputs()
	in.Escrow = &domain.Escrow{SessionID: "sess-1", Status: domain.EscrowFunded}
	if err := AuthorizeStart(in); err != nil {
		t.Fatalf("expected success with funded escrow, got %v", err)
	}
}

func TestAuthorizeStart_StrictPolicyFailurePropagates(t *testing.T) {
	in := baseStartInputs()
	in.Snapshot.RequireIndependentAgents = true
	in.Proposer.PayoutAddress = "0xSAME"
	in.Counterparty.PayoutAddress = "0xSAME"
	err := AuthorizeStart(in)
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) || apiErr.Code != apierr.CodeStrictPolicyFailed {
		t.Fatalf("expected strict_policy_failed, got %v", err)
	}
}
