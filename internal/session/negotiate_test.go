package session

import (
	"testing"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
)

func TestAuthorizeNegotiate_PassesWhenActiveAndParticipant(t *testing.T) {
	s := &domain.Session{ID: "s1", Status: domain.SessionActive, ProposerAgentID: "a", CounterpartyAgentID: "b"}
	proposer := &domain.Agent{ID: "a", Endpoint: "https://a.example.com"}
	counterparty := &domain.Agent{ID: "b", Endpoint: "https://b.example.com"}

	err := AuthorizeNegotiate(NegotiateInputs{
		Actor: Actor{AgentID: "a"}, Session: s, Proposer: proposer, Counterparty: counterparty,
		Snapshot: policy.Snapshot{},
	})
	if err != nil {
		t.Fatalf("AuthorizeNegotiate: %v", err)
	}
}

func TestAuthorizeNegotiate_RejectsNonParticipant(t *testing.T) {
	s := &domain.Session{ID: "s1", Status: domain.SessionActive, ProposerAgentID: "a", CounterpartyAgentID: "b"}
	err := AuthorizeNegotiate(NegotiateInputs{
		Actor: Actor{AgentID: "intruder"}, Session: s,
		Proposer: &domain.Agent{ID: "a"}, Counterparty: &domain.Agent{ID: "b"},
	})
	if apiErr, ok := err.(*apierr.Error); !ok || apiErr.Code != apierr.CodeActorScopeViolation {
		t.Fatalf("expected actor_scope_violation, got %v", err)
	}
}

func TestAuthorizeNegotiate_RejectsWhenNotActive(t *testing.T) {
	s := &domain.Session{ID: "s1", Status: domain.SessionPrepared, ProposerAgentID: "a", CounterpartyAgentID: "b"}
	err := AuthorizeNegotiate(NegotiateInputs{
		Actor: Actor{AgentID: "a"}, Session: s,
		Proposer: &domain.Agent{ID: "a"}, Counterparty: &domain.Agent{ID: "b"},
	})
	if apiErr, ok := err.(*apierr.Error); !ok || apiErr.Code != apierr.CodeNegotiationNotActive {
		t.Fatalf("expected negotiation_not_active, got %v", err)
	}
}

func TestAuthorizeNegotiate_PropagatesStrictPolicyFailure(t *testing.T) {
	s := &domain.Session{ID: "s1", Status: domain.SessionActive, ProposerAgentID: "a", CounterpartyAgentID: "b"}
	err := AuthorizeNegotiate(NegotiateInputs{
		Actor: Actor{AgentID: "a"}, Session: s,
		Proposer: &domain.Agent{ID: "a", Endpoint: "not-a-url"}, Counterparty: &domain.Agent{ID: "b"},
		Snapshot: policy.Snapshot{RequireEndpointMode: true},
	})
	if apiErr, ok := err.(*apierr.Error); !ok || apiErr.Code != apierr.CodeStrictPolicyFailed {
		t.Fatalf("expected strict_policy_failed, got %v", err)
	}
}
