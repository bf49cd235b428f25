package session

import (
	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
)

// NegotiateInputs mirrors StartInputs for the negotiate action: actor
// scope plus the strict-session policy are both re-checked at negotiate
// time, since policy configuration or agent metadata may have changed
// since start.
type NegotiateInputs struct {
	Actor        Actor
	Session      *domain.Session
	Proposer     *domain.Agent
	Counterparty *domain.Agent
	Snapshot     policy.Snapshot
}

// AuthorizeNegotiate enforces participant scope, that the session is
// active, and that the strict-session policy still passes.
func AuthorizeNegotiate(in NegotiateInputs) error {
	if err := AuthorizeParticipant(in.Actor, in.Session); err != nil {
		return err
	}
	if in.Session.Status != domain.SessionActive {
		return apierr.Validation(apierr.CodeNegotiationNotActive, "session must be active to negotiate")
	}
	return CheckStrictPolicy(StrictInputs{
		Proposer:     in.Proposer,
		Counterparty: in.Counterparty,
		Snapshot:     in.Snapshot,
	})
}
