package session

import (
	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// Actor identifies the caller of a session action.
type Actor struct {
	AgentID    string
	Privileged bool // operator or admin role
}

func scopeErr(message string) error {
	return apierr.Scope(apierr.CodeActorScopeViolation, message)
}

// AuthorizeCreate enforces: actor must equal proposerAgentId unless
// privileged.
func AuthorizeCreate(actor Actor, proposerAgentID string) error {
	if actor.Privileged || actor.AgentID == proposerAgentID {
		return nil
	}
	return scopeErr("actor must be the proposing agent")
}

// AuthorizeAccept enforces: actor must be the acceptor, acceptor != proposer,
// and if counterpartyAgentId was pre-bound, it must equal actor.
func AuthorizeAccept(actor Actor, s *domain.Session) error {
	if actor.AgentID == s.ProposerAgentID {
		return apierr.Validation(apierr.CodeInvalidRequest, "proposer cannot accept its own session")
	}
	if s.CounterpartyAgentID != "" && s.CounterpartyAgentID != actor.AgentID {
		return scopeErr("session is bound to a different counterparty")
	}
	return nil
}

// AuthorizeParticipant enforces: actor must be a participant unless
// privileged. Used for prepare/start/negotiate/private-inputs and the
// escrow and attestation actions; adjudicate uses AuthorizeAdjudicate.
func AuthorizeParticipant(actor Actor, s *domain.Session) error {
	if actor.Privileged || s.IsParticipant(actor.AgentID) {
		return nil
	}
	return scopeErr("actor must be a session participant")
}

// AuthorizePrivateInputs enforces participant scope plus: the target
// agentId in the upload must equal the actor.
func AuthorizePrivateInputs(actor Actor, s *domain.Session, targetAgentID string) error {
	if err := AuthorizeParticipant(actor, s); err != nil {
		return err
	}
	if !actor.Privileged && targetAgentID != actor.AgentID {
		return scopeErr("private inputs must be uploaded by the owning agent")
	}
	return nil
}

// AuthorizeAdjudicate requires a privileged (operator/admin) actor.
func AuthorizeAdjudicate(actor Actor) error {
	if actor.Privileged {
		return nil
	}
	return scopeErr("adjudication requires an operator or admin role")
}
