package session

import (
	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
)

// StartInputs carries everything the start action needs beyond the
// session record itself: the bound escrow (nil when the session has no
// escrow configured) and the strict-policy evaluation inputs.
type StartInputs struct {
	Actor        Actor
	Session      *domain.Session
	Escrow       *domain.Escrow // nil if no escrow is configured for this session
	Proposer     *domain.Agent
	Counterparty *domain.Agent
	Snapshot     policy.Snapshot
}

// AuthorizeStart enforces the full start-action precondition: the
// session must already be prepared (accepted or created is
// prepare_required_before_start), the actor must be a participant, the
// strict-session policy must pass, and any configured escrow must be
// funded.
func AuthorizeStart(in StartInputs) error {
	if err := AuthorizeParticipant(in.Actor, in.Session); err != nil {
		return err
	}

	switch in.Session.Status {
	case domain.SessionAccepted, domain.SessionCreated:
		return apierr.Validation(apierr.CodePrepareRequiredBeforeStart,
			"session must be prepared before it can be started")
	case domain.SessionPrepared:
		// proceed
	default:
		if _, err := Transition(in.Session.Status, domain.SessionActive); err != nil {
			return err
		}
	}

	if err := CheckStrictPolicy(StrictInputs{
		Proposer:     in.Proposer,
		Counterparty: in.Counterparty,
		Snapshot:     in.Snapshot,
	}); err != nil {
		return err
	}

	if in.Escrow != nil && in.Escrow.Status != domain.EscrowFunded {
		return apierr.Validation(apierr.CodeFundingPending,
			"escrow must be funded before the session can be started")
	}

	return nil
}
