// Package session implements the session lifecycle state machine (spec
// §4.G): permitted transitions, actor-scope gating, and the strict-session
// policy shared with the negotiation engine.
package session

import (
	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// edges is the permitted transition graph. A pair not present here is
// rejected with invalid_state_transition.
var edges = map[domain.SessionStatus][]domain.SessionStatus{
	domain.SessionCreated:  {domain.SessionAccepted},
	domain.SessionAccepted: {domain.SessionPrepared},
	domain.SessionPrepared: {domain.SessionActive},
	domain.SessionActive:   {domain.SessionAgreed, domain.SessionNoAgreement, domain.SessionFailed},
}

// CanTransition reports whether from->to is a permitted edge. Terminal
// states (agreed, no_agreement, failed, settled, refunded, cancelled)
// never appear as a `from` key and so have no outgoing edges.
func CanTransition(from, to domain.SessionStatus) bool {
	for _, candidate := range edges[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the new status, or an
// invalid_state_transition error.
func Transition(from, to domain.SessionStatus) (domain.SessionStatus, error) {
	if !CanTransition(from, to) {
		return from, apierr.Validation(apierr.CodeInvalidStateTransition,
			"cannot transition session from "+string(from)+" to "+string(to))
	}
	return to, nil
}
