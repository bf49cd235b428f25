package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/attestation"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
	"github.com/molt-labs/molt-negotiation/internal/session"
)

// recordAttestation builds and persists the session's attestation once it
// reaches a terminal status, re-evaluating the strict policy at the same
// moment so strictVerified reflects the configuration active at
// finalization rather than at session creation.
func (s *Server) recordAttestation(ctx context.Context, sess *domain.Session, snap policy.Snapshot) error {
	if !sess.Status.IsTerminal() {
		return nil
	}

	proposer, err := s.store.GetAgent(ctx, sess.ProposerAgentID)
	if err != nil {
		return err
	}
	var counterparty *domain.Agent
	if sess.CounterpartyAgentID != "" {
		counterparty, err = s.store.GetAgent(ctx, sess.CounterpartyAgentID)
		if err != nil {
			return err
		}
	}

	reasons := session.EvaluateStrictPolicy(session.StrictInputs{
		Proposer: proposer, Counterparty: counterparty, Snapshot: snap,
	})
	strictVerified := len(reasons) == 0

	turns, err := s.store.ListTurns(ctx, sess.ID)
	if err != nil {
		return err
	}

	executionMode := "simple"
	if strictVerified {
		executionMode = "strict"
	}

	att, err := s.signer.Build(attestation.BuildInputs{
		Session: sess, Turns: turns, PolicySnapshot: snap,
		ExecutionMode: executionMode, StrictVerified: strictVerified, StrictReasons: reasons,
		Now: time.Now().UTC(),
	})
	if err != nil {
		return apierr.Crypto(apierr.CodeInternalError, "failed to build attestation: "+err.Error())
	}
	return s.store.CreateAttestation(ctx, att)
}

func (s *Server) handleGetAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	att, err := s.store.GetAttestation(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	turns, err := s.store.ListTurns(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	verifyErr := attestation.Verify(attestation.VerifyInputs{
		Attestation: att, Session: sess, Turns: turns, ConfiguredSigner: s.configuredSigner,
	})

	resp := map[string]any{"attestation": att, "valid": verifyErr == nil}
	if verifyErr != nil {
		if ve, ok := verifyErr.(*attestation.VerifyError); ok {
			resp["reasons"] = ve.Reasons
		} else {
			resp["reasons"] = []string{verifyErr.Error()}
		}
	}
	writeData(w, http.StatusOK, resp)
}

// handleRegenerateAttestation rebuilds the attestation on demand, e.g.
// after an operator adjudication changed the session's terminal status.
func (s *Server) handleRegenerateAttestation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := session.AuthorizeParticipant(actorFor(r), sess); err != nil {
		writeError(w, err)
		return
	}
	if !sess.Status.IsTerminal() {
		writeError(w, apierr.Validation(apierr.CodeInvalidStateTransition, "session must be terminal to produce an attestation"))
		return
	}
	if err := s.recordAttestation(ctx, sess, policy.Resolve()); err != nil {
		writeError(w, err)
		return
	}
	att, err := s.store.GetAttestation(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, att)
}
