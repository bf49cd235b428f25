package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/escrow"
	"github.com/molt-labs/molt-negotiation/internal/session"
	"github.com/molt-labs/molt-negotiation/internal/store"
)

func (s *Server) handleEscrowPrepare(w http.ResponseWriter, r *http.Request) {
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

	cfg, present, err := escrow.ParseConfig(sess.Terms)
	if err != nil {
		writeError(w, err)
		return
	}
	if !present {
		writeError(w, apierr.Validation(apierr.CodeInvalidRequest, "session has no escrow configuration"))
		return
	}

	existing, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			writeError(w, err)
			return
		}
		existing = nil
	}

	now := time.Now().UTC()
	e, err := escrow.Prepare(existing, sess, cfg, now)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		if err := s.store.CreateEscrow(ctx, e); err != nil {
			writeError(w, err)
			return
		}
	}
	writeData(w, http.StatusOK, e)
}

func (s *Server) handleEscrowStatus(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.GetEscrow(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, e)
}

type escrowDepositRequest struct {
	AgentID string `json:"agentId"`
	Amount  string `json:"amount"`
}

func (s *Server) handleEscrowDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	var req escrowDepositRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	actor := actorFor(r)
	depositingAgentID := req.AgentID
	if depositingAgentID == "" {
		depositingAgentID = actor.AgentID
	}
	if !actor.Privileged && depositingAgentID != actor.AgentID {
		writeError(w, apierr.Scope(apierr.CodeActorScopeViolation, "deposit must be claimed by the depositing agent"))
		return
	}
	if err := session.AuthorizeParticipant(actor, sess); err != nil {
		writeError(w, err)
		return
	}

	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := escrow.Deposit(e, depositingAgentID, req.Amount, time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.UpdateEscrow(ctx, updated); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}

func (s *Server) handleEscrowSettle(w http.ResponseWriter, r *http.Request) {
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

	e, err := s.store.GetEscrow(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	outcome := escrow.Settle(e, sess, time.Now().UTC())
	if err := s.store.UpdateEscrow(ctx, e); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"escrow": e, "outcome": outcome})
}
