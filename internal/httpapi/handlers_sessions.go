package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/negotiation"
	"github.com/molt-labs/molt-negotiation/internal/policy"
	"github.com/molt-labs/molt-negotiation/internal/privacy"
	"github.com/molt-labs/molt-negotiation/internal/session"
)

func actorFor(r *http.Request) session.Actor {
	caller := callerFrom(r)
	agentID, privileged := actorFromCaller(caller)
	return session.Actor{AgentID: agentID, Privileged: privileged}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if status := r.URL.Query().Get("status"); status != "" {
		sessions, err := s.store.ListSessionsByStatus(ctx, []domain.SessionStatus{domain.SessionStatus(status)})
		if err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, sessions)
		return
	}
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sessions)
}

type createSessionRequest struct {
	Topic               string         `json:"topic"`
	ProposerAgentID     string         `json:"proposerAgentId"`
	CounterpartyAgentID string         `json:"counterpartyAgentId"`
	Terms               map[string]any `json:"terms"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.ProposerAgentID) == "" {
		writeError(w, apierr.Validation(apierr.CodeInvalidRequest, "proposerAgentId is required"))
		return
	}
	if err := session.AuthorizeCreate(actorFor(r), req.ProposerAgentID); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetAgent(ctx, req.ProposerAgentID); err != nil {
		writeError(w, apierrNotFound("proposer agent"))
		return
	}

	now := time.Now().UTC()
	sess := &domain.Session{
		ID:                  uuid.NewString(),
		Topic:               req.Topic,
		Status:              domain.SessionCreated,
		ProposerAgentID:     req.ProposerAgentID,
		CounterpartyAgentID: req.CounterpartyAgentID,
		Terms:               req.Terms,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if sess.Terms == nil {
		sess.Terms = map[string]any{}
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.GetSession(r.Context(), pathVar(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

type acceptSessionRequest struct {
	CounterpartyAgentID string `json:"counterpartyAgentId"`
}

func (s *Server) handleAcceptSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req acceptSessionRequest
	_ = decodeBody(r, &req) // body is optional when the caller's own agent id is implicit

	actor := actorFor(r)
	acceptingAgentID := req.CounterpartyAgentID
	if acceptingAgentID == "" {
		acceptingAgentID = actor.AgentID
	}
	if !actor.Privileged && acceptingAgentID != actor.AgentID {
		writeError(w, apierr.Scope(apierr.CodeActorScopeViolation, "actor must be the accepting agent"))
		return
	}

	if err := session.AuthorizeAccept(session.Actor{AgentID: acceptingAgentID, Privileged: actor.Privileged}, sess); err != nil {
		writeError(w, err)
		return
	}
	newStatus, err := session.Transition(sess.Status, domain.SessionAccepted)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Status = newStatus
	sess.CounterpartyAgentID = acceptingAgentID
	sess.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

func (s *Server) handlePrepareSession(w http.ResponseWriter, r *http.Request) {
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
	newStatus, err := session.Transition(sess.Status, domain.SessionPrepared)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Status = newStatus
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	sess, proposer, counterparty, err := s.loadSessionWithParticipants(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	var bound *domain.Escrow
	if e, err := s.store.GetEscrow(ctx, id); err == nil {
		bound = e
	}

	if err := session.AuthorizeStart(session.StartInputs{
		Actor: actorFor(r), Session: sess, Escrow: bound,
		Proposer: proposer, Counterparty: counterparty, Snapshot: policy.Resolve(),
	}); err != nil {
		writeError(w, err)
		return
	}

	newStatus, err := session.Transition(sess.Status, domain.SessionActive)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Status = newStatus
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

func (s *Server) handleAdjudicateSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := session.AuthorizeAdjudicate(actorFor(r)); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	newStatus, err := session.Transition(sess.Status, domain.SessionStatus(req.Status))
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Status = newStatus
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

type privateInputsRequest struct {
	AgentID string                     `json:"agentId"`
	Context negotiation.PrivateContext `json:"context"`
}

func (s *Server) handlePrivateInputs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	var req privateInputsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := session.AuthorizePrivateInputs(actorFor(r), sess, req.AgentID); err != nil {
		writeError(w, err)
		return
	}

	env, err := s.sealedStore.Seal(id, req.AgentID, req.Context)
	if err != nil {
		writeError(w, apierr.Crypto(apierr.CodeInternalError, "failed to seal private context"))
		return
	}
	if err := s.store.PutSealedInput(ctx, id, req.AgentID, env, time.Now().UTC()); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"sessionId": id, "agentId": req.AgentID, "keyId": env.KeyID})
}

// handleNegotiateByPath and handleNegotiateByBody both drive the same
// underlying negotiation run; the body variant reads the session id from
// its JSON body instead of the path.
func (s *Server) handleNegotiateByPath(w http.ResponseWriter, r *http.Request) {
	s.runNegotiate(w, r, pathVar(r, "id"))
}

func (s *Server) handleNegotiateByBody(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.runNegotiate(w, r, req.SessionID)
}

func (s *Server) runNegotiate(w http.ResponseWriter, r *http.Request, sessionID string) {
	ctx := r.Context()

	sess, proposer, counterparty, err := s.loadSessionWithParticipants(ctx, sessionID)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := policy.Resolve()
	if err := session.AuthorizeNegotiate(session.NegotiateInputs{
		Actor: actorFor(r), Session: sess, Proposer: proposer, Counterparty: counterparty, Snapshot: snap,
	}); err != nil {
		writeError(w, err)
		return
	}

	proposerEnv, _ := s.store.GetSealedInput(ctx, sessionID, proposer.ID)
	counterpartyEnv, _ := s.store.GetSealedInput(ctx, sessionID, counterparty.ID)

	result, err := negotiation.Run(ctx, negotiation.RunInputs{
		Session: sess, Proposer: proposer, Counterparty: counterparty,
		ProposerEnvelope: proposerEnv, CounterpartyEnvelope: counterpartyEnv,
		SealedStore: s.sealedStore, Snapshot: snap,
		DecisionClient: s.decisionClient, RuntimeVerifier: s.runtimeVerifier,
		Now: time.Now().UTC(),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.store.DeleteTurns(ctx, sessionID); err != nil {
		writeError(w, err)
		return
	}
	for _, t := range result.Turns {
		if err := s.store.UpsertTurn(ctx, t); err != nil {
			writeError(w, err)
			return
		}
	}

	newStatus, err := session.Transition(sess.Status, result.FinalStatus)
	if err != nil {
		writeError(w, err)
		return
	}
	sess.Status = newStatus
	if sess.Terms == nil {
		sess.Terms = map[string]any{}
	}
	sess.Terms["negotiation"] = result.Summary
	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateSession(ctx, sess); err != nil {
		writeError(w, err)
		return
	}

	if err := s.recordAttestation(ctx, sess, snap); err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"session": sess,
		"turns":   result.Turns,
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	turns, err := s.store.ListTurns(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	redacted := make([]map[string]any, 0, len(turns))
	for _, t := range turns {
		summary, _ := privacy.Redact(t.Summary).(map[string]any)
		redacted = append(redacted, map[string]any{
			"turn":      t.Turn,
			"status":    t.Status,
			"summary":   privacy.BandSummary(summary),
			"createdAt": t.CreatedAt,
		})
	}
	writeData(w, http.StatusOK, redacted)
}

// loadSessionWithParticipants fetches a session and both of its bound
// agents. The proposer is always resolvable; the counterparty is nil
// until accept, in which case apierr.CodeInvalidRequest is returned.
func (s *Server) loadSessionWithParticipants(ctx context.Context, id string) (*domain.Session, *domain.Agent, *domain.Agent, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	proposer, err := s.store.GetAgent(ctx, sess.ProposerAgentID)
	if err != nil {
		return nil, nil, nil, err
	}
	if sess.CounterpartyAgentID == "" {
		return nil, nil, nil, apierr.Validation(apierr.CodeInvalidRequest, "session has no bound counterparty")
	}
	counterparty, err := s.store.GetAgent(ctx, sess.CounterpartyAgentID)
	if err != nil {
		return nil, nil, nil, err
	}
	return sess, proposer, counterparty, nil
}
