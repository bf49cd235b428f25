package httpapi

import (
	"net/http"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"status":      "healthy",
		"uptimeMs":    time.Since(s.startedAt).Milliseconds(),
		"agentCount":  len(agents),
		"sessionCount": len(sessions),
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"windowSeconds": 300,
		"routes":        s.metrics.Snapshot(r.Context()),
	})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	caller := s.resolveCaller(r)
	writeData(w, http.StatusOK, map[string]any{
		"role":    caller.Role.String(),
		"agentId": caller.AgentID,
	})
}

func (s *Server) handlePolicyStrict(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, policy.Resolve())
}

func (s *Server) handleVerificationOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snap := policy.Resolve()

	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	readyErr := policy.CheckLaunchReadiness(snap, policy.ReadinessInputs{
		Production:    s.cfg.Production(),
		HasSealingKey: s.cfg.Sealing.MasterKey != "",
		HasSignerKey:  s.cfg.Signer.Key != "",
	})

	counts := map[string]int{}
	for _, sess := range sessions {
		counts[string(sess.Status)]++
	}

	resp := map[string]any{
		"policy":    snap,
		"ready":     readyErr == nil,
		"aggregate": counts,
	}
	if readyErr != nil {
		resp["readinessError"] = readyErr.Error()
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleVerificationSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

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

	var proofSummaries []map[string]any
	for _, t := range turns {
		if proof, ok := t.Summary["proof"].(map[string]any); ok {
			proofSummaries = append(proofSummaries, proof)
		}
	}

	att, attErr := s.store.GetAttestation(ctx, id)
	resp := map[string]any{
		"sessionId":      id,
		"status":         sess.Status,
		"turnCount":      len(turns),
		"proofSummaries": proofSummaries,
	}
	if attErr == nil {
		resp["attestationPresent"] = true
		resp["signerAddress"] = att.SignerAddress
	} else {
		resp["attestationPresent"] = false
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessions, err := s.store.ListSessionsByStatus(ctx, []domain.SessionStatus{
		domain.SessionAgreed, domain.SessionNoAgreement, domain.SessionFailed,
		domain.SessionSettled, domain.SessionRefunded,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	views, err := s.trustViews(ctx, sessions)
	if err != nil {
		writeError(w, err)
		return
	}

	writeData(w, http.StatusOK, s.trustAggregate(views))
}

func (s *Server) handleAutomationStatus(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.automation.Status())
}

func (s *Server) handleAutomationTick(w http.ResponseWriter, r *http.Request) {
	result, err := s.automation.Tick(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, result)
}
