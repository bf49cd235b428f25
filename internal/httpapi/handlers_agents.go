package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

func errNonOKHealth(status int) error {
	return fmt.Errorf("unexpected status %d", status)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, agents)
}

type registerAgentRequest struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Endpoint      string         `json:"endpoint"`
	APIKey        string         `json:"apiKey"`
	PayoutAddress string         `json:"payoutAddress"`
	Metadata      map[string]any `json:"metadata"`
}

// handleRegisterAgent implements POST /api/agents/register: any caller
// may register a brand-new agent id, but updating an existing agent's
// record requires the caller to already authenticate as that agent (its
// own api key) or be privileged.
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req registerAgentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Endpoint) == "" {
		writeError(w, apierr.Validation(apierr.CodeInvalidRequest, "name and endpoint are required"))
		return
	}

	now := time.Now().UTC()
	ctx := r.Context()

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	existing, err := s.store.GetAgent(ctx, req.ID)
	if err == nil {
		caller := s.resolveCaller(r)
		if !caller.Privileged() && caller.AgentID != existing.ID {
			writeError(w, apierr.Scope(apierr.CodeActorScopeViolation, "updating an agent requires that agent's own credentials"))
			return
		}
		existing.Name = req.Name
		existing.Endpoint = req.Endpoint
		if req.APIKey != "" {
			existing.APIKey = req.APIKey
		}
		existing.PayoutAddress = req.PayoutAddress
		existing.Metadata = req.Metadata
		existing.UpdatedAt = now
		if err := s.store.UpdateAgent(ctx, existing); err != nil {
			writeError(w, err)
			return
		}
		writeData(w, http.StatusOK, existing)
		return
	}

	agent := &domain.Agent{
		ID:               req.ID,
		Name:             req.Name,
		Endpoint:         req.Endpoint,
		APIKey:           req.APIKey,
		PayoutAddress:    req.PayoutAddress,
		Enabled:          true,
		Metadata:         req.Metadata,
		LastHealthStatus: domain.HealthUnknown,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateAgent(ctx, agent); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, agent)
}

// handleProbeAgent issues a lightweight GET against the agent's
// declared endpoint + "/health" and records the observed status.
func (s *Server) handleProbeAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathVar(r, "id")

	agent, err := s.store.GetAgent(ctx, id)
	if err != nil {
		writeError(w, err)
		return
	}

	health := domain.HealthUnhealthy
	probeErr := s.probeAgentHealth(ctx, agent.Endpoint)
	if probeErr == nil {
		health = domain.HealthHealthy
	}

	now := time.Now().UTC()
	if err := s.store.UpdateAgentHealth(ctx, id, health, now); err != nil {
		writeError(w, err)
		return
	}

	if probeErr != nil {
		writeError(w, apierr.External(apierr.CodeHealthProbeFailed, "agent health probe failed: "+probeErr.Error()))
		return
	}
	writeData(w, http.StatusOK, map[string]any{"agentId": id, "status": health})
}

func (s *Server) probeAgentHealth(ctx context.Context, endpoint string) error {
	base := strings.TrimRight(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errNonOKHealth(resp.StatusCode)
	}
	return nil
}
