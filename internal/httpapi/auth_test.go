package httpapi

import (
	"net/http"
	"testing"
)

// TestLeaderboard_ReadonlyKeyCanList checks that a caller authenticating
// with the configured readonly key (not an agent, not an operator) can
// read the trust leaderboard.
func TestLeaderboard_ReadonlyKeyCanList(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.AuthConfig.ReadonlyKey = "test-readonly-key"

	resp, decoded := doRequest(t, srv, http.MethodGet, "/leaderboard/trusted", "test-readonly-key", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard: status=%d body=%v", resp.StatusCode, decoded)
	}
}

// TestLeaderboard_PublicDeniedWithoutAllowPublicRead checks that an
// unauthenticated caller is rejected when AllowPublicRead is unset.
func TestLeaderboard_PublicDeniedWithoutAllowPublicRead(t *testing.T) {
	srv := newTestServer(t)

	resp, decoded := doRequest(t, srv, http.MethodGet, "/leaderboard/trusted", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for public leaderboard read, got %d body=%v", resp.StatusCode, decoded)
	}
}

// TestLeaderboard_PublicAllowedWithAllowPublicRead checks that setting
// AllowPublicRead promotes an unauthenticated caller to readonly.
func TestLeaderboard_PublicAllowedWithAllowPublicRead(t *testing.T) {
	srv := newTestServer(t)
	srv.cfg.AuthConfig.AllowPublicRead = true

	resp, decoded := doRequest(t, srv, http.MethodGet, "/leaderboard/trusted", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("leaderboard with AllowPublicRead: status=%d body=%v", resp.StatusCode, decoded)
	}
}

// TestAdjudicate_AgentForbiddenOperatorAllowed checks the adjudicate
// route's privilege floor: a plain agent caller is rejected below the
// route's required role, while the configured operator key succeeds.
func TestAdjudicate_AgentForbiddenOperatorAllowed(t *testing.T) {
	srv := newTestServer(t)
	buyerKey := registerAgent(t, srv, "adjudicate-buyer-1")
	sellerKey := registerAgent(t, srv, "adjudicate-seller-1")

	_, decoded := doRequest(t, srv, http.MethodPost, "/sessions", buyerKey, map[string]any{
		"topic": "disputed widgets", "proposerAgentId": "adjudicate-buyer-1",
	})
	sess, _ := decoded["data"].(map[string]any)
	sessionID, _ := sess["ID"].(string)

	doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/accept", sellerKey, map[string]any{
		"counterpartyAgentId": "adjudicate-seller-1",
	})

	resp, decoded := doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/adjudicate", buyerKey, map[string]any{
		"status": "failed",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for agent-level adjudicate, got %d body=%v", resp.StatusCode, decoded)
	}

	resp, decoded = doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/adjudicate", testOperatorKey, map[string]any{
		"status": "failed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for operator adjudicate, got %d body=%v", resp.StatusCode, decoded)
	}
}

// TestRegisterAgent_UpdateRequiresOwnCredentials checks that updating an
// existing agent's record is rejected for a caller that is neither the
// agent itself nor privileged, and succeeds for the agent's own key.
func TestRegisterAgent_UpdateRequiresOwnCredentials(t *testing.T) {
	srv := newTestServer(t)
	ownKey := registerAgent(t, srv, "update-agent-1")
	otherKey := registerAgent(t, srv, "update-agent-2")

	resp, decoded := doRequest(t, srv, http.MethodPost, "/api/agents/register", otherKey, map[string]any{
		"id": "update-agent-1", "name": "renamed", "endpoint": "https://update-agent-1.example.com",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-agent update, got %d body=%v", resp.StatusCode, decoded)
	}

	resp, decoded = doRequest(t, srv, http.MethodPost, "/api/agents/register", ownKey, map[string]any{
		"id": "update-agent-1", "name": "renamed", "endpoint": "https://update-agent-1.example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for self update, got %d body=%v", resp.StatusCode, decoded)
	}
}
