package httpapi

import (
	"net/http"
	"testing"
)

// createEscrowSession creates and fully accepts a session carrying an
// escrow config bound to the two named agents, returning its id.
func createEscrowSession(t *testing.T, srv *Server, buyerKey, sellerKey, buyerID, sellerID, amountPerPlayer string) string {
	t.Helper()

	resp, decoded := doRequest(t, srv, http.MethodPost, "/sessions", buyerKey, map[string]any{
		"topic":           "escrowed widgets",
		"proposerAgentId": buyerID,
		"terms": map[string]any{
			"escrow": map[string]any{
				"contractAddress": "0xcontract",
				"tokenAddress":    "0xtoken",
				"amountPerPlayer": amountPerPlayer,
				"playerAAgentId":  buyerID,
				"playerBAgentId":  sellerID,
			},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create escrow session: status=%d body=%v", resp.StatusCode, decoded)
	}
	sess, _ := decoded["data"].(map[string]any)
	sessionID, _ := sess["ID"].(string)
	if sessionID == "" {
		t.Fatalf("create escrow session: missing id in %v", sess)
	}

	resp, decoded = doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/accept", sellerKey, map[string]any{
		"counterpartyAgentId": sellerID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept escrow session: status=%d body=%v", resp.StatusCode, decoded)
	}
	return sessionID
}

// TestEscrow_PrepareDepositFundsBothSides walks prepare -> deposit(A) ->
// deposit(B), checking the status ladder prepared -> funding_pending ->
// funded.
func TestEscrow_PrepareDepositFundsBothSides(t *testing.T) {
	srv := newTestServer(t)
	buyerKey := registerAgent(t, srv, "escrow-buyer-1")
	sellerKey := registerAgent(t, srv, "escrow-seller-1")
	sessionID := createEscrowSession(t, srv, buyerKey, sellerKey, "escrow-buyer-1", "escrow-seller-1", "1000")

	resp, decoded := doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/escrow/prepare", buyerKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("escrow prepare: status=%d body=%v", resp.StatusCode, decoded)
	}
	e, _ := decoded["data"].(map[string]any)
	if status, _ := e["Status"].(string); status != "prepared" {
		t.Fatalf("expected prepared status after escrow prepare, got %v", e)
	}

	resp, decoded = doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/escrow/deposit", buyerKey, map[string]any{
		"agentId": "escrow-buyer-1", "amount": "1000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("buyer deposit: status=%d body=%v", resp.StatusCode, decoded)
	}
	e, _ = decoded["data"].(map[string]any)
	if status, _ := e["Status"].(string); status != "funding_pending" {
		t.Fatalf("expected funding_pending after one deposit, got %v", e)
	}

	resp, decoded = doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/escrow/deposit", sellerKey, map[string]any{
		"agentId": "escrow-seller-1", "amount": "1000",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seller deposit: status=%d body=%v", resp.StatusCode, decoded)
	}
	e, _ = decoded["data"].(map[string]any)
	if status, _ := e["Status"].(string); status != "funded" {
		t.Fatalf("expected funded after both deposits, got %v", e)
	}

	resp, decoded = doRequest(t, srv, http.MethodGet, "/sessions/"+sessionID+"/escrow/status", buyerKey, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("escrow status: status=%d body=%v", resp.StatusCode, decoded)
	}
}

// TestEscrow_DepositBelowStakeRejected checks that a deposit claim under
// the configured stake amount is rejected rather than silently accepted.
func TestEscrow_DepositBelowStakeRejected(t *testing.T) {
	srv := newTestServer(t)
	buyerKey := registerAgent(t, srv, "escrow-buyer-2")
	sellerKey := registerAgent(t, srv, "escrow-seller-2")
	sessionID := createEscrowSession(t, srv, buyerKey, sellerKey, "escrow-buyer-2", "escrow-seller-2", "1000")

	if resp, decoded := doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/escrow/prepare", buyerKey, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("escrow prepare: status=%d body=%v", resp.StatusCode, decoded)
	}

	resp, decoded := doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/escrow/deposit", buyerKey, map[string]any{
		"agentId": "escrow-buyer-2", "amount": "500",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for under-stake deposit, got %d body=%v", resp.StatusCode, decoded)
	}
}

// TestEscrow_DepositByNonPlayerRejected checks that a deposit claimed on
// behalf of an agent id that isn't one of the two bound escrow players is
// rejected even when the caller is a genuine session participant.
func TestEscrow_DepositByNonPlayerRejected(t *testing.T) {
	srv := newTestServer(t)
	buyerKey := registerAgent(t, srv, "escrow-buyer-3")
	sellerKey := registerAgent(t, srv, "escrow-seller-3")
	sessionID := createEscrowSession(t, srv, buyerKey, sellerKey, "escrow-buyer-3", "escrow-seller-3", "1000")

	if resp, decoded := doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/escrow/prepare", buyerKey, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("escrow prepare: status=%d body=%v", resp.StatusCode, decoded)
	}

	resp, decoded := doRequest(t, srv, http.MethodPost, "/sessions/"+sessionID+"/escrow/deposit", buyerKey, map[string]any{
		"agentId": "someone-else", "amount": "1000",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-self deposit claim, got %d body=%v", resp.StatusCode, decoded)
	}
}
