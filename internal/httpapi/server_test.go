package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/molt-labs/molt-negotiation/internal/attestation"
	"github.com/molt-labs/molt-negotiation/internal/automation"
	"github.com/molt-labs/molt-negotiation/internal/config"
	"github.com/molt-labs/molt-negotiation/internal/decision"
	"github.com/molt-labs/molt-negotiation/internal/metrics"
	"github.com/molt-labs/molt-negotiation/internal/runtime"
	"github.com/molt-labs/molt-negotiation/internal/sealed"
	"github.com/molt-labs/molt-negotiation/internal/store"
)

const (
	testAdminKey    = "test-admin-key"
	testOperatorKey = "test-operator-key"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	masterKey, err := sealed.KeyFromConfig("", false, true)
	if err != nil {
		t.Fatalf("sealed.KeyFromConfig: %v", err)
	}
	signer, err := attestation.KeyFromConfig("", false, true)
	if err != nil {
		t.Fatalf("attestation.KeyFromConfig: %v", err)
	}

	cfg := &config.Config{
		Env: "test",
		AuthConfig: config.AuthConfig{
			AdminKey:    testAdminKey,
			OperatorKey: testOperatorKey,
		},
	}

	return New(Deps{
		Config:          cfg,
		Store:           db,
		SealedStore:     sealed.NewStore(masterKey),
		Signer:          signer,
		DecisionClient:  decision.NewClient(0),
		RuntimeVerifier: runtime.NewVerifier(),
		Metrics:         metrics.NewMemoryRecorder(),
		Automation:      automation.New(db, 0, nil),
	})
}

// doRequest issues req against the server's router and decodes the
// envelope body into an any-typed map for inspection.
func doRequest(t *testing.T, srv *Server, method, path, bearer string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)

	resp := rr.Result()
	var decoded map[string]any
	if resp.ContentLength != 0 || rr.Body.Len() > 0 {
		_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	}
	return resp, decoded
}

// registerAgent registers id with a deterministic API key and returns
// that key, so callers can immediately authenticate as the new agent.
func registerAgent(t *testing.T, srv *Server, id string) string {
	t.Helper()
	apiKey := "key-" + id
	resp, decoded := doRequest(t, srv, http.MethodPost, "/api/agents/register", "", map[string]any{
		"id":       id,
		"name":     id,
		"endpoint": "https://" + id + ".example.com",
		"apiKey":   apiKey,
	})
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("register agent %s: status=%d body=%v", id, resp.StatusCode, decoded)
	}
	return apiKey
}
