package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestVerify_NotRequiredIsNoop(t *testing.T) {
	v := NewVerifier()
	if err := v.Verify(context.Background(), false, false, "", nil, Expected{}); err != nil {
		t.Fatalf("expected no-op success, got %v", err)
	}
}

func TestVerify_LocalMissingEvidence(t *testing.T) {
	v := NewVerifier()
	err := v.Verify(context.Background(), true, false, "", nil, Expected{})
	if err == nil {
		t.Fatalf("expected error for missing evidence")
	}
}

func TestVerify_LocalSuccess(t *testing.T) {
	now := time.Now()
	ev := &Evidence{Claims: map[string]any{
		"reportDataHash": "0xabc",
		"appId":          "App-1",
		"issuedAt":       float64(now.UnixMilli()),
		"expiresAt":      float64(now.Add(time.Hour).UnixMilli()),
	}}
	exp := Expected{DecisionHash: "0xABC", AppID: "app-1", MaxAgeMs: time.Minute.Milliseconds(), Now: now}

	v := NewVerifier()
	if err := v.Verify(context.Background(), true, false, "", ev, exp); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestVerify_LocalExpired(t *testing.T) {
	now := time.Now()
	ev := &Evidence{Claims: map[string]any{
		"reportDataHash": "0xabc",
		"expiresAt":      float64(now.Add(-time.Hour).UnixMilli()),
	}}
	exp := Expected{DecisionHash: "0xabc", Now: now}

	v := NewVerifier()
	err := v.Verify(context.Background(), true, false, "", ev, exp)
	if err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestVerify_RemoteAcceptsAndAdoptsClaims(t *testing.T) {
	now := time.Now()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"valid": true,
			"claims": map[string]any{
				"reportDataHash": "0xabc",
				"issuedAt":       float64(now.UnixMilli()),
			},
		})
	}))
	defer srv.Close()

	ev := &Evidence{Claims: map[string]any{"reportDataHash": "stale"}}
	exp := Expected{DecisionHash: "0xabc", MaxAgeMs: time.Minute.Milliseconds(), Now: now}

	v := NewVerifier()
	if err := v.Verify(context.Background(), true, true, srv.URL, ev, exp); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestVerify_RemoteRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": false})
	}))
	defer srv.Close()

	ev := &Evidence{Claims: map[string]any{"reportDataHash": "0xabc"}}
	v := NewVerifier()
	err := v.Verify(context.Background(), true, true, srv.URL, ev, Expected{DecisionHash: "0xabc", Now: time.Now()})
	if err == nil {
		t.Fatalf("expected rejection error")
	}
}
