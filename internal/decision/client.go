// Package decision implements the outbound agent-decision client of spec
// §4.D: constructing a turn-decision request, POSTing it to a prioritized
// list of candidate URLs, and verifying the signed proof on the response.
package decision

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const protocolID = "molt-negotiation/turn-decision-v1"

const (
	defaultTimeout = 8 * time.Second
	maxTimeout     = 60 * time.Second
)

// AgentRef is the subset of an Agent record the decision client needs.
type AgentRef struct {
	ID       string
	Endpoint string
	APIKey   string
	Metadata map[string]any
}

// TurnRequest describes one outbound turn-decision call.
type TurnRequest struct {
	SessionID             string
	Topic                 string
	Turn                  int
	MaxTurns              int
	Role                  string // "buyer" or "seller"
	Agent                 AgentRef
	PrivateContext        any
	PublicState           map[string]any
	ExpectedProofBinding  map[string]any
	TimeoutOverride       time.Duration
}

// Proof is the optional signed proof object an agent may return alongside
// its offer. SessionID/Turn/AgentID/Challenge are the agent's own echo of
// the call-site facts it was asked to sign over; Verify checks them
// against the coordinator's expectation rather than trusting the
// surrounding response envelope.
type Proof struct {
	SessionID   string `json:"sessionId,omitempty"`
	Turn        int    `json:"turn,omitempty"`
	AgentID     string `json:"agentId,omitempty"`
	Challenge   string `json:"challenge,omitempty"`
	Signature   string `json:"signature"`
	Signer      string `json:"signer,omitempty"`
	AppID       string `json:"appId,omitempty"`
	Environment string `json:"environment,omitempty"`
	ImageDigest string `json:"imageDigest,omitempty"`
	Timestamp   any    `json:"timestamp"`
	Evidence    any    `json:"evidence,omitempty"`
}

// Decision is the parsed agent response.
type Decision struct {
	Offer     float64
	Proof     *Proof
	Challenge string
	Raw       map[string]any
}

type requestBody struct {
	Protocol             string         `json:"protocol"`
	SessionID            string         `json:"sessionId"`
	Topic                string         `json:"topic"`
	Turn                 int            `json:"turn"`
	MaxTurns             int            `json:"maxTurns"`
	Role                 string         `json:"role"`
	AgentID              string         `json:"agentId"`
	Challenge            string         `json:"challenge"`
	PrivateContext       any            `json:"privateContext"`
	PublicState          map[string]any `json:"publicState"`
	ExpectedProofBinding map[string]any `json:"expectedProofBinding"`
}

type responseBody struct {
	Offer json.Number `json:"offer"`
	Proof *Proof      `json:"proof"`
}

// Client dispatches turn-decision requests to agent endpoints.
type Client struct {
	HTTP            *http.Client
	CandidateOverrideEnv string // e.g. NEG_DECISION_ENDPOINT_OVERRIDE
}

// NewClient creates a decision Client with the given per-attempt timeout
// (clamped to (0, 60s], default 8s when zero).
func NewClient(timeout time.Duration) *Client {
	t := timeout
	if t <= 0 {
		t = defaultTimeout
	}
	if t > maxTimeout {
		t = maxTimeout
	}
	return &Client{
		HTTP:                 &http.Client{Timeout: t},
		CandidateOverrideEnv: "NEG_DECISION_ENDPOINT_OVERRIDE",
	}
}

// NewChallenge generates a fresh 40-hex-character challenge nonce.
func NewChallenge() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("decision: generate challenge: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// candidateURLs returns the prioritized list of URLs to attempt: an
// agent-metadata override, an environment override, then the three
// well-known suffixes appended to the agent's endpoint.
func (c *Client) candidateURLs(agent AgentRef) []string {
	var out []string
	if v, ok := agent.Metadata["decisionEndpoint"].(string); ok && v != "" {
		out = append(out, v)
	}
	if c.CandidateOverrideEnv != "" {
		if v := os.Getenv(c.CandidateOverrideEnv); v != "" {
			out = append(out, v)
		}
	}
	base := agent.Endpoint
	for len(base) > 0 && base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	for _, suffix := range []string{"/decide", "/negotiate-turn", "/negotiate"} {
		out = append(out, base+suffix)
	}
	return out
}

// Decide issues the turn-decision request to candidate URLs in priority
// order, advancing past 404s and other non-2xx responses, until one
// succeeds or all candidates are exhausted.
func (c *Client) Decide(ctx context.Context, req TurnRequest) (*Decision, error) {
	challenge, err := NewChallenge()
	if err != nil {
		return nil, err
	}

	body := requestBody{
		Protocol:             protocolID,
		SessionID:            req.SessionID,
		Topic:                req.Topic,
		Turn:                 req.Turn,
		MaxTurns:             req.MaxTurns,
		Role:                 req.Role,
		AgentID:              req.Agent.ID,
		Challenge:            challenge,
		PrivateContext:       req.PrivateContext,
		PublicState:          req.PublicState,
		ExpectedProofBinding: req.ExpectedProofBinding,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("decision: marshal request: %w", err)
	}

	httpClient := c.HTTP
	if req.TimeoutOverride > 0 {
		timeout := req.TimeoutOverride
		if timeout > maxTimeout {
			timeout = maxTimeout
		}
		cp := *c.HTTP
		cp.Timeout = timeout
		httpClient = &cp
	}

	var lastErr error
	for _, url := range c.candidateURLs(req.Agent) {
		dec, err := c.attempt(ctx, httpClient, url, req.Agent.APIKey, payload)
		if err != nil {
			lastErr = err
			continue
		}
		if dec == nil {
			continue // 404 or other non-2xx: advance to next candidate
		}
		dec.Challenge = challenge
		return dec, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("decision: all candidates exhausted: %w", lastErr)
	}
	return nil, fmt.Errorf("decision: all candidates exhausted for agent %s", req.Agent.ID)
}

// attempt issues one POST. A nil *Decision with a nil error means the
// caller should advance to the next candidate (404 or other non-2xx).
func (c *Client) attempt(ctx context.Context, httpClient *http.Client, url, apiKey string, payload []byte) (*Decision, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decision: build request for %s: %w", url, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("decision: request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil
	}

	var rb responseBody
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, fmt.Errorf("decision: decode response from %s: %w", url, err)
	}
	offer, err := rb.Offer.Float64()
	if err != nil {
		return nil, fmt.Errorf("decision: non-numeric offer from %s: %w", url, err)
	}

	var genericRaw map[string]any
	_ = json.Unmarshal(raw, &genericRaw)

	return &Decision{Offer: offer, Proof: rb.Proof, Raw: genericRaw}, nil
}
