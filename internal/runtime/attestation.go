// Package runtime verifies the runtime evidence a deciding agent attaches
// to its turn proof: either locally against normalized claims, or by
// forwarding to a configured remote TEE verifier service.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Evidence is the opaque runtime-evidence struct an agent may attach.
// Claims is an inner map purportedly sourced from the agent's trusted
// execution environment.
type Evidence struct {
	Claims map[string]any `json:"claims"`
}

// Expected carries the agent-derived facts evidence is checked against.
type Expected struct {
	DecisionHash  string
	AppID         string
	Environment   string
	ImageDigest   string
	SignerAddress string
	MaxAgeMs      int64
	Now           time.Time
}

// VerifyError is a reason-coded runtime-attestation failure.
type VerifyError struct {
	Reason string
}

func (e *VerifyError) Error() string { return e.Reason }

const (
	ReasonEvidenceMissing        = "runtime_attestation_evidence_missing"
	ReasonReportDataMismatch     = "runtime_attestation_report_data_mismatch"
	ReasonAppIDMismatch          = "runtime_attestation_app_id_mismatch"
	ReasonEnvironmentMismatch    = "runtime_attestation_environment_mismatch"
	ReasonImageDigestMismatch    = "runtime_attestation_image_digest_mismatch"
	ReasonSignerMismatch         = "runtime_attestation_signer_mismatch"
	ReasonIssuedAtOutOfWindow    = "runtime_attestation_issued_at_out_of_window"
	ReasonExpired                = "runtime_attestation_expired"
	ReasonRemoteVerifierFailed   = "runtime_attestation_remote_verifier_failed"
	ReasonRemoteVerifierRejected = "runtime_attestation_remote_verifier_rejected"
)

// Verifier checks runtime evidence either locally or via a remote
// service, depending on policy.
type Verifier struct {
	HTTP *http.Client
}

// NewVerifier creates a Verifier with a 10s remote-call timeout.
func NewVerifier() *Verifier {
	return &Verifier{HTTP: &http.Client{Timeout: 10 * time.Second}}
}

// Verify checks evidence against exp. When remoteVerify is false,
// verification is local-only. When true, evidence and exp are first
// forwarded to verifierURL; any claims it returns replace the evidence's
// own claims before the local checks run.
func (v *Verifier) Verify(ctx context.Context, required, remoteVerify bool, verifierURL string, evidence *Evidence, exp Expected) error {
	if !required {
		return nil
	}
	if evidence == nil {
		return &VerifyError{Reason: ReasonEvidenceMissing}
	}

	claims := normalizeClaims(evidence.Claims)

	if remoteVerify {
		remoteClaims, err := v.callRemote(ctx, verifierURL, evidence, exp)
		if err != nil {
			return err
		}
		if remoteClaims != nil {
			claims = normalizeClaims(remoteClaims)
		}
	}

	return checkClaims(claims, exp)
}

func normalizeClaims(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok {
			out[strings.ToLower(k)] = strings.ToLower(s)
		} else {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}

func checkClaims(claims map[string]any, exp Expected) error {
	if got, _ := claims["reportdatahash"].(string); !strings.EqualFold(got, exp.DecisionHash) {
		return &VerifyError{Reason: ReasonReportDataMismatch}
	}
	if exp.AppID != "" {
		if got, _ := claims["appid"].(string); !strings.EqualFold(got, exp.AppID) {
			return &VerifyError{Reason: ReasonAppIDMismatch}
		}
	}
	if exp.Environment != "" {
		if got, _ := claims["environment"].(string); !strings.EqualFold(got, exp.Environment) {
			return &VerifyError{Reason: ReasonEnvironmentMismatch}
		}
	}
	if exp.ImageDigest != "" {
		if got, _ := claims["imagedigest"].(string); !strings.EqualFold(got, exp.ImageDigest) {
			return &VerifyError{Reason: ReasonImageDigestMismatch}
		}
	}
	if exp.SignerAddress != "" {
		if got, _ := claims["signeraddress"].(string); !strings.EqualFold(got, exp.SignerAddress) {
			return &VerifyError{Reason: ReasonSignerMismatch}
		}
	}

	issuedAtMs, issuedOK := numericClaim(claims["issuedat"])
	if issuedOK {
		skew := exp.Now.UnixMilli() - issuedAtMs
		if skew < 0 {
			skew = -skew
		}
		maxAge := exp.MaxAgeMs
		if maxAge <= 0 {
			maxAge = 5 * time.Minute.Milliseconds()
		}
		if skew > maxAge {
			return &VerifyError{Reason: ReasonIssuedAtOutOfWindow}
		}
	}

	if expiresAtMs, ok := numericClaim(claims["expiresat"]); ok {
		if exp.Now.UnixMilli() > expiresAtMs {
			return &VerifyError{Reason: ReasonExpired}
		}
	}

	return nil
}

func numericClaim(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case int64:
		return t, true
	default:
		return 0, false
	}
}

type remoteRequest struct {
	Evidence *Evidence `json:"evidence"`
	Expected Expected  `json:"expected"`
}

type remoteResponse struct {
	Valid  bool           `json:"valid"`
	Claims map[string]any `json:"claims"`
}

func (v *Verifier) callRemote(ctx context.Context, verifierURL string, evidence *Evidence, exp Expected) (map[string]any, error) {
	if verifierURL == "" {
		return nil, &VerifyError{Reason: ReasonRemoteVerifierFailed}
	}

	body, err := json.Marshal(remoteRequest{Evidence: evidence, Expected: exp})
	if err != nil {
		return nil, fmt.Errorf("runtime: marshal remote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, verifierURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("runtime: build remote request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.HTTP.Do(req)
	if err != nil {
		return nil, &VerifyError{Reason: ReasonRemoteVerifierFailed}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &VerifyError{Reason: ReasonRemoteVerifierFailed}
	}

	var rr remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, &VerifyError{Reason: ReasonRemoteVerifierFailed}
	}
	if !rr.Valid {
		return nil, &VerifyError{Reason: ReasonRemoteVerifierRejected}
	}
	return rr.Claims, nil
}
