package decision

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/canon"
)

// Proof failure reason strings. Each is a distinct, stable string used
// both to fail a turn in strict mode and to record a proof failure in the
// proof summary in non-strict mode.
const (
	ReasonProofMissing            = "turn_proof_missing"
	ReasonSessionIDMismatch        = "turn_proof_session_id_mismatch"
	ReasonTurnMismatch             = "turn_proof_turn_mismatch"
	ReasonAgentIDMismatch          = "turn_proof_agent_id_mismatch"
	ReasonChallengeMismatch        = "turn_proof_challenge_mismatch"
	ReasonAppIDMismatch            = "turn_proof_app_id_mismatch"
	ReasonEnvironmentMismatch      = "turn_proof_environment_mismatch"
	ReasonImageDigestMismatch      = "turn_proof_image_digest_mismatch"
	ReasonTimestampInvalid         = "turn_proof_timestamp_invalid"
	ReasonTimestampOutOfWindow     = "turn_proof_timestamp_out_of_window"
	ReasonHashMismatch             = "turn_proof_hash_mismatch"
	ReasonSignerRecoveryFailed     = "turn_proof_signer_recovery_failed"
	ReasonSignerMismatch           = "turn_proof_signer_mismatch"
	ReasonSignerNotAllowed         = "turn_proof_signer_not_allowed"
)

// ProofError is a typed, reason-coded proof verification failure.
type ProofError struct {
	Reason string
}

func (e *ProofError) Error() string { return e.Reason }

func fail(reason string) *ProofError { return &ProofError{Reason: reason} }

// ExpectedProof carries the call-site facts a proof is checked against.
type ExpectedProof struct {
	SessionID       string
	Turn            int
	AgentID         string
	Role            string
	Offer           float64
	Challenge       string
	AppID           string // expected, from agent metadata; empty = not declared
	Environment     string // expected, from agent metadata; empty = not declared
	ImageDigest     string // expected, from agent metadata; empty = not declared
	SignerAddress   string // expected, from agent metadata; empty = not declared
	MaxSkewMs       int64
	Now             time.Time
	AllowedSigners  []string // if non-empty, recovered signer must be a member
}

// VerifiedProof is the result of a successful verification.
type VerifiedProof struct {
	DecisionHash string
	Signer       string
}

// Verify runs the five-step proof verification sequence.
func Verify(p *Proof, exp ExpectedProof) (*VerifiedProof, *ProofError) {
	if p == nil {
		return nil, fail(ReasonProofMissing)
	}

	proofAppID := p.AppID
	proofEnvironment := p.Environment
	proofImageDigest := p.ImageDigest

	offer4 := round4(exp.Offer)
	challengeLower := strings.ToLower(exp.Challenge)
	appIDLower := strings.ToLower(proofAppID)
	environmentLower := strings.ToLower(proofEnvironment)
	imageDigestLower := strings.ToLower(proofImageDigest)

	timestampRaw, tsErr := normalizeTimestamp(p.Timestamp)
	if tsErr != nil {
		return nil, fail(ReasonTimestampInvalid)
	}

	hashPayload := map[string]any{
		"protocol":    "MOLT_NEGOTIATION_TURN_PROOF",
		"version":     "v1",
		"sessionId":   exp.SessionID,
		"turn":        exp.Turn,
		"agentId":     exp.AgentID,
		"role":        exp.Role,
		"offer":       offer4,
		"challenge":   challengeLower,
		"appId":       appIDLower,
		"environment": environmentLower,
		"imageDigest": imageDigestLower,
		"timestamp":   timestampRaw,
	}
	decisionHash, err := canon.HashHex(hashPayload)
	if err != nil {
		return nil, fail(ReasonHashMismatch)
	}
	decisionHash = "0x" + decisionHash

	// Field equality checks (step 2): the proof must echo back the exact
	// sessionId/turn/agentId/challenge it was asked to sign over, not just
	// carry a non-empty expectation on our side.
	if exp.SessionID == "" || p.SessionID != exp.SessionID {
		return nil, fail(ReasonSessionIDMismatch)
	}
	if exp.Turn < 0 || p.Turn != exp.Turn {
		return nil, fail(ReasonTurnMismatch)
	}
	if exp.AgentID == "" || p.AgentID != exp.AgentID {
		return nil, fail(ReasonAgentIDMismatch)
	}
	if challengeLower == "" || !strings.EqualFold(p.Challenge, exp.Challenge) {
		return nil, fail(ReasonChallengeMismatch)
	}
	if exp.AppID != "" && !strings.EqualFold(exp.AppID, proofAppID) {
		return nil, fail(ReasonAppIDMismatch)
	}
	if exp.Environment != "" && !strings.EqualFold(exp.Environment, proofEnvironment) {
		return nil, fail(ReasonEnvironmentMismatch)
	}
	if exp.ImageDigest != "" && !strings.EqualFold(exp.ImageDigest, proofImageDigest) {
		return nil, fail(ReasonImageDigestMismatch)
	}

	// Timestamp skew window (step 3).
	skewMs := exp.Now.UnixMilli() - timestampRaw
	if skewMs < 0 {
		skewMs = -skewMs
	}
	maxSkew := exp.MaxSkewMs
	if maxSkew <= 0 {
		maxSkew = time.Minute.Milliseconds()
	}
	if skewMs > maxSkew {
		return nil, fail(ReasonTimestampOutOfWindow)
	}

	// Message reconstruction and signature recovery (step 4).
	msg := strings.Join([]string{
		"MOLT_NEGOTIATION_TURN_PROOF",
		"v1",
		exp.SessionID,
		strconv.Itoa(exp.Turn),
		exp.AgentID,
		exp.Role,
		formatOffer4(offer4),
		challengeLower,
		decisionHash,
		appIDLower,
		environmentLower,
		imageDigestLower,
		strconv.FormatInt(timestampRaw, 10),
	}, "|")

	sigBytes, decErr := decodeSignature(p.Signature)
	if decErr != nil {
		return nil, fail(ReasonSignerRecoveryFailed)
	}
	recovered, err := canon.RecoverPersonal([]byte(msg), sigBytes)
	if err != nil {
		return nil, fail(ReasonSignerRecoveryFailed)
	}

	// Signer equality checks (step 5).
	if p.Signer != "" && !strings.EqualFold(p.Signer, recovered) {
		return nil, fail(ReasonSignerMismatch)
	}
	if exp.SignerAddress != "" && !strings.EqualFold(exp.SignerAddress, recovered) {
		return nil, fail(ReasonSignerMismatch)
	}
	if len(exp.AllowedSigners) > 0 && !containsFold(exp.AllowedSigners, recovered) {
		return nil, fail(ReasonSignerNotAllowed)
	}

	return &VerifiedProof{DecisionHash: decisionHash, Signer: recovered}, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func formatOffer4(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func normalizeTimestamp(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("decision: timestamp missing")
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n, nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, t)
			if err != nil {
				return 0, fmt.Errorf("decision: invalid timestamp %q: %w", t, err)
			}
		}
		return parsed.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("decision: unsupported timestamp type %T", v)
	}
}

func decodeSignature(sig string) ([]byte, error) {
	s := strings.TrimPrefix(sig, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decision: invalid signature hex: %w", err)
	}
	return b, nil
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
