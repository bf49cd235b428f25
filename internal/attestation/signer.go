// Package attestation implements the session-level attestation signer:
// canonical outcome/policy hashing, ECDSA signing over the ERC-191
// personal-message digest of the payload hash, and verification.
package attestation

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/molt-labs/molt-negotiation/internal/canon"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// ErrMissingSignerKey is returned by KeyFromConfig when running in
// production without an operator-supplied signer key.
var ErrMissingSignerKey = errors.New("missing_attestation_signer_key")

const devFallbackSeed = "molt-negotiation:dev-only:attestation-signer-key"

// Signer holds the process-level ECDSA key used to sign attestation
// payloads. Unlike the sealed-input master key, this key is not kept in
// a memguard enclave: go-ethereum's crypto.Sign requires the raw
// *ecdsa.PrivateKey, and the attestation signer operates at a coarser,
// per-process rather than per-request grain. It is still never logged or
// serialized.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string // lowercased hex address
}

// KeyFromConfig resolves the attestation signer key from an
// operator-supplied 64-hex string (optionally "0x"-prefixed). If raw is
// empty and production is false and allowInsecureDevKeys is true, a
// deterministic development key is derived from SHA-256 of a fixed seed
// string, mirroring sealed.KeyFromConfig's fallback.
func KeyFromConfig(raw string, production, allowInsecureDevKeys bool) (*Signer, error) {
	if raw == "" {
		if production || !allowInsecureDevKeys {
			return nil, ErrMissingSignerKey
		}
		sum := sha256.Sum256([]byte(devFallbackSeed))
		return newSigner(sum[:])
	}

	hexKey := strings.TrimPrefix(raw, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("attestation: invalid signer key: %w", err)
	}
	return &Signer{
		key:     key,
		address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}, nil
}

func newSigner(seed []byte) (*Signer, error) {
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		return nil, fmt.Errorf("attestation: derive dev signer key: %w", err)
	}
	return &Signer{
		key:     key,
		address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}, nil
}

// Address returns the signer's lowercased hex address.
func (s *Signer) Address() string { return s.address }

// OutcomeInputs is the finalized session view hashed into outcomeHash.
type OutcomeInputs struct {
	SessionID string
	Status    domain.SessionStatus
	Terms     map[string]any
	Turns     []domain.SessionTurn
}

// turnView is the {turn,status,summary} shape hashed per turn; it
// excludes sessionId and createdAt, which are not part of outcomeHash.
type turnView struct {
	Turn    int            `json:"turn"`
	Status  string         `json:"status"`
	Summary map[string]any `json:"summary"`
}

// OutcomeHash computes the canonical hash of
// {sessionId, status, terms, turns:[{turn,status,summary}]}.
func OutcomeHash(in OutcomeInputs) (string, error) {
	turns := make([]turnView, 0, len(in.Turns))
	for _, t := range in.Turns {
		turns = append(turns, turnView{Turn: t.Turn, Status: string(t.Status), Summary: t.Summary})
	}
	payload := map[string]any{
		"sessionId": in.SessionID,
		"status":    string(in.Status),
		"terms":     in.Terms,
		"turns":     turns,
	}
	return canon.HashHex(payload)
}

// PolicyHash computes the canonical hash of a policy snapshot, already
// flattened to a map by the caller (internal/policy.Snapshot's exported
// field set, serialized via encoding/json struct tags upstream).
func PolicyHash(snapshot any) (string, error) {
	return canon.HashHex(snapshot)
}

// Payload is the full signed attestation body.
type Payload struct {
	Version        int            `json:"version"`
	SessionID      string         `json:"sessionId"`
	Status         string         `json:"status"`
	Turns          []turnView     `json:"turns"`
	OutcomeHash    string         `json:"outcomeHash"`
	PolicyHash     string         `json:"policyHash"`
	ExecutionMode  string         `json:"executionMode"`
	StrictVerified bool           `json:"strictVerified"`
	StrictReasons  []string       `json:"strictReasons"`
	Participants   []string       `json:"participants"`
	GeneratedAt    string         `json:"generatedAt"`
}

const payloadVersion = 1

// BuildInputs carries everything needed to assemble and sign an
// attestation payload for a finalized session.
type BuildInputs struct {
	Session        *domain.Session
	Turns          []domain.SessionTurn
	PolicySnapshot any
	ExecutionMode  string // "strict" or "simple"
	StrictVerified bool
	StrictReasons  []string
	Now            time.Time
}

// Build assembles the attestation payload, computes payloadHash, and
// signs the ERC-191 personal-message digest of payloadHash with s's key.
// It returns the domain.Attestation ready for persistence.
func (s *Signer) Build(in BuildInputs) (*domain.Attestation, error) {
	outcomeHash, err := OutcomeHash(OutcomeInputs{
		SessionID: in.Session.ID,
		Status:    in.Session.Status,
		Terms:     in.Session.Terms,
		Turns:     in.Turns,
	})
	if err != nil {
		return nil, fmt.Errorf("attestation: compute outcome hash: %w", err)
	}
	policyHash, err := PolicyHash(in.PolicySnapshot)
	if err != nil {
		return nil, fmt.Errorf("attestation: compute policy hash: %w", err)
	}

	turns := make([]turnView, 0, len(in.Turns))
	for _, t := range in.Turns {
		turns = append(turns, turnView{Turn: t.Turn, Status: string(t.Status), Summary: t.Summary})
	}

	payload := Payload{
		Version:        payloadVersion,
		SessionID:      in.Session.ID,
		Status:         string(in.Session.Status),
		Turns:          turns,
		OutcomeHash:    outcomeHash,
		PolicyHash:     policyHash,
		ExecutionMode:  in.ExecutionMode,
		StrictVerified: in.StrictVerified,
		StrictReasons:  in.StrictReasons,
		Participants:   in.Session.Participants(),
		GeneratedAt:    in.Now.UTC().Format(time.RFC3339Nano),
	}

	payloadHash, err := canon.HashHex(payload)
	if err != nil {
		return nil, fmt.Errorf("attestation: compute payload hash: %w", err)
	}

	sig, err := canon.SignPersonal(s.key, []byte(payloadHash))
	if err != nil {
		return nil, fmt.Errorf("attestation: sign payload hash: %w", err)
	}

	payloadAsMap, err := toGenericMap(payload)
	if err != nil {
		return nil, fmt.Errorf("attestation: decode payload map: %w", err)
	}

	return &domain.Attestation{
		SessionID:     in.Session.ID,
		SignerAddress: s.address,
		PayloadHash:   payloadHash,
		Signature:     fmt.Sprintf("0x%x", sig),
		Payload:       payloadAsMap,
		CreatedAt:     in.Now,
	}, nil
}

// toGenericMap round-trips v through encoding/json into a map[string]any,
// the shape domain.Attestation.Payload is stored and re-hashed as.
func toGenericMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
