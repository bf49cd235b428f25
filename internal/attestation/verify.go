package attestation

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/molt-labs/molt-negotiation/internal/canon"
	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// VerifyError accumulates every failing check, mirroring the
// reason-per-failure style of internal/decision and internal/runtime.
type VerifyError struct {
	Reasons []string
}

func (e *VerifyError) Error() string {
	return "attestation_verification_failed: " + strings.Join(e.Reasons, ",")
}

// Failure reason constants.
const (
	ReasonPayloadHashMismatch      = "payload_hash_mismatch"
	ReasonSignatureInvalid         = "signature_invalid"
	ReasonSignerMismatch           = "signer_mismatch"
	ReasonConfiguredSignerMismatch = "configured_signer_mismatch"
	ReasonOutcomeHashMismatch      = "outcome_hash_mismatch"
	ReasonNotStrictVerified        = "not_strict_verified"
	ReasonExecutionModeNotStrict   = "execution_mode_not_strict"
)

// VerifyInputs carries the recorded attestation, the finalized session
// view used to recompute outcomeHash, and the configured signer address
// operators expect this deployment to produce.
type VerifyInputs struct {
	Attestation      *domain.Attestation
	Session          *domain.Session
	Turns            []domain.SessionTurn
	ConfiguredSigner string // lowercased hex address, empty to skip the check
}

// Verify recomputes payloadHash and outcomeHash, recovers the signer from
// the recorded signature, and checks strictVerified/executionMode. It
// returns nil on success or a *VerifyError listing every failing check.
func Verify(in VerifyInputs) error {
	var reasons []string

	payloadHash, err := canon.HashHex(in.Attestation.Payload)
	if err != nil {
		reasons = append(reasons, ReasonPayloadHashMismatch)
	} else if !constantTimeEqualString(payloadHash, in.Attestation.PayloadHash) {
		reasons = append(reasons, ReasonPayloadHashMismatch)
	}

	sig, sigErr := decodeSignature(in.Attestation.Signature)
	if sigErr != nil {
		reasons = append(reasons, ReasonSignatureInvalid)
	} else {
		recovered, err := canon.RecoverPersonal([]byte(in.Attestation.PayloadHash), sig)
		if err != nil {
			reasons = append(reasons, ReasonSignatureInvalid)
		} else {
			recovered = strings.ToLower(recovered)
			if !constantTimeEqualString(recovered, strings.ToLower(in.Attestation.SignerAddress)) {
				reasons = append(reasons, ReasonSignerMismatch)
			}
			if in.ConfiguredSigner != "" && !constantTimeEqualString(recovered, strings.ToLower(in.ConfiguredSigner)) {
				reasons = append(reasons, ReasonConfiguredSignerMismatch)
			}
		}
	}

	recordedOutcomeHash, _ := in.Attestation.Payload["outcomeHash"].(string)
	recomputedOutcomeHash, err := OutcomeHash(OutcomeInputs{
		SessionID: in.Session.ID,
		Status:    in.Session.Status,
		Terms:     in.Session.Terms,
		Turns:     in.Turns,
	})
	if err != nil || !constantTimeEqualString(recomputedOutcomeHash, recordedOutcomeHash) {
		reasons = append(reasons, ReasonOutcomeHashMismatch)
	}

	if strictVerified, _ := in.Attestation.Payload["strictVerified"].(bool); !strictVerified {
		reasons = append(reasons, ReasonNotStrictVerified)
	}
	if mode, _ := in.Attestation.Payload["executionMode"].(string); mode != "strict" {
		reasons = append(reasons, ReasonExecutionModeNotStrict)
	}

	if len(reasons) > 0 {
		return &VerifyError{Reasons: reasons}
	}
	return nil
}

func constantTimeEqualString(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func decodeSignature(sig string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(sig, "0x"))
}
