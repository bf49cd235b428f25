package policy

import (
	"fmt"
	"strings"
)

// ReadinessInputs carries the facts, beyond the Snapshot itself, needed to
// decide whether the process may start in production.
type ReadinessInputs struct {
	Production      bool
	HasSealingKey   bool
	HasSignerKey    bool
	AllowedReadRoles []string
}

// ErrLaunchReadinessFailed is returned by CheckLaunchReadiness when one or
// more expectations are unmet; its message embeds the comma-separated
// reason list.
type ErrLaunchReadinessFailed struct {
	Reasons []string
}

func (e *ErrLaunchReadinessFailed) Error() string {
	return "launch_readiness_failed:" + strings.Join(e.Reasons, ",")
}

// CheckLaunchReadiness evaluates the one-shot, startup-time gate: in
// production, the snapshot plus the presence of sealing/signing keys must
// all satisfy fixed expectations, otherwise startup fails.
func CheckLaunchReadiness(snap Snapshot, in ReadinessInputs) error {
	if !in.Production {
		return nil
	}

	var reasons []string
	if !in.HasSealingKey {
		reasons = append(reasons, "missing_sealing_key")
	}
	if !in.HasSignerKey {
		reasons = append(reasons, "missing_signer_key")
	}
	if snap.AllowInsecureDevKeys {
		reasons = append(reasons, "insecure_dev_keys_allowed")
	}
	if !snap.RequireEndpointMode {
		reasons = append(reasons, "endpoint_mode_not_required")
	}
	if !snap.RequireTurnProof {
		reasons = append(reasons, "turn_proof_not_required")
	}
	if !snap.RequireAttestation {
		reasons = append(reasons, "attestation_not_required")
	}
	if !snap.RequirePrivacyRedaction {
		reasons = append(reasons, "privacy_redaction_not_required")
	}
	if snap.RuntimeAttestationRemoteVerify && snap.RuntimeAttestationVerifierURL == "" {
		reasons = append(reasons, "runtime_attestation_verifier_url_unset")
	}

	if len(reasons) > 0 {
		return &ErrLaunchReadinessFailed{Reasons: reasons}
	}
	return nil
}

// String renders a human-readable description for logs, never secrets.
func (in ReadinessInputs) String() string {
	return fmt.Sprintf("production=%t hasSealingKey=%t hasSignerKey=%t", in.Production, in.HasSealingKey, in.HasSignerKey)
}
