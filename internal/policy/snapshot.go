// Package policy resolves the strict-mode flag tuple from the process
// environment on every call — never cached across requests, since tests
// and operators mutate it between calls. It also evaluates the one-shot,
// startup-time launch-readiness gate.
package policy

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix namespaces every strict-mode environment variable.
const EnvPrefix = "NEG_STRICT_"

// Snapshot is the tuple of boolean/integer strict-mode flags in effect for
// a single call. It is embedded in every attestation via its policy hash.
type Snapshot struct {
	RequireEndpointMode            bool
	RequireEndpointNegotiation     bool
	RequireTurnProof               bool
	TurnProofMaxSkewMs             int64
	RequireRuntimeAttestation      bool
	RuntimeAttestationRemoteVerify bool
	RuntimeAttestationMaxAgeMs     int64
	RuntimeAttestationVerifierURL  string
	AllowEngineFallback            bool
	RequireEigenCompute            bool
	RequireSandboxParity           bool
	RequireEigenComputeEnvironment bool
	RequireEigenComputeImageDigest bool
	RequireEigenComputeSigner      bool
	RequireIndependentAgents       bool
	RequireEigenAppBinding         bool
	EigenAppBindingSet             []string
	AllowSimpleMode                bool
	RequireAttestation             bool
	RequirePrivacyRedaction        bool
	AllowInsecureDevKeys           bool
}

// Resolve reads the environment and returns the current Snapshot. Call
// this fresh at the start of every request; do not cache the result
// beyond the lifetime of a single call.
func Resolve() Snapshot {
	return Snapshot{
		RequireEndpointMode:            envBool("REQUIRE_ENDPOINT_MODE", false),
		RequireEndpointNegotiation:     envBool("REQUIRE_ENDPOINT_NEGOTIATION", false),
		RequireTurnProof:               envBool("REQUIRE_TURN_PROOF", false),
		TurnProofMaxSkewMs:             clamp(envInt64("TURN_PROOF_MAX_SKEW_MS", 60_000), time.Second.Milliseconds(), time.Hour.Milliseconds()),
		RequireRuntimeAttestation:      envBool("REQUIRE_RUNTIME_ATTESTATION", false),
		RuntimeAttestationRemoteVerify: envBool("RUNTIME_ATTESTATION_REMOTE_VERIFY", false),
		RuntimeAttestationMaxAgeMs:     clamp(envInt64("RUNTIME_ATTESTATION_MAX_AGE_MS", 5*time.Minute.Milliseconds()), 5*time.Second.Milliseconds(), 24*time.Hour.Milliseconds()),
		RuntimeAttestationVerifierURL:  resolveVerifierURL(),
		AllowEngineFallback:            envBool("ALLOW_ENGINE_FALLBACK", true),
		RequireEigenCompute:            envBool("REQUIRE_EIGENCOMPUTE", false),
		RequireSandboxParity:           envBool("REQUIRE_SANDBOX_PARITY", false),
		RequireEigenComputeEnvironment: envBool("REQUIRE_EIGENCOMPUTE_ENVIRONMENT", false),
		RequireEigenComputeImageDigest: envBool("REQUIRE_EIGENCOMPUTE_IMAGE_DIGEST", false),
		RequireEigenComputeSigner:      envBool("REQUIRE_EIGENCOMPUTE_SIGNER", false),
		RequireIndependentAgents:       envBool("REQUIRE_INDEPENDENT_AGENTS", false),
		RequireEigenAppBinding:         envBool("REQUIRE_EIGEN_APP_BINDING", false),
		EigenAppBindingSet:             envList("EIGEN_APP_BINDING_SET"),
		AllowSimpleMode:                envBool("ALLOW_SIMPLE_MODE", true),
		RequireAttestation:             envBool("REQUIRE_ATTESTATION", false),
		RequirePrivacyRedaction:        envBool("REQUIRE_PRIVACY_REDACTION", false),
		AllowInsecureDevKeys:           envBool("ALLOW_INSECURE_DEV_KEYS", true),
	}
}

func resolveVerifierURL() string {
	if v := os.Getenv(EnvPrefix + "RUNTIME_ATTESTATION_VERIFIER_URL"); v != "" {
		return v
	}
	return os.Getenv("NEG_RUNTIME_VERIFIER_URL")
}

func envBool(name string, def bool) bool {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(name string, def int64) int64 {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envList(name string) []string {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
