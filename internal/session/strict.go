package session

import (
	"github.com/molt-labs/molt-negotiation/internal/agentmeta"
	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
)

// StrictInputs carries the facts needed to evaluate the strict-session
// policy: both participants and the current policy snapshot.
type StrictInputs struct {
	Proposer     *domain.Agent
	Counterparty *domain.Agent
	Snapshot     policy.Snapshot
}

// EvaluateStrictPolicy runs every configured strict-session rule and
// returns the accumulated list of failure reasons (empty when the policy
// holds).
func EvaluateStrictPolicy(in StrictInputs) []string {
	var reasons []string

	if in.Proposer == nil || in.Counterparty == nil {
		return append(reasons, "participants_incomplete")
	}
	a, b := in.Proposer, in.Counterparty

	if in.Snapshot.RequireEndpointMode {
		if _, err := agentmeta.ParseEndpoint(a.Endpoint, in.Snapshot.RequireEndpointNegotiation); err != nil {
			reasons = append(reasons, "proposer_endpoint_invalid")
		}
		if _, err := agentmeta.ParseEndpoint(b.Endpoint, in.Snapshot.RequireEndpointNegotiation); err != nil {
			reasons = append(reasons, "counterparty_endpoint_invalid")
		}
	}

	if in.Snapshot.RequireSandboxParity {
		sa, okA := agentmeta.ParseSandbox(a.Metadata)
		sb, okB := agentmeta.ParseSandbox(b.Metadata)
		if !okA || !okB {
			reasons = append(reasons, "sandbox_metadata_missing")
		} else if !agentmeta.SandboxesMatch(sa, sb) {
			reasons = append(reasons, "sandbox_mismatch")
		}
	}

	var ecA, ecB agentmeta.EigenCompute
	var okA, okB bool
	if in.Snapshot.RequireEigenCompute {
		ecA, okA = agentmeta.ParseEigenCompute(a.Metadata)
		ecB, okB = agentmeta.ParseEigenCompute(b.Metadata)
		if !okA || !okB {
			reasons = append(reasons, "eigencompute_metadata_missing")
		} else {
			if in.Snapshot.RequireEigenComputeEnvironment && ecA.Environment != ecB.Environment {
				reasons = append(reasons, "eigencompute_environment_mismatch")
			}
			if in.Snapshot.RequireEigenComputeImageDigest && ecA.ImageDigest != ecB.ImageDigest {
				reasons = append(reasons, "eigencompute_image_digest_mismatch")
			}
			if in.Snapshot.RequireEigenComputeSigner && (ecA.SignerAddress == "" || ecB.SignerAddress == "") {
				reasons = append(reasons, "eigencompute_signer_missing")
			}
		}
	}

	if in.Snapshot.RequireIndependentAgents {
		if a.ID == b.ID {
			reasons = append(reasons, "agents_not_independent_id")
		}
		if hostOf(a.Endpoint) != "" && hostOf(a.Endpoint) == hostOf(b.Endpoint) {
			reasons = append(reasons, "agents_not_independent_endpoint")
		}
		if a.PayoutAddress != "" && a.PayoutAddress == b.PayoutAddress {
			reasons = append(reasons, "agents_not_independent_payout")
		}
		if okA && okB && ecA.AppID != "" && ecA.AppID == ecB.AppID {
			reasons = append(reasons, "agents_not_independent_app_id")
		}
		if okA && okB && ecA.SignerAddress != "" && ecA.SignerAddress == ecB.SignerAddress {
			reasons = append(reasons, "agents_not_independent_signer")
		}
	}

	if in.Snapshot.RequireEigenAppBinding {
		if !okA {
			ecA, okA = agentmeta.ParseEigenCompute(a.Metadata)
		}
		if !okB {
			ecB, okB = agentmeta.ParseEigenCompute(b.Metadata)
		}
		if !okA || !inSet(in.Snapshot.EigenAppBindingSet, ecA.AppID) {
			reasons = append(reasons, "proposer_app_not_bound")
		}
		if !okB || !inSet(in.Snapshot.EigenAppBindingSet, ecB.AppID) {
			reasons = append(reasons, "counterparty_app_not_bound")
		}
	}

	return reasons
}

// CheckStrictPolicy wraps EvaluateStrictPolicy in the apierr.Policy error
// shape used by the HTTP transport.
func CheckStrictPolicy(in StrictInputs) error {
	reasons := EvaluateStrictPolicy(in)
	if len(reasons) == 0 {
		return nil
	}
	return apierr.Policy(apierr.CodeStrictPolicyFailed, "strict session policy failed", reasons)
}

func hostOf(endpoint string) string {
	u, err := agentmeta.ParseEndpoint(endpoint, false)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func inSet(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
