// Package apierr defines the error taxonomy shared across the negotiation
// coordinator: a Kind (validation/scope/policy/external/
// crypto/system) plus a stable Code string, translated by the HTTP
// transport into the {ok:false,error:{code,message,details}} envelope.
package apierr

import "fmt"

// Kind classifies an Error for HTTP status mapping and retry semantics.
type Kind string

const (
	KindValidation Kind = "validation"
	KindScope      Kind = "scope"
	KindPolicy     Kind = "policy"
	KindExternal   Kind = "external"
	KindCrypto     Kind = "crypto"
	KindSystem     Kind = "system"
)

// Stable error codes spanning the full error taxonomy.
const (
	CodeInvalidRequest               = "invalid_request"
	CodeUnauthorized                 = "unauthorized"
	CodeNotFound                     = "not_found"
	CodeStrictPolicyFailed           = "strict_policy_failed"
	CodeEndpointModeRequired         = "endpoint_mode_required"
	CodeSandboxMetadataRequired      = "sandbox_metadata_required"
	CodeEigenComputeMetadataRequired = "eigencompute_metadata_required"
	CodeActorScopeViolation          = "actor_scope_violation"
	CodeInvalidStateTransition       = "invalid_state_transition"
	CodePrepareRequiredBeforeStart   = "prepare_required_before_start"
	CodeFundingPending               = "funding_pending"
	CodeAttestationRequired          = "attestation_required"
	CodeAttestationVerificationFailed = "attestation_verification_failed"
	CodeTrustFilterExcluded          = "trust_filter_excluded"
	CodePrivateContextRequired       = "private_context_required"
	CodeNegotiationNotActive         = "negotiation_not_active"
	CodeRolesMustIncludeBuyerSeller  = "roles_must_include_buyer_and_seller"
	CodePrivacyRedactionViolation    = "privacy_redaction_violation"
	CodeHealthProbeFailed            = "health_probe_failed"
	CodeAgentIDConflict              = "agent_id_conflict"
	CodeInternalError                = "internal_error"
)

// Error is a typed application error carrying the HTTP-facing code and
// optional structured details (e.g. strict-policy failure reasons).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func WithDetails(kind Kind, code, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

// Validation, Scope, Policy, External, Crypto, and System are
// convenience constructors for the six error kinds.
func Validation(code, message string) *Error { return New(KindValidation, code, message) }
func Scope(code, message string) *Error      { return New(KindScope, code, message) }
func Policy(code, message string, reasons []string) *Error {
	return WithDetails(KindPolicy, code, message, map[string]any{"reasons": reasons})
}
func External(code, message string) *Error { return New(KindExternal, code, message) }
func Crypto(code, message string) *Error   { return New(KindCrypto, code, message) }
func System(code, message string) *Error   { return New(KindSystem, code, message) }
