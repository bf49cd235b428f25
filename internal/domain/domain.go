// Package domain holds the shared entity types of the negotiation
// coordinator: Agent, Session, SealedInput, SessionTurn, Attestation,
// and Escrow. These are schemaless-at-the-edges records —
// free-form metadata/terms maps are parsed into typed views by the
// owning component (policy, escrow, negotiation) rather than modeled as
// polymorphic entities here.
package domain

import "time"

// AgentHealth is the last-observed health status of an agent's endpoint.
type AgentHealth string

const (
	HealthUnknown   AgentHealth = "unknown"
	HealthHealthy   AgentHealth = "healthy"
	HealthUnhealthy AgentHealth = "unhealthy"
)

// Agent is a registered negotiation participant.
type Agent struct {
	ID               string
	Name             string
	Endpoint         string
	APIKey           string
	PayoutAddress    string
	Enabled          bool
	Metadata         map[string]any
	LastHealthStatus AgentHealth
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SessionStatus is a node in the lifecycle graph.
type SessionStatus string

const (
	SessionCreated      SessionStatus = "created"
	SessionAccepted     SessionStatus = "accepted"
	SessionPrepared      SessionStatus = "prepared"
	SessionActive        SessionStatus = "active"
	SessionAgreed        SessionStatus = "agreed"
	SessionNoAgreement   SessionStatus = "no_agreement"
	SessionFailed        SessionStatus = "failed"
	SessionSettled       SessionStatus = "settled"
	SessionRefunded      SessionStatus = "refunded"
	SessionCancelled     SessionStatus = "cancelled"
)

// Session is one negotiation session between two agents.
type Session struct {
	ID                  string
	Topic               string
	Status              SessionStatus
	ProposerAgentID     string
	CounterpartyAgentID string // empty until accept
	Terms               map[string]any
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Participants returns the non-empty participant ids.
func (s *Session) Participants() []string {
	out := []string{s.ProposerAgentID}
	if s.CounterpartyAgentID != "" {
		out = append(out, s.CounterpartyAgentID)
	}
	return out
}

// IsParticipant reports whether agentID is bound to this session.
func (s *Session) IsParticipant(agentID string) bool {
	return agentID != "" && (agentID == s.ProposerAgentID || agentID == s.CounterpartyAgentID)
}

// TurnStatus is the outcome recorded for a single negotiation turn.
type TurnStatus string

const (
	TurnContinue     TurnStatus = "continue"
	TurnAgreed       TurnStatus = "agreed"
	TurnNoAgreement  TurnStatus = "no_agreement"
	TurnFailed       TurnStatus = "failed"
)

// SessionTurn is the public, privacy-sanitized per-turn summary.
type SessionTurn struct {
	SessionID string
	Turn      int
	Status    TurnStatus
	Summary   map[string]any
	CreatedAt time.Time
}

// Attestation is the session-level signed statement.
type Attestation struct {
	SessionID     string
	SignerAddress string
	PayloadHash   string
	Signature     string
	Payload       map[string]any
	CreatedAt     time.Time
}

// EscrowStatus is a node in the escrow state machine.
type EscrowStatus string

const (
	EscrowPrepared          EscrowStatus = "prepared"
	EscrowFundingPending    EscrowStatus = "funding_pending"
	EscrowFunded            EscrowStatus = "funded"
	EscrowSettlementPending EscrowStatus = "settlement_pending"
	EscrowRefundPending     EscrowStatus = "refund_pending"
	EscrowSettled           EscrowStatus = "settled"
	EscrowRefunded          EscrowStatus = "refunded"
	EscrowFailed            EscrowStatus = "failed"
)

// Escrow is the deposit/settlement ledger for one session.
type Escrow struct {
	SessionID            string
	ContractAddress      string
	TokenAddress         string
	StakeAmount          string // decimal-integer string, atomic units
	Status               EscrowStatus
	TxHash               string
	PlayerAAgentID       string
	PlayerBAgentID       string
	PlayerADeposited     bool
	PlayerBDeposited     bool
	SettlementAttempts   int
	LastSettlementError  string
	LastSettlementAt     time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsFinal reports whether status is a terminal escrow state.
func (s EscrowStatus) IsFinal() bool {
	return s == EscrowSettled || s == EscrowRefunded
}

// IsTerminal reports whether status is a terminal session state.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionAgreed, SessionNoAgreement, SessionFailed, SessionSettled, SessionRefunded, SessionCancelled:
		return true
	default:
		return false
	}
}
