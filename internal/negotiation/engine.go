package negotiation

import (
	"context"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/agentmeta"
	"github.com/molt-labs/molt-negotiation/internal/apierr"
	"github.com/molt-labs/molt-negotiation/internal/decision"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
	"github.com/molt-labs/molt-negotiation/internal/privacy"
	"github.com/molt-labs/molt-negotiation/internal/runtime"
	"github.com/molt-labs/molt-negotiation/internal/sealed"
)

const (
	executionModeEndpoint = "endpoint"
	executionModeFallback = "fallback"

	defaultMaxTurns = 8
	minMaxTurns     = 1
	maxMaxTurns     = 50
)

type sideWeights struct {
	buyer  float64
	seller float64
}

type engineConfig struct {
	maxTurns int
}

// ResolveMaxTurns reads terms["negotiation"]["maxTurns"] (when present)
// and clamps it to [1, 50], defaulting to 8.
func ResolveMaxTurns(terms map[string]any) int {
	n := defaultMaxTurns
	if neg, ok := terms["negotiation"].(map[string]any); ok {
		switch v := neg["maxTurns"].(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		}
	}
	if n < minMaxTurns {
		return minMaxTurns
	}
	if n > maxMaxTurns {
		return maxMaxTurns
	}
	return n
}

// RunInputs is everything negotiation.Run needs to drive one session's
// negotiation to completion.
type RunInputs struct {
	Session      *domain.Session
	Proposer     *domain.Agent
	Counterparty *domain.Agent

	ProposerEnvelope     *sealed.Envelope
	CounterpartyEnvelope *sealed.Envelope
	SealedStore          *sealed.Store

	Snapshot        policy.Snapshot
	DecisionClient  *decision.Client
	RuntimeVerifier *runtime.Verifier
	Now             time.Time
}

// Result is the outcome of one negotiation run: the finalized session
// status, the full replacement turn history, and the negotiation summary
// to merge into session.Terms["negotiation"].
type Result struct {
	FinalStatus domain.SessionStatus
	Turns       []*domain.SessionTurn
	Summary     map[string]any
}

// Run executes a negotiation end to end: precondition checks, role
// identification, the endpoint loop or its fallback, and the post-engine
// privacy assertion and terms patch. It does not persist anything or
// transition the session in the store; the caller applies Result against
// its own store/session transaction.
func Run(ctx context.Context, in RunInputs) (*Result, error) {
	if in.Session.Status != domain.SessionActive {
		return nil, apierr.Validation(apierr.CodeNegotiationNotActive,
			"session must be active to negotiate")
	}
	if in.ProposerEnvelope == nil || in.CounterpartyEnvelope == nil {
		return nil, apierr.Validation(apierr.CodePrivateContextRequired,
			"both participants must upload a sealed private context before negotiating")
	}

	var proposerCtx, counterpartyCtx PrivateContext
	if err := in.SealedStore.Unseal(in.Session.ID, in.Proposer.ID, in.ProposerEnvelope, &proposerCtx); err != nil {
		return nil, apierr.Crypto(apierr.CodePrivateContextRequired, "failed to unseal proposer private context")
	}
	if err := in.SealedStore.Unseal(in.Session.ID, in.Counterparty.ID, in.CounterpartyEnvelope, &counterpartyCtx); err != nil {
		return nil, apierr.Crypto(apierr.CodePrivateContextRequired, "failed to unseal counterparty private context")
	}

	sides, err := IdentifyRoles(in.Proposer.ID, proposerCtx, in.Counterparty.ID, counterpartyCtx)
	if err != nil {
		return nil, err
	}

	buyerWeight, sellerWeight := Weights(sides.Buyer, sides.Seller)
	weights := sideWeights{buyer: buyerWeight, seller: sellerWeight}
	cfg := engineConfig{maxTurns: ResolveMaxTurns(in.Session.Terms)}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		turns          []*domain.SessionTurn
		finalStatus    domain.SessionStatus
		executionMode  string
		fallbackReason string
	)

	if in.Snapshot.RequireEndpointNegotiation {
		agentByID := map[string]*domain.Agent{in.Proposer.ID: in.Proposer, in.Counterparty.ID: in.Counterparty}
		buyerAgent := toAgentRef(agentByID[sides.BuyerAgentID])
		sellerAgent := toAgentRef(agentByID[sides.SellerAgentID])
		buyerEC, _ := agentmeta.ParseEigenCompute(agentByID[sides.BuyerAgentID].Metadata)
		sellerEC, _ := agentmeta.ParseEigenCompute(agentByID[sides.SellerAgentID].Metadata)

		deps := endpointDeps{
			SessionID: in.Session.ID, Topic: in.Session.Topic,
			Client: in.DecisionClient, RuntimeVerifier: in.RuntimeVerifier, Snapshot: in.Snapshot,
			BuyerAgent: buyerAgent, SellerAgent: sellerAgent, BuyerEC: buyerEC, SellerEC: sellerEC,
		}

		endpointTurns, status, runErr := runEndpoint(ctx, deps, sides, weights, cfg, now)
		if runErr != nil {
			if !in.Snapshot.AllowEngineFallback {
				turns = endpointTurns
				finalStatus = domain.SessionFailed
				executionMode = executionModeEndpoint
			} else {
				fallbackReason = runErr.Error()
				turns = runFallback(sides, weights, cfg, now)
				finalStatus = finalStatusOf(turns)
				executionMode = executionModeFallback
			}
		} else {
			turns = endpointTurns
			finalStatus = status
			executionMode = executionModeEndpoint
		}
	} else {
		turns = runFallback(sides, weights, cfg, now)
		finalStatus = finalStatusOf(turns)
		executionMode = executionModeFallback
	}

	for _, t := range turns {
		t.SessionID = in.Session.ID
	}

	summary := map[string]any{
		"status":        string(finalStatus),
		"turnCount":     len(turns),
		"agreement":     finalStatus == domain.SessionAgreed,
		"executionMode": executionMode,
		"completedAt":   now,
	}
	if fallbackReason != "" {
		summary["fallbackReason"] = fallbackReason
	}
	if len(turns) > 0 {
		summary["proofSummary"] = turns[len(turns)-1].Summary["proof"]
	}

	if err := privacy.AssertClean(summary, in.Snapshot.RequirePrivacyRedaction); err != nil {
		return nil, err
	}
	for _, t := range turns {
		if err := privacy.AssertClean(t.Summary, in.Snapshot.RequirePrivacyRedaction); err != nil {
			return nil, err
		}
	}

	return &Result{FinalStatus: finalStatus, Turns: turns, Summary: summary}, nil
}

func finalStatusOf(turns []*domain.SessionTurn) domain.SessionStatus {
	if len(turns) == 0 {
		return domain.SessionNoAgreement
	}
	switch turns[len(turns)-1].Status {
	case domain.TurnAgreed:
		return domain.SessionAgreed
	case domain.TurnFailed:
		return domain.SessionFailed
	default:
		return domain.SessionNoAgreement
	}
}

func toAgentRef(a *domain.Agent) decision.AgentRef {
	return decision.AgentRef{ID: a.ID, Endpoint: a.Endpoint, APIKey: a.APIKey, Metadata: a.Metadata}
}
