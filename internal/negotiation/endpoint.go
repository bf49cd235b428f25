package negotiation

import (
	"context"
	"math"
	"time"

	"github.com/molt-labs/molt-negotiation/internal/agentmeta"
	"github.com/molt-labs/molt-negotiation/internal/decision"
	"github.com/molt-labs/molt-negotiation/internal/domain"
	"github.com/molt-labs/molt-negotiation/internal/policy"
	"github.com/molt-labs/molt-negotiation/internal/runtime"
)

// EndpointFailedError marks an endpoint-loop failure with the proof/
// validation reason that caused it, so the caller can decide whether a
// fallback run is permitted.
type EndpointFailedError struct {
	Reason string
}

func (e *EndpointFailedError) Error() string { return "negotiation endpoint failed: " + e.Reason }

func endpointFail(reason string) *EndpointFailedError { return &EndpointFailedError{Reason: reason} }

// endpointDeps are the collaborators the endpoint-driven turn loop calls
// out to: the outbound decision client and the runtime-attestation
// verifier, both already constructed by the caller.
type endpointDeps struct {
	SessionID      string
	Topic          string
	Client         *decision.Client
	RuntimeVerifier *runtime.Verifier
	Snapshot       policy.Snapshot
	BuyerAgent     decision.AgentRef
	SellerAgent    decision.AgentRef
	BuyerEC        agentmeta.EigenCompute
	SellerEC       agentmeta.EigenCompute
}

// runEndpoint implements the endpoint-driven turn loop. A non-nil error
// always carries *EndpointFailedError.
func runEndpoint(ctx context.Context, deps endpointDeps, sides Sides, weights sideWeights, cfg engineConfig, now time.Time) ([]*domain.SessionTurn, domain.SessionStatus, error) {
	buyerOffer := round4(InitialBuyerOffer(sides.Buyer))
	sellerAsk := round4(InitialSellerAsk(sides.Seller))

	var turns []*domain.SessionTurn

	for turn := 1; turn <= cfg.maxTurns; turn++ {
		nextBuyerOffer, buyerProofSummary, err := deps.decideSide(ctx, "buyer", turn, cfg.maxTurns, sides.Buyer, deps.BuyerAgent, deps.BuyerEC, buyerOffer, now)
		if err != nil {
			turns = append(turns, failedTurn(turn, err.Reason, now))
			return turns, domain.SessionFailed, err
		}
		if !isFinite(nextBuyerOffer) || nextBuyerOffer > sides.Buyer.ReservationPrice || (turn > 1 && nextBuyerOffer < buyerOffer) {
			reason := "buyer_offer_invalid"
			turns = append(turns, failedTurn(turn, reason, now))
			return turns, domain.SessionFailed, endpointFail(reason)
		}
		buyerOffer = round4(nextBuyerOffer)

		nextSellerAsk, sellerProofSummary, serr := deps.decideSide(ctx, "seller", turn, cfg.maxTurns, sides.Seller, deps.SellerAgent, deps.SellerEC, sellerAsk, now)
		if serr != nil {
			turns = append(turns, failedTurn(turn, serr.Reason, now))
			return turns, domain.SessionFailed, serr
		}
		if !isFinite(nextSellerAsk) || nextSellerAsk < sides.Seller.ReservationPrice || (turn > 1 && nextSellerAsk > sellerAsk) {
			reason := "seller_ask_invalid"
			turns = append(turns, failedTurn(turn, reason, now))
			return turns, domain.SessionFailed, endpointFail(reason)
		}
		sellerAsk = round4(nextSellerAsk)

		proofSummary := map[string]any{"buyer": buyerProofSummary, "seller": sellerProofSummary}

		if buyerOffer >= sellerAsk {
			price, ok := OptimalPrice(OptimizerInputs{
				BuyerOffer: buyerOffer, SellerAsk: sellerAsk,
				BuyerReservation: sides.Buyer.ReservationPrice, SellerReservation: sides.Seller.ReservationPrice,
				BuyerWeight: weights.buyer, SellerWeight: weights.seller,
			})
			if ok {
				turns = append(turns, endpointTurn(turn, domain.TurnAgreed, buyerOffer, sellerAsk, &price, proofSummary, now))
				return turns, domain.SessionAgreed, nil
			}
			// offers crossed but the reservations leave no feasible
			// interval; keep looping instead of calling it here.
		}

		if turn == cfg.maxTurns {
			turns = append(turns, endpointTurn(turn, domain.TurnNoAgreement, buyerOffer, sellerAsk, nil, proofSummary, now))
			return turns, domain.SessionNoAgreement, nil
		}

		turns = append(turns, endpointTurn(turn, domain.TurnContinue, buyerOffer, sellerAsk, nil, proofSummary, now))
	}

	// cfg.maxTurns is clamped >= 1, so the loop above always returns.
	return turns, domain.SessionNoAgreement, nil
}

// decideSide issues one side's decision request and verifies its proof
// and (when required) runtime attestation, returning the side's offer and
// a public, privacy-safe proof summary.
func (d endpointDeps) decideSide(ctx context.Context, role string, turn, maxTurns int, privateCtx PrivateContext, agent decision.AgentRef, ec agentmeta.EigenCompute, currentOffer float64, now time.Time) (float64, map[string]any, *EndpointFailedError) {
	binding := map[string]any{}
	if ec.AppID != "" {
		binding["appId"] = ec.AppID
		binding["environment"] = ec.Environment
		binding["imageDigest"] = ec.ImageDigest
		binding["signerAddress"] = ec.SignerAddress
	}

	dec, err := d.Client.Decide(ctx, decision.TurnRequest{
		SessionID:            d.SessionID,
		Topic:                d.Topic,
		Turn:                 turn,
		MaxTurns:             maxTurns,
		Role:                 role,
		Agent:                agent,
		PrivateContext:       privateCtx,
		PublicState:          map[string]any{"currentOffer": currentOffer},
		ExpectedProofBinding: binding,
	})
	if err != nil {
		return 0, nil, endpointFail("turn_decision_request_failed")
	}

	if d.Snapshot.RequireTurnProof {
		verified, perr := decision.Verify(dec.Proof, decision.ExpectedProof{
			SessionID: d.SessionID, Turn: turn, AgentID: agent.ID, Role: role, Offer: dec.Offer,
			Challenge: dec.Challenge, AppID: ec.AppID, Environment: ec.Environment, ImageDigest: ec.ImageDigest,
			SignerAddress: ec.SignerAddress, MaxSkewMs: d.Snapshot.TurnProofMaxSkewMs, Now: now,
		})
		if perr != nil {
			return 0, nil, endpointFail(perr.Reason)
		}

		if d.Snapshot.RequireRuntimeAttestation {
			var evidence *runtime.Evidence
			if dec.Proof != nil {
				if claims, ok := dec.Proof.Evidence.(map[string]any); ok {
					evidence = &runtime.Evidence{Claims: claims}
				}
			}
			rerr := d.RuntimeVerifier.Verify(ctx, true, d.Snapshot.RuntimeAttestationRemoteVerify, d.Snapshot.RuntimeAttestationVerifierURL, evidence, runtime.Expected{
				DecisionHash: verified.DecisionHash, AppID: ec.AppID, Environment: ec.Environment,
				ImageDigest: ec.ImageDigest, SignerAddress: ec.SignerAddress,
				MaxAgeMs: d.Snapshot.RuntimeAttestationMaxAgeMs, Now: now,
			})
			if rerr != nil {
				if re, ok := rerr.(*runtime.VerifyError); ok {
					return 0, nil, endpointFail(re.Reason)
				}
				return 0, nil, endpointFail("runtime_attestation_error")
			}
		}

		return dec.Offer, map[string]any{"signer": verified.Signer, "decisionHash": verified.DecisionHash}, nil
	}

	return dec.Offer, map[string]any{}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func failedTurn(turn int, reason string, now time.Time) *domain.SessionTurn {
	return &domain.SessionTurn{
		Turn:   turn,
		Status: domain.TurnFailed,
		Summary: map[string]any{
			"reason": reason,
			"mode":   executionModeEndpoint,
		},
		CreatedAt: now,
	}
}

func endpointTurn(turn int, status domain.TurnStatus, buyerOffer, sellerAsk float64, agreedPrice *float64, proofSummary map[string]any, now time.Time) *domain.SessionTurn {
	summary := map[string]any{
		"buyerOffer": buyerOffer,
		"sellerAsk":  sellerAsk,
		"mode":       executionModeEndpoint,
		"proof":      proofSummary,
	}
	if agreedPrice != nil {
		summary["agreedPrice"] = *agreedPrice
	}
	return &domain.SessionTurn{Turn: turn, Status: status, Summary: summary, CreatedAt: now}
}
