// Package negotiation implements the negotiation engine: an endpoint-
// driven turn loop with a deterministic fallback, a Nash-weighted price
// optimizer, and the post-engine persistence/attestation handoff.
package negotiation

import (
	"github.com/molt-labs/molt-negotiation/internal/apierr"
)

// PrivateContext is the unsealed per-agent negotiation input. It never
// leaves the process in cleartext outside of an agent's own decision
// request.
type PrivateContext struct {
	Role             string   `json:"role"` // "buyer" or "seller"
	ReservationPrice float64  `json:"reservationPrice"`
	InitialPrice     *float64 `json:"initialPrice,omitempty"`
	Step             float64  `json:"step,omitempty"`

	// Income and Credit are pre-normalized to [0,1] by the submitting
	// agent; there is no canonical raw-income scale for the coordinator
	// to normalize against, so it trusts the agent's own normalization
	// and only clamps defensively in bargainingPower.
	Income  float64 `json:"income,omitempty"`
	Credit  float64 `json:"credit,omitempty"`
	Urgency float64 `json:"urgency,omitempty"`
}

// Sides holds the role-partitioned private contexts and their owning
// agent ids.
type Sides struct {
	BuyerAgentID  string
	SellerAgentID string
	Buyer         PrivateContext
	Seller        PrivateContext
}

// IdentifyRoles partitions two contexts into buyer/seller, returning
// roles_must_include_buyer_and_seller when they don't form exactly one of
// each.
func IdentifyRoles(agentAID string, ctxA PrivateContext, agentBID string, ctxB PrivateContext) (Sides, error) {
	switch {
	case ctxA.Role == "buyer" && ctxB.Role == "seller":
		return Sides{BuyerAgentID: agentAID, SellerAgentID: agentBID, Buyer: ctxA, Seller: ctxB}, nil
	case ctxA.Role == "seller" && ctxB.Role == "buyer":
		return Sides{BuyerAgentID: agentBID, SellerAgentID: agentAID, Buyer: ctxB, Seller: ctxA}, nil
	default:
		return Sides{}, apierr.Validation(apierr.CodeRolesMustIncludeBuyerSeller,
			"exactly one participant must declare role buyer and the other seller")
	}
}

const defaultStep = 1.0

func stepOf(ctx PrivateContext) float64 {
	if ctx.Step <= 0 {
		return defaultStep
	}
	return ctx.Step
}

// InitialBuyerOffer returns the buyer's opening offer.
func InitialBuyerOffer(ctx PrivateContext) float64 {
	if ctx.InitialPrice != nil {
		return min(ctx.ReservationPrice, *ctx.InitialPrice)
	}
	return min(ctx.ReservationPrice, ctx.ReservationPrice-stepOf(ctx)*2)
}

// InitialSellerAsk returns the seller's opening ask.
func InitialSellerAsk(ctx PrivateContext) float64 {
	if ctx.InitialPrice != nil {
		return max(ctx.ReservationPrice, *ctx.InitialPrice)
	}
	return max(ctx.ReservationPrice, ctx.ReservationPrice+stepOf(ctx)*2)
}

// bargainingPower computes a side's raw weight: 0.7*leverage +
// 0.3*(1-urgency), where leverage is the mean of the side's normalized
// income and credit. Inputs are clamped to [0,1] before combining, since
// an agent is not trusted to have normalized correctly.
func bargainingPower(ctx PrivateContext) float64 {
	leverage := clamp01((ctx.Income + ctx.Credit) / 2)
	urgency := clamp01(ctx.Urgency)
	return 0.7*leverage + 0.3*(1-urgency)
}

// Weights returns the buyer/seller Nash-optimizer weights: the raw
// bargaining powers normalized to sum to 1, then each independently
// clamped to [0.15, 0.85]. Clamping after normalizing can leave the pair
// summing to slightly more or less than 1; that's acceptable since the
// optimizer only compares relative scores across candidate prices, not
// absolute ones.
func Weights(buyer, seller PrivateContext) (buyerWeight, sellerWeight float64) {
	rb := bargainingPower(buyer)
	rs := bargainingPower(seller)
	sum := rb + rs
	if sum <= 0 {
		return 0.5, 0.5
	}
	return clampWeight(rb / sum), clampWeight(rs / sum)
}

func clampWeight(w float64) float64 {
	if w < 0.15 {
		return 0.15
	}
	if w > 0.85 {
		return 0.85
	}
	return w
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
