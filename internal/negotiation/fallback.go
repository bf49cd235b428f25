package negotiation

import (
	"time"

	"github.com/molt-labs/molt-negotiation/internal/domain"
)

// runFallback implements the deterministic fallback engine: each turn
// the buyer offer rises and the seller ask falls by that side's
// configured step, modulated by its bargaining-power weight so a more
// powerful side concedes less. Given identical inputs this always
// produces identical turns, satisfying the deterministic-fallback
// property.
func runFallback(sides Sides, weights sideWeights, cfg engineConfig, now time.Time) []*domain.SessionTurn {
	buyerStep := stepOf(sides.Buyer)
	sellerStep := stepOf(sides.Seller)

	buyerOffer := InitialBuyerOffer(sides.Buyer)
	sellerAsk := InitialSellerAsk(sides.Seller)

	var turns []*domain.SessionTurn
	for turn := 1; turn <= cfg.maxTurns; turn++ {
		if buyerOffer >= sellerAsk {
			price, ok := OptimalPrice(OptimizerInputs{
				BuyerOffer: buyerOffer, SellerAsk: sellerAsk,
				BuyerReservation: sides.Buyer.ReservationPrice, SellerReservation: sides.Seller.ReservationPrice,
				BuyerWeight: weights.buyer, SellerWeight: weights.seller,
			})
			if ok {
				turns = append(turns, agreedTurn(turn, price, buyerOffer, sellerAsk, now))
				return turns
			}
			// offers crossed but the reservations themselves leave no
			// feasible interval (seller reservation above buyer
			// reservation); keep conceding rather than calling it here.
		}

		if turn == cfg.maxTurns {
			turns = append(turns, fallbackTurn(turn, domain.TurnNoAgreement, buyerOffer, sellerAsk, now))
			return turns
		}

		turns = append(turns, fallbackTurn(turn, domain.TurnContinue, buyerOffer, sellerAsk, now))

		buyerOffer = round4(buyerOffer + buyerStep*(1-weights.buyer))
		sellerAsk = round4(sellerAsk - sellerStep*(1-weights.seller))
	}
	return turns
}

func fallbackTurn(turn int, status domain.TurnStatus, buyerOffer, sellerAsk float64, now time.Time) *domain.SessionTurn {
	return &domain.SessionTurn{
		Turn:   turn,
		Status: status,
		Summary: map[string]any{
			"buyerOffer": round4(buyerOffer),
			"sellerAsk":  round4(sellerAsk),
			"mode":       executionModeFallback,
		},
		CreatedAt: now,
	}
}

func agreedTurn(turn int, price, buyerOffer, sellerAsk float64, now time.Time) *domain.SessionTurn {
	return &domain.SessionTurn{
		Turn:   turn,
		Status: domain.TurnAgreed,
		Summary: map[string]any{
			"buyerOffer":  round4(buyerOffer),
			"sellerAsk":   round4(sellerAsk),
			"agreedPrice": price,
			"mode":        executionModeFallback,
		},
		CreatedAt: now,
	}
}
