package negotiation

import "math"

const optimizerCandidates = 41

// OptimizerInputs is the price-selection input.
type OptimizerInputs struct {
	BuyerOffer        float64
	SellerAsk         float64
	BuyerReservation  float64
	SellerReservation float64
	BuyerWeight       float64
	SellerWeight      float64
}

// OptimalPrice implements the Nash-weighted optimizer. It restricts the
// feasible interval to
// [max(min(buyerOffer,sellerAsk), sellerReservation),
//
//	min(max(buyerOffer,sellerAsk), buyerReservation)],
//
// scores 41 evenly-spaced candidates by U_b^w_b * U_s^w_s, and returns the
// argmax rounded to 4 decimals. ok is false when the interval is empty
// (no overlap).
func OptimalPrice(in OptimizerInputs) (price float64, ok bool) {
	lo := math.Max(math.Min(in.BuyerOffer, in.SellerAsk), in.SellerReservation)
	hi := math.Min(math.Max(in.BuyerOffer, in.SellerAsk), in.BuyerReservation)
	if lo > hi {
		return 0, false
	}

	denom := in.BuyerReservation - in.SellerReservation
	bestScore := -1.0
	bestPrice := lo

	step := (hi - lo) / float64(optimizerCandidates-1)
	for i := 0; i < optimizerCandidates; i++ {
		p := lo + step*float64(i)
		if hi == lo {
			p = lo
		}

		var ub, us float64
		if denom > 0 {
			ub = clamp01((in.BuyerReservation - p) / denom)
			us = clamp01((p - in.SellerReservation) / denom)
		} else {
			// Degenerate case: buyer's reservation doesn't exceed the
			// seller's. There is no principled normalized utility split,
			// so treat both sides as equally (un)satisfied at every
			// candidate and let the midpoint win.
			ub, us = 0.5, 0.5
		}

		score := math.Pow(ub, in.BuyerWeight) * math.Pow(us, in.SellerWeight)
		if score > bestScore {
			bestScore = score
			bestPrice = p
		}

		if hi == lo {
			break
		}
	}

	return round4(bestPrice), true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
