package negotiation

import "testing"

func TestOptimalPrice_WithinFeasibleInterval(t *testing.T) {
	price, ok := OptimalPrice(OptimizerInputs{
		BuyerOffer: 95, SellerAsk: 90,
		BuyerReservation: 100, SellerReservation: 80,
		BuyerWeight: 0.5, SellerWeight: 0.5,
	})
	if !ok {
		t.Fatalf("expected a feasible optimum")
	}
	lo, hi := 90.0, 95.0
	if price < lo || price > hi {
		t.Fatalf("price %v outside feasible interval [%v,%v]", price, lo, hi)
	}
}

func TestOptimalPrice_NoOverlapReturnsFalse(t *testing.T) {
	_, ok := OptimalPrice(OptimizerInputs{
		BuyerOffer: 50, SellerAsk: 90,
		BuyerReservation: 60, SellerReservation: 80,
		BuyerWeight: 0.5, SellerWeight: 0.5,
	})
	if ok {
		t.Fatalf("expected no feasible overlap")
	}
}

func TestOptimalPrice_HigherBuyerWeightPullsPriceLower(t *testing.T) {
	in := OptimizerInputs{
		BuyerOffer: 95, SellerAsk: 85,
		BuyerReservation: 100, SellerReservation: 80,
	}
	in.BuyerWeight, in.SellerWeight = 0.85, 0.15
	buyerFavored, _ := OptimalPrice(in)

	in.BuyerWeight, in.SellerWeight = 0.15, 0.85
	sellerFavored, _ := OptimalPrice(in)

	if buyerFavored >= sellerFavored {
		t.Fatalf("expected buyer-favored price (%v) to be lower than seller-favored price (%v)", buyerFavored, sellerFavored)
	}
}

func TestOptimalPrice_DeterministicForIdenticalInputs(t *testing.T) {
	in := OptimizerInputs{
		BuyerOffer: 95, SellerAsk: 88,
		BuyerReservation: 100, SellerReservation: 80,
		BuyerWeight: 0.6, SellerWeight: 0.4,
	}
	p1, ok1 := OptimalPrice(in)
	p2, ok2 := OptimalPrice(in)
	if !ok1 || !ok2 || p1 != p2 {
		t.Fatalf("expected identical inputs to produce identical prices: %v vs %v", p1, p2)
	}
}

func TestOptimalPrice_RoundsToFourDecimals(t *testing.T) {
	price, ok := OptimalPrice(OptimizerInputs{
		BuyerOffer: 95, SellerAsk: 90,
		BuyerReservation: 101, SellerReservation: 79,
		BuyerWeight: 0.37, SellerWeight: 0.63,
	})
	if !ok {
		t.Fatalf("expected a feasible optimum")
	}
	if round4(price) != price {
		t.Fatalf("price %v not rounded to 4 decimals", price)
	}
}
