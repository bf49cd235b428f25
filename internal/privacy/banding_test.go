package privacy

import "testing"

func TestPriceBand(t *testing.T) {
	cases := []struct {
		price float64
		want  string
	}{
		{10, "<50"},
		{75, "50-99"},
		{200, "100-249"},
		{300, "250-499"},
		{750, "500-999"},
		{1500, "1000+"},
	}
	for _, c := range cases {
		if got := PriceBand(c.price); got != c.want {
			t.Errorf("PriceBand(%v) = %q, want %q", c.price, got, c.want)
		}
	}
}

func TestSpreadBand_Crossed(t *testing.T) {
	if got := SpreadBand(105, 100); got != "crossed" {
		t.Fatalf("expected crossed, got %s", got)
	}
}

func TestSpreadBand_Tight(t *testing.T) {
	if got := SpreadBand(99.5, 100); got != "tight" {
		t.Fatalf("expected tight, got %s", got)
	}
}

func TestSpreadBand_Wide(t *testing.T) {
	if got := SpreadBand(50, 100); got != "wide" {
		t.Fatalf("expected wide, got %s", got)
	}
}

func TestBandSummary_RemovesExactPricesAndBandsThem(t *testing.T) {
	summary := map[string]any{
		"buyerOffer":  99.5,
		"sellerAsk":   100.0,
		"agreedPrice": 99.75,
		"mode":        "fallback",
	}
	out := BandSummary(summary)

	if _, present := out["buyerOffer"]; present {
		t.Fatalf("expected buyerOffer to be removed: %+v", out)
	}
	if _, present := out["sellerAsk"]; present {
		t.Fatalf("expected sellerAsk to be removed: %+v", out)
	}
	if _, present := out["agreedPrice"]; present {
		t.Fatalf("expected agreedPrice to be removed: %+v", out)
	}
	if got := out["spread"]; got != "tight" {
		t.Fatalf("expected spread band tight, got %v", got)
	}
	if got := out["agreedPriceBand"]; got != "50-99" {
		t.Fatalf("expected agreedPriceBand 50-99, got %v", got)
	}
	if got := out["mode"]; got != "fallback" {
		t.Fatalf("expected non-price field to pass through, got %v", got)
	}
}

func TestBandSummary_NoPriceFieldsPassesThrough(t *testing.T) {
	summary := map[string]any{"reason": "buyer_offer_invalid", "mode": "endpoint"}
	out := BandSummary(summary)
	if out["reason"] != "buyer_offer_invalid" || out["mode"] != "endpoint" {
		t.Fatalf("expected unrelated fields untouched, got %+v", out)
	}
}
