package privacy

// PriceBand buckets a numeric price into the coarse public bands of spec
// §4.J, so a turn summary never reveals an exact offer.
func PriceBand(price float64) string {
	switch {
	case price < 50:
		return "<50"
	case price < 100:
		return "50-99"
	case price < 250:
		return "100-249"
	case price < 500:
		return "250-499"
	case price < 1000:
		return "500-999"
	default:
		return "1000+"
	}
}

// SpreadBand classifies a bid/ask spread relative to the midpoint into
// {crossed,tight,narrow,moderate,wide}. A crossed book (bid >= ask) is
// reported as crossed regardless of magnitude. Otherwise the spread is
// expressed as a fraction of the midpoint and bucketed; thresholds were
// not specified upstream and were chosen to keep "tight" markets (inside
// 2%) distinguishable from genuinely wide ones (above 15%).
func SpreadBand(bid, ask float64) string {
	if bid >= ask {
		return "crossed"
	}
	mid := (bid + ask) / 2
	if mid <= 0 {
		return "wide"
	}
	spread := (ask - bid) / mid
	switch {
	case spread < 0.02:
		return "tight"
	case spread < 0.05:
		return "narrow"
	case spread < 0.15:
		return "moderate"
	default:
		return "wide"
	}
}

// BandSummary returns a copy of a negotiation turn's summary with its
// exact numeric prices replaced by their public bands: buyerOffer/
// sellerAsk collapse into a single spread band, and agreedPrice (when
// present) becomes a price band. Every other field passes through
// unchanged.
func BandSummary(summary map[string]any) map[string]any {
	out := make(map[string]any, len(summary))
	for k, v := range summary {
		out[k] = v
	}

	buyerOffer, hasBuyer := asFloat(out["buyerOffer"])
	sellerAsk, hasSeller := asFloat(out["sellerAsk"])
	if hasBuyer && hasSeller {
		out["spread"] = SpreadBand(buyerOffer, sellerAsk)
	}
	delete(out, "buyerOffer")
	delete(out, "sellerAsk")

	if price, ok := asFloat(out["agreedPrice"]); ok {
		out["agreedPriceBand"] = PriceBand(price)
		delete(out, "agreedPrice")
	}

	return out
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}
