package models

import "time"

// PriceObservation is one market snapshot for a tradable item.
// Series are ordered by Timestamp ascending and treated as immutable
// once fetched.
type PriceObservation struct {
	Timestamp      time.Time `json:"timestamp"`
	BuyPrice       float64   `json:"buy_price"`
	SellPrice      float64   `json:"sell_price"`
	BuyOrderCount  int       `json:"buy_order_count"`
	SellOrderCount int       `json:"sell_order_count"`
}

// SellPrices extracts the sell-price series.
func SellPrices(obs []PriceObservation) []float64 {
	out := make([]float64, len(obs))
	for i, o := range obs {
		out[i] = o.SellPrice
	}
	return out
}

// LatestObservation returns the last observation, or false for an empty series.
func LatestObservation(obs []PriceObservation) (PriceObservation, bool) {
	if len(obs) == 0 {
		return PriceObservation{}, false
	}
	return obs[len(obs)-1], true
}

// ObservationsSince returns the suffix of obs at or after cutoff.
// Relies on ascending timestamp order.
func ObservationsSince(obs []PriceObservation, cutoff time.Time) []PriceObservation {
	for i, o := range obs {
		if !o.Timestamp.Before(cutoff) {
			return obs[i:]
		}
	}
	return nil
}

// PriceTick is a single live quote from the market stream.
type PriceTick struct {
	ItemID    int64     `json:"item_id"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
