package domain

import "time"

// MarketSnapshot is one consistent read of the venue: available balance,
// last price and the held sizes on both sides of the tracked symbol.
// Snapshots are immutable values, replaced wholesale by the cache.
type MarketSnapshot struct {
	Balance   float64
	Price     float64
	LongSize  float64
	ShortSize float64
	FetchedAt time.Time
}

// Valid reports whether the snapshot carries a usable price. A fetch
// failure is surfaced as an invalid snapshot; callers skip the cycle.
func (m MarketSnapshot) Valid() bool {
	return m.Price > 0
}

// SizeFor returns the venue-held size on the given side.
func (m MarketSnapshot) SizeFor(side Side) float64 {
	if side == SideLong {
		return m.LongSize
	}
	return m.ShortSize
}

// ActualStance derives the live directional state from venue sizes.
func (m MarketSnapshot) ActualStance() Stance {
	switch {
	case m.LongSize > 0:
		return StanceLong
	case m.ShortSize > 0:
		return StanceShort
	default:
		return StanceFlat
	}
}
