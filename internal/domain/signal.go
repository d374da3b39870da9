package domain

import (
	"fmt"
	"strings"
)

// Signal is one inbound webhook payload from the signal source.
type Signal struct {
	MarketPosition     string `json:"marketPosition"`
	PrevMarketPosition string `json:"prevMarketPosition"`
	Timeframe          string `json:"timeframe"`
}

// Stance normalizes the requested market position. Unknown strings map to
// an empty stance so the caller can reject them.
func (s Signal) Stance() Stance {
	switch strings.ToLower(strings.TrimSpace(s.MarketPosition)) {
	case "long":
		return StanceLong
	case "short":
		return StanceShort
	case "flat":
		return StanceFlat
	default:
		return ""
	}
}

// PrevStance normalizes the reported previous position.
func (s Signal) PrevStance() Stance {
	switch strings.ToLower(strings.TrimSpace(s.PrevMarketPosition)) {
	case "long":
		return StanceLong
	case "short":
		return StanceShort
	case "flat":
		return StanceFlat
	default:
		return ""
	}
}

// Canonical returns a key-ordered serialization of the payload, used by the
// deduplicator to compare redelivered webhooks.
func (s Signal) Canonical() string {
	return fmt.Sprintf(`{"marketPosition":%q,"prevMarketPosition":%q,"timeframe":%q}`,
		strings.ToLower(strings.TrimSpace(s.MarketPosition)),
		strings.ToLower(strings.TrimSpace(s.PrevMarketPosition)),
		strings.TrimSpace(s.Timeframe))
}
