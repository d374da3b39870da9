package domain

import "time"

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other direction.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Stance is the directional state reported by the signal source.
type Stance string

const (
	StanceLong  Stance = "long"
	StanceShort Stance = "short"
	StanceFlat  Stance = "flat"
)

// Phase is the lifecycle phase of a tracked (non-flat) position.
type Phase string

const (
	// PhaseOpen means quantity is live on the venue.
	PhaseOpen Phase = "OPEN"
	// PhaseLocked means the position was closed by the trailing-profit
	// lock but side/entry are remembered for a possible re-entry.
	PhaseLocked Phase = "LOCKED"
)

// PositionRecord is the single tracked position. Size > 0 iff Side is set;
// StopLossPrice is set iff Side is set. The record is owned by the tracker
// and mutated only under its lock.
type PositionRecord struct {
	Side            Side
	Size            float64
	EntryPrice      float64
	StopLossPrice   float64
	PeakProfitPct   float64
	Phase           Phase
	ReentryPrice    float64
	ReentryAttempts int

	LastCheckAt            time.Time
	LastProtectiveActionAt time.Time

	// SignalActive gates every protective check. True from the first
	// directional signal, false only after a flat signal.
	SignalActive   bool
	ExternalStance Stance
}

// Tracked reports whether a position (live or locked) is being tracked.
func (p *PositionRecord) Tracked() bool {
	return p.Side != "" && p.Size > 0
}

// TransitionEvent names the cause of a lifecycle transition in the journal.
type TransitionEvent string

const (
	EventSignalOpen   TransitionEvent = "signal_open"
	EventSignalFlat   TransitionEvent = "signal_flat"
	EventStopLoss     TransitionEvent = "stop_loss"
	EventTrailingLock TransitionEvent = "trailing_lock"
	EventReentry      TransitionEvent = "reentry"
	EventExternal     TransitionEvent = "external_close"
)

// PositionTransition is one journaled lifecycle change.
type PositionTransition struct {
	ID         int64
	Event      TransitionEvent
	FromState  string
	ToState    string
	Side       Side
	Size       float64
	EntryPrice float64
	MarkPrice  float64
	Note       string
	CreatedAt  time.Time
}

// Order is a market order the bot sent to the venue.
type Order struct {
	ID         int64
	Symbol     string
	Side       Side
	Size       float64
	Price      float64
	ReduceOnly bool
	CreatedAt  time.Time
}
