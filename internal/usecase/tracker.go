package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Tracker owns the single PositionRecord. Every mutation happens under its
// lock and is appended to the journal; readers get copies. The tracker knows
// nothing about the venue — it records what the services decided.
type Tracker struct {
	journal domain.Journal
	logger  *zap.Logger

	mu  sync.RWMutex
	rec domain.PositionRecord
}

func NewTracker(journal domain.Journal, logger *zap.Logger) *Tracker {
	return &Tracker{journal: journal, logger: logger}
}

// Snapshot returns a copy of the record for decisions and for /status.
func (t *Tracker) Snapshot() domain.PositionRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rec
}

// SetStance records the stance the signal source last reported.
func (t *Tracker) SetStance(stance domain.Stance) {
	t.mu.Lock()
	t.rec.ExternalStance = stance
	t.mu.Unlock()
}

// ActivateSignal raises the master protection gate without touching the
// position fields. Used when a directional signal arrives for a side that
// is already held.
func (t *Tracker) ActivateSignal() {
	t.mu.Lock()
	t.rec.SignalActive = true
	t.mu.Unlock()
	metrics.SignalActive.Set(1)
}

// GateCheck atomically tests and stamps the re-evaluation gate. Returns
// false while the last check is younger than the gate interval.
func (t *Tracker) GateCheck(gate time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if now.Sub(t.rec.LastCheckAt) < gate {
		return false
	}
	t.rec.LastCheckAt = now
	return true
}

// MarkOpened records a filled open (or reverse-and-open) order. SignalActive
// is raised; protection fields are armed.
func (t *Tracker) MarkOpened(ctx context.Context, side domain.Side, size, entry, stop float64) {
	t.mu.Lock()
	from := t.stateLocked()
	t.rec.Side = side
	t.rec.Size = size
	t.rec.EntryPrice = entry
	t.rec.StopLossPrice = stop
	t.rec.PeakProfitPct = 0
	t.rec.Phase = domain.PhaseOpen
	t.rec.ReentryPrice = 0
	t.rec.ReentryAttempts = 0
	t.rec.LastProtectiveActionAt = time.Now()
	t.rec.SignalActive = true
	to := t.stateLocked()
	rec := t.rec
	t.mu.Unlock()

	metrics.SignalActive.Set(1)
	t.journalTransition(ctx, domain.EventSignalOpen, from, to, rec, entry, "")
}

// MarkStopClosed resets to flat after a stop-loss close. SignalActive stays
// untouched so the next same-direction signal can reopen. Returns false if
// the record no longer matches the expected side (another transition won).
func (t *Tracker) MarkStopClosed(ctx context.Context, expectSide domain.Side, markPrice float64) bool {
	t.mu.Lock()
	if t.rec.Side != expectSide || t.rec.Size <= 0 {
		t.mu.Unlock()
		return false
	}
	from := t.stateLocked()
	rec := t.rec
	t.clearPositionLocked()
	to := t.stateLocked()
	t.mu.Unlock()

	metrics.ProtectiveActions.WithLabelValues("stop_loss").Inc()
	t.journalTransition(ctx, domain.EventStopLoss, from, to, rec, markPrice, "")
	return true
}

// MarkLocked records a trailing-profit close: side/entry stay remembered,
// live size is zero on the venue, re-entry is armed.
func (t *Tracker) MarkLocked(ctx context.Context, expectSide domain.Side, closePrice float64) bool {
	t.mu.Lock()
	if t.rec.Side != expectSide || t.rec.Phase != domain.PhaseOpen {
		t.mu.Unlock()
		return false
	}
	from := t.stateLocked()
	t.rec.Phase = domain.PhaseLocked
	t.rec.ReentryPrice = closePrice
	t.rec.ReentryAttempts = 0
	t.rec.LastProtectiveActionAt = time.Now()
	rec := t.rec
	to := t.stateLocked()
	t.mu.Unlock()

	metrics.ProtectiveActions.WithLabelValues("trailing_lock").Inc()
	t.journalTransition(ctx, domain.EventTrailingLock, from, to, rec, closePrice, "")
	return true
}

// MarkReentered records a re-entry fill: back to OPEN at a new size and the
// same remembered side. The peak is reset to the profit versus the ORIGINAL
// entry so the trailing lock resumes from honest ground.
func (t *Tracker) MarkReentered(ctx context.Context, expectSide domain.Side, size, entry, stop, peakVsOriginal float64) bool {
	t.mu.Lock()
	if t.rec.Side != expectSide || t.rec.Phase != domain.PhaseLocked {
		t.mu.Unlock()
		return false
	}
	from := t.stateLocked()
	t.rec.Size = size
	t.rec.EntryPrice = entry
	t.rec.StopLossPrice = stop
	t.rec.Phase = domain.PhaseOpen
	t.rec.PeakProfitPct = peakVsOriginal
	t.rec.ReentryAttempts++
	t.rec.LastProtectiveActionAt = time.Now()
	rec := t.rec
	to := t.stateLocked()
	attempts := t.rec.ReentryAttempts
	t.mu.Unlock()

	metrics.ProtectiveActions.WithLabelValues("reentry").Inc()
	t.journalTransition(ctx, domain.EventReentry, from, to, rec, entry,
		fmt.Sprintf("attempt %d", attempts))
	return true
}

// BumpReentryAttempt consumes one attempt without a fill (sizing rejected or
// order failed). The bound on attempts counts tries, not successes.
func (t *Tracker) BumpReentryAttempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rec.ReentryAttempts++
	t.rec.LastProtectiveActionAt = time.Now()
	return t.rec.ReentryAttempts
}

// RaisePeak lifts the peak profit fraction; it never lowers it.
func (t *Tracker) RaisePeak(pnl float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pnl > t.rec.PeakProfitPct {
		t.rec.PeakProfitPct = pnl
		return true
	}
	return false
}

// ResetFlat clears everything after a flat signal. The master gate drops, so
// protective checks stop until the next directional signal.
func (t *Tracker) ResetFlat(ctx context.Context, markPrice float64) {
	t.mu.Lock()
	from := t.stateLocked()
	rec := t.rec
	t.clearPositionLocked()
	t.rec.SignalActive = false
	to := t.stateLocked()
	t.mu.Unlock()

	metrics.SignalActive.Set(0)
	t.journalTransition(ctx, domain.EventSignalFlat, from, to, rec, markPrice, "")
}

// ReconcileExternalClose adopts a venue-side manual close: the venue reports
// zero size for the tracked side, so local state resets to flat without a
// stop. SignalActive is left as-is.
func (t *Tracker) ReconcileExternalClose(ctx context.Context, expectSide domain.Side, markPrice float64) bool {
	t.mu.Lock()
	if t.rec.Side != expectSide || t.rec.Size <= 0 {
		t.mu.Unlock()
		return false
	}
	from := t.stateLocked()
	rec := t.rec
	t.clearPositionLocked()
	to := t.stateLocked()
	t.mu.Unlock()

	t.logger.Warn("Position closed externally, tracker reconciled",
		zap.String("side", string(rec.Side)), zap.Float64("size", rec.Size))
	t.journalTransition(ctx, domain.EventExternal, from, to, rec, markPrice, "venue reported zero size")
	return true
}

func (t *Tracker) clearPositionLocked() {
	t.rec.Side = ""
	t.rec.Size = 0
	t.rec.EntryPrice = 0
	t.rec.StopLossPrice = 0
	t.rec.PeakProfitPct = 0
	t.rec.Phase = ""
	t.rec.ReentryPrice = 0
	t.rec.ReentryAttempts = 0
}

// stateLocked names the lifecycle state for the journal.
func (t *Tracker) stateLocked() string {
	switch {
	case t.rec.Side == "" || t.rec.Size <= 0:
		return "FLAT"
	case t.rec.Phase == domain.PhaseLocked:
		return "LOCKED"
	default:
		return "OPEN"
	}
}

func (t *Tracker) journalTransition(ctx context.Context, event domain.TransitionEvent, from, to string, rec domain.PositionRecord, markPrice float64, note string) {
	if t.journal == nil {
		return
	}
	err := t.journal.SaveTransition(ctx, &domain.PositionTransition{
		Event:      event,
		FromState:  from,
		ToState:    to,
		Side:       rec.Side,
		Size:       rec.Size,
		EntryPrice: rec.EntryPrice,
		MarkPrice:  markPrice,
		Note:       note,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		t.logger.Error("Failed to journal transition", zap.String("event", string(event)), zap.Error(err))
	}
}
