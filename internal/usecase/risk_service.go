package usecase

import (
	"context"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"go.uber.org/zap"
)

// EvaluateRisk runs one protective cycle: stop-loss first (safety-critical),
// then trailing-profit, or re-entry when the position is locked. The whole
// cycle no-ops unless the signal source backs the position and the check
// gate has elapsed. Market data is refetched before the op lock is taken
// and the tracked state is re-validated under it.
func (s *BotService) EvaluateRisk(ctx context.Context) {
	rec := s.tracker.Snapshot()
	if !rec.SignalActive || !rec.Tracked() {
		return
	}
	if !s.tracker.GateCheck(s.cfg.CheckGate()) {
		return
	}

	s.cache.Invalidate()
	snap := s.cache.Get(ctx)
	if !snap.Valid() {
		return
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	// A webhook may have flattened or reversed while we were fetching.
	rec = s.tracker.Snapshot()
	if !rec.SignalActive || !rec.Tracked() {
		return
	}

	if rec.Phase == domain.PhaseLocked {
		s.reentryCheck(ctx, rec, snap)
		return
	}

	if closed := s.stopLossCheck(ctx, rec, snap); closed {
		return
	}
	s.trailingProfitCheck(ctx, rec, snap)
}

// stopLossCheck reconciles against the venue and closes the position when
// price crosses the stop. Returns true when the tracked position is gone
// (stopped out or externally closed) and the cycle should end.
func (s *BotService) stopLossCheck(ctx context.Context, rec domain.PositionRecord, snap domain.MarketSnapshot) bool {
	// Venue holds nothing on our side: someone closed it manually. Adopt
	// that as authoritative instead of firing the stop.
	if snap.SizeFor(rec.Side) == 0 && rec.Size > 0 {
		return s.tracker.ReconcileExternalClose(ctx, rec.Side, snap.Price)
	}

	triggered := (rec.Side == domain.SideLong && snap.Price <= rec.StopLossPrice) ||
		(rec.Side == domain.SideShort && snap.Price >= rec.StopLossPrice)
	if !triggered {
		return false
	}

	pnl := directionalPnL(rec.Side, rec.EntryPrice, snap.Price)
	s.logger.Warn("Stop loss triggered",
		zap.String("side", string(rec.Side)),
		zap.Float64("entry", rec.EntryPrice),
		zap.Float64("price", snap.Price),
		zap.Float64("stop", rec.StopLossPrice),
		zap.Float64("loss_pct_leveraged", pnl*float64(s.cfg.Trading.Leverage)*100))

	if err := s.executor.Close(ctx, rec.Side, rec.Size, snap.Price); err != nil {
		// Order failed; leave state untouched and retry next cycle.
		return false
	}
	return s.tracker.MarkStopClosed(ctx, rec.Side, snap.Price)
}

// trailingProfitCheck raises the profit peak and locks gains once price
// retraces the configured fraction from that peak. The profit math is
// unleveraged throughout; leverage only scales the logged numbers.
func (s *BotService) trailingProfitCheck(ctx context.Context, rec domain.PositionRecord, snap domain.MarketSnapshot) {
	if time.Since(rec.LastProtectiveActionAt) < s.cfg.ActionCooldown() {
		return
	}

	pnl := directionalPnL(rec.Side, rec.EntryPrice, snap.Price)
	if s.tracker.RaisePeak(pnl) {
		rec.PeakProfitPct = pnl
		if pnl >= s.cfg.Protection.TrailingActivation {
			s.logger.Debug("New profit peak, trailing active",
				zap.Float64("peak_pct", pnl*100))
		}
	}

	peak := rec.PeakProfitPct
	if peak < s.cfg.Protection.TrailingActivation {
		return
	}

	drawdown := (peak - pnl) / peak
	if drawdown < s.cfg.Protection.TrailingDrop {
		return
	}

	s.logger.Info("Trailing profit lock triggered",
		zap.Float64("peak_pct", peak*100),
		zap.Float64("pnl_pct", pnl*100),
		zap.Float64("drawdown_pct", drawdown*100),
		zap.Float64("pnl_pct_leveraged", pnl*float64(s.cfg.Trading.Leverage)*100))

	if err := s.executor.Close(ctx, rec.Side, rec.Size, snap.Price); err != nil {
		return
	}
	if s.tracker.MarkLocked(ctx, rec.Side, snap.Price) {
		s.logger.Info("Profit locked, waiting for re-entry",
			zap.Float64("reentry_base", snap.Price))
	}
}

// reentryCheck re-opens a locked position once price recovers the threshold
// fraction from the lock price. Attempts are bounded; a declined or failed
// attempt still consumes one.
func (s *BotService) reentryCheck(ctx context.Context, rec domain.PositionRecord, snap domain.MarketSnapshot) {
	if rec.ReentryAttempts >= s.cfg.Protection.MaxReentryAttempts {
		return
	}
	if time.Since(rec.LastProtectiveActionAt) < s.cfg.ActionCooldown() {
		return
	}

	gain := directionalPnL(rec.Side, rec.ReentryPrice, snap.Price)
	if gain < s.cfg.Protection.ReentryThreshold {
		return
	}

	pnlVsOriginal := directionalPnL(rec.Side, rec.EntryPrice, snap.Price)
	s.logger.Info("Re-entry triggered",
		zap.Int("attempt", rec.ReentryAttempts+1),
		zap.Int("max_attempts", s.cfg.Protection.MaxReentryAttempts),
		zap.Float64("lock_price", rec.ReentryPrice),
		zap.Float64("price", snap.Price),
		zap.Float64("gain_pct", gain*100),
		zap.Float64("pnl_vs_entry_pct", pnlVsOriginal*100))

	// Size from the CURRENT balance, not the original one.
	qty := s.calculateQuantity(snap.Balance, snap.Price)
	if qty <= 0 {
		s.tracker.BumpReentryAttempt()
		return
	}
	if err := s.executor.Open(ctx, rec.Side, qty, snap.Price); err != nil {
		s.tracker.BumpReentryAttempt()
		return
	}

	stop := s.stopPrice(rec.Side, snap.Price)
	peak := pnlVsOriginal
	if peak < 0 {
		peak = 0
	}
	if s.tracker.MarkReentered(ctx, rec.Side, qty, snap.Price, stop, peak) {
		s.logger.Info("Re-entered position",
			zap.String("side", string(rec.Side)),
			zap.Float64("size", qty),
			zap.Float64("entry", snap.Price))
	}
}
