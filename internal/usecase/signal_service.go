package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vitos/futures_signal_bot/internal/config"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// BotService applies webhook signals and runs the protective checks for the
// single tracked instrument. opMu serializes whole decide-order-mutate
// sequences so a webhook transition and a protective action can never
// interleave; market data is always fetched before the lock is taken.
type BotService struct {
	cfg      *config.Config
	cache    *MarketCache
	tracker  *Tracker
	executor *TradeExecutor
	logger   *zap.Logger

	opMu sync.Mutex

	// settle replaces time.Sleep in tests.
	settle func(time.Duration)
}

func NewBotService(cfg *config.Config, cache *MarketCache, tracker *Tracker, executor *TradeExecutor, logger *zap.Logger) *BotService {
	return &BotService{
		cfg:      cfg,
		cache:    cache,
		tracker:  tracker,
		executor: executor,
		logger:   logger,
		settle:   time.Sleep,
	}
}

// Tracker exposes the state record for the web layer.
func (s *BotService) Tracker() *Tracker { return s.tracker }

// Cache exposes market data for the web layer.
func (s *BotService) Cache() *MarketCache { return s.cache }

// ApplySignal executes one deduplicated webhook signal: open, reverse, or
// flatten. Invalid market data fails the call; the source will resend.
func (s *BotService) ApplySignal(ctx context.Context, sig domain.Signal) error {
	stance := sig.Stance()
	if stance == "" {
		return fmt.Errorf("unknown market position %q", sig.MarketPosition)
	}

	s.logger.Info("Signal received",
		zap.String("stance", string(stance)),
		zap.String("prev", string(sig.PrevStance())),
		zap.String("timeframe", sig.Timeframe))
	metrics.Signals.WithLabelValues(string(stance)).Inc()
	s.tracker.SetStance(stance)

	// Fetch before locking; never hold the op lock across the refresh.
	s.cache.Invalidate()
	snap := s.cache.Get(ctx)
	if !snap.Valid() || snap.Balance <= 0 {
		return fmt.Errorf("invalid market data: balance=%.2f price=%.4f", snap.Balance, snap.Price)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	switch stance {
	case domain.StanceLong:
		return s.applyDirectional(ctx, domain.SideLong, snap)
	case domain.StanceShort:
		return s.applyDirectional(ctx, domain.SideShort, snap)
	default:
		return s.applyFlat(ctx, snap)
	}
}

func (s *BotService) applyDirectional(ctx context.Context, side domain.Side, snap domain.MarketSnapshot) error {
	if snap.SizeFor(side) > 0 {
		s.logger.Info("Already positioned, signal is a no-op", zap.String("side", string(side)))
		s.tracker.ActivateSignal()
		return nil
	}

	opposite := side.Opposite()
	if oppSize := snap.SizeFor(opposite); oppSize > 0 {
		s.logger.Info("Reversing position",
			zap.String("close", string(opposite)), zap.String("open", string(side)))
		if err := s.executor.Close(ctx, opposite, oppSize, snap.Price); err != nil {
			return fmt.Errorf("close %s before reverse: %w", opposite, err)
		}
		// Give the venue a moment to settle the close before opening.
		s.settle(s.cfg.SettleDelay())
	}

	qty := s.calculateQuantity(snap.Balance, snap.Price)
	if qty <= 0 {
		s.logger.Warn("Order rejected by sizing",
			zap.Float64("balance", snap.Balance), zap.Float64("price", snap.Price))
		s.tracker.ActivateSignal()
		return nil
	}

	if err := s.executor.Open(ctx, side, qty, snap.Price); err != nil {
		return fmt.Errorf("open %s: %w", side, err)
	}

	stop := s.stopPrice(side, snap.Price)
	s.tracker.MarkOpened(ctx, side, qty, snap.Price, stop)
	s.logger.Info("Position opened",
		zap.String("side", string(side)),
		zap.Float64("size", qty),
		zap.Float64("entry", snap.Price),
		zap.Float64("stop", stop))
	return nil
}

func (s *BotService) applyFlat(ctx context.Context, snap domain.MarketSnapshot) error {
	s.logger.Info("Flat signal, closing all exposure")

	var firstErr error
	if snap.LongSize > 0 {
		if err := s.executor.Close(ctx, domain.SideLong, snap.LongSize, snap.Price); err != nil {
			firstErr = err
		}
	}
	if snap.ShortSize > 0 {
		if err := s.executor.Close(ctx, domain.SideShort, snap.ShortSize, snap.Price); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// Protections drop regardless: the source no longer backs the position.
	s.tracker.ResetFlat(ctx, snap.Price)
	s.logger.Info("Signal source flat, protections disabled")
	return firstErr
}

// calculateQuantity converts available balance into an order quantity:
// exposure = balance × fraction × leverage, floored to whole units, zero when
// the exposure is below the venue minimum.
func (s *BotService) calculateQuantity(balance, price float64) float64 {
	if price <= 0 {
		return 0
	}
	exposure := balance * s.cfg.Trading.PositionSizeFraction * float64(s.cfg.Trading.Leverage)
	if exposure < s.cfg.Trading.MinOrderValue {
		s.logger.Warn("Exposure below venue minimum",
			zap.Float64("exposure", exposure),
			zap.Float64("min_order_value", s.cfg.Trading.MinOrderValue))
		return 0
	}
	return math.Floor(exposure / price)
}

// stopPrice converts the capital-at-risk fraction into a leverage-adjusted
// absolute stop: entry × (1 ∓ stopLoss/leverage).
func (s *BotService) stopPrice(side domain.Side, entry float64) float64 {
	delta := s.cfg.Protection.StopLossFraction / float64(s.cfg.Trading.Leverage)
	if side == domain.SideLong {
		return entry * (1 - delta)
	}
	return entry * (1 + delta)
}

// directionalPnL is the unleveraged profit fraction of price versus base for
// the given side.
func directionalPnL(side domain.Side, base, price float64) float64 {
	if base <= 0 {
		return 0
	}
	if side == domain.SideLong {
		return (price - base) / base
	}
	return (base - price) / base
}
