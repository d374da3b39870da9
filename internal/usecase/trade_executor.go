package usecase

import (
	"context"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// TradeExecutor sends market orders to the venue and journals the ones that
// went through. It never assumes success: the venue error is returned as-is.
type TradeExecutor struct {
	exchange domain.Exchange
	journal  domain.Journal
	symbol   string
	logger   *zap.Logger
}

func NewTradeExecutor(exchange domain.Exchange, journal domain.Journal, symbol string, logger *zap.Logger) *TradeExecutor {
	return &TradeExecutor{
		exchange: exchange,
		journal:  journal,
		symbol:   symbol,
		logger:   logger,
	}
}

// Open places a market order that establishes exposure on the given side.
func (e *TradeExecutor) Open(ctx context.Context, side domain.Side, size, refPrice float64) error {
	if err := e.exchange.PlaceMarketOrder(ctx, e.symbol, side, size, false); err != nil {
		metrics.OrderFailures.Inc()
		e.logger.Error("Open order failed",
			zap.String("side", string(side)), zap.Float64("size", size), zap.Error(err))
		return err
	}

	metrics.Orders.WithLabelValues(string(side), "open").Inc()
	e.logger.Info("Market order filled",
		zap.String("side", string(side)),
		zap.Float64("size", size),
		zap.Float64("price", refPrice))
	e.saveOrder(ctx, side, size, refPrice, false)
	return nil
}

// Close places a reduce-only market order against the held side.
func (e *TradeExecutor) Close(ctx context.Context, heldSide domain.Side, size, refPrice float64) error {
	orderSide := heldSide.Opposite()
	if err := e.exchange.PlaceMarketOrder(ctx, e.symbol, orderSide, size, true); err != nil {
		metrics.OrderFailures.Inc()
		e.logger.Error("Close order failed",
			zap.String("held_side", string(heldSide)), zap.Float64("size", size), zap.Error(err))
		return err
	}

	metrics.Orders.WithLabelValues(string(orderSide), "close").Inc()
	e.logger.Info("Position closed at market",
		zap.String("held_side", string(heldSide)),
		zap.Float64("size", size),
		zap.Float64("price", refPrice))
	e.saveOrder(ctx, orderSide, size, refPrice, true)
	return nil
}

func (e *TradeExecutor) saveOrder(ctx context.Context, side domain.Side, size, price float64, reduceOnly bool) {
	if e.journal == nil {
		return
	}
	err := e.journal.SaveOrder(ctx, &domain.Order{
		Symbol:     e.symbol,
		Side:       side,
		Size:       size,
		Price:      price,
		ReduceOnly: reduceOnly,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		e.logger.Error("Failed to journal order", zap.Error(err))
	}
}
