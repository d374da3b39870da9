package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// MarketCache memoizes one venue snapshot (balance, price, both position
// sizes) for a short TTL so that bursts of checks share a single round of
// REST calls. The fetch happens outside the cache lock; concurrent callers
// may race to fetch but the record is replaced atomically.
type MarketCache struct {
	exchange domain.Exchange
	symbol   string
	ttl      time.Duration
	logger   *zap.Logger

	mu   sync.Mutex
	snap domain.MarketSnapshot
}

func NewMarketCache(exchange domain.Exchange, symbol string, ttl time.Duration, logger *zap.Logger) *MarketCache {
	return &MarketCache{
		exchange: exchange,
		symbol:   symbol,
		ttl:      ttl,
		logger:   logger,
	}
}

// Get returns the cached snapshot while it is fresh, otherwise refetches.
// On fetch failure the returned snapshot has Price 0; callers must treat
// that as "no data this cycle".
func (c *MarketCache) Get(ctx context.Context) domain.MarketSnapshot {
	c.mu.Lock()
	snap := c.snap
	c.mu.Unlock()

	if !snap.FetchedAt.IsZero() && time.Since(snap.FetchedAt) < c.ttl {
		return snap
	}
	return c.refresh(ctx)
}

// Invalidate forces the next Get to refetch. Protective checks call this
// before evaluating so they never act on stale numbers.
func (c *MarketCache) Invalidate() {
	c.mu.Lock()
	c.snap.FetchedAt = time.Time{}
	c.mu.Unlock()
}

// PushPrice overwrites the cached price in place. Fed by the public ticker
// stream; balance and sizes keep their REST-fetched values and age.
func (c *MarketCache) PushPrice(price float64) {
	if price <= 0 {
		return
	}
	c.mu.Lock()
	if !c.snap.FetchedAt.IsZero() {
		c.snap.Price = price
	}
	c.mu.Unlock()
	metrics.LastPrice.Set(price)
}

func (c *MarketCache) refresh(ctx context.Context) domain.MarketSnapshot {
	balance, err := c.exchange.GetBalance(ctx)
	if err != nil {
		c.logger.Warn("Balance fetch failed", zap.Error(err))
	}
	price, err := c.exchange.GetPrice(ctx, c.symbol)
	if err != nil {
		c.logger.Warn("Price fetch failed", zap.Error(err))
	}
	longSize, shortSize, err := c.exchange.GetPositions(ctx, c.symbol)
	if err != nil {
		c.logger.Warn("Positions fetch failed", zap.Error(err))
	}

	snap := domain.MarketSnapshot{
		Balance:   balance,
		Price:     price,
		LongSize:  longSize,
		ShortSize: shortSize,
		FetchedAt: time.Now(),
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	if snap.Valid() {
		metrics.LastPrice.Set(price)
	}
	if balance > 0 {
		metrics.Equity.Set(balance)
	}
	c.logger.Debug("Market data refreshed",
		zap.Float64("balance", balance),
		zap.Float64("price", price),
		zap.Float64("long", longSize),
		zap.Float64("short", shortSize))
	return snap
}
