package domain

import "context"

// Exchange defines the venue operations the bot depends on. Implementations
// return sentinel values (zero balance, zero price, zero sizes) on transient
// failure together with the error; callers treat a non-positive price or
// balance as "no data this cycle".
type Exchange interface {
	GetBalance(ctx context.Context) (float64, error)
	GetPrice(ctx context.Context, symbol string) (float64, error)
	// GetPositions returns the held long and short sizes for the symbol.
	GetPositions(ctx context.Context, symbol string) (longSize, shortSize float64, err error)
	// PlaceMarketOrder sends a market order. Side is the order direction
	// (long maps to buy, short to sell); reduceOnly marks a closing order.
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, size float64, reduceOnly bool) error
	// ServerTime is a cheap unauthenticated probe used by diagnostics.
	ServerTime(ctx context.Context) (int64, error)
}

// Journal persists lifecycle transitions and placed orders. Journal failures
// are logged and ignored; trading never blocks on storage.
type Journal interface {
	SaveTransition(ctx context.Context, t *PositionTransition) error
	SaveOrder(ctx context.Context, o *Order) error
	ListTransitions(ctx context.Context, limit int) ([]*PositionTransition, error)
	ListOrders(ctx context.Context, limit int) ([]*Order, error)
}
