package usecase_test

import (
	"context"
	"sync"

	"github.com/vitos/futures_signal_bot/internal/domain"
)

// PlacedOrder captures one PlaceMarketOrder call.
type PlacedOrder struct {
	Symbol     string
	Side       domain.Side
	Size       float64
	ReduceOnly bool
}

// MockExchange is a scriptable venue: tests set the market numbers and
// inspect the orders that arrived.
type MockExchange struct {
	mu sync.Mutex

	Balance   float64
	Price     float64
	LongSize  float64
	ShortSize float64

	BalanceErr   error
	PriceErr     error
	PositionsErr error
	OrderErr     error

	Orders     []PlacedOrder
	FetchCalls int
}

func (m *MockExchange) GetBalance(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FetchCalls++
	if m.BalanceErr != nil {
		return 0, m.BalanceErr
	}
	return m.Balance, nil
}

func (m *MockExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PriceErr != nil {
		return 0, m.PriceErr
	}
	return m.Price, nil
}

func (m *MockExchange) GetPositions(ctx context.Context, symbol string) (float64, float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PositionsErr != nil {
		return 0, 0, m.PositionsErr
	}
	return m.LongSize, m.ShortSize, nil
}

func (m *MockExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, size float64, reduceOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OrderErr != nil {
		return m.OrderErr
	}
	m.Orders = append(m.Orders, PlacedOrder{Symbol: symbol, Side: side, Size: size, ReduceOnly: reduceOnly})
	return nil
}

func (m *MockExchange) ServerTime(ctx context.Context) (int64, error) {
	return 1700000000000, nil
}

func (m *MockExchange) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Orders)
}

func (m *MockExchange) LastOrder() PlacedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Orders[len(m.Orders)-1]
}

// MockJournal records saved rows in memory.
type MockJournal struct {
	mu          sync.Mutex
	Transitions []*domain.PositionTransition
	SavedOrders []*domain.Order
}

func (m *MockJournal) SaveTransition(ctx context.Context, t *domain.PositionTransition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions = append(m.Transitions, t)
	return nil
}

func (m *MockJournal) SaveOrder(ctx context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SavedOrders = append(m.SavedOrders, o)
	return nil
}

func (m *MockJournal) ListTransitions(ctx context.Context, limit int) ([]*domain.PositionTransition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Transitions, nil
}

func (m *MockJournal) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SavedOrders, nil
}
