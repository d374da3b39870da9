package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/futures_signal_bot/internal/config"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

// newTestBot wires a BotService over a scripted venue with all throttles
// zeroed so tests drive the state machine synchronously.
func newTestBot(ex *MockExchange) (*usecase.BotService, *usecase.Tracker, *MockJournal) {
	cfg := config.Default()
	cfg.Timing.CacheTTLMs = 0
	cfg.Timing.CheckGateMs = 0
	cfg.Timing.ActionCooldownMs = 0
	cfg.Timing.SettleDelayMs = 0

	log := zap.NewNop()
	journal := &MockJournal{}
	cache := usecase.NewMarketCache(ex, cfg.Exchange.Symbol, cfg.CacheTTL(), log)
	tracker := usecase.NewTracker(journal, log)
	executor := usecase.NewTradeExecutor(ex, journal, cfg.Exchange.Symbol, log)
	svc := usecase.NewBotService(cfg, cache, tracker, executor, log)
	return svc, tracker, journal
}

func longSignal() domain.Signal {
	return domain.Signal{MarketPosition: "long", PrevMarketPosition: "flat", Timeframe: "5"}
}

func TestApplySignal_OpensLong(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 1.00}
	svc, tracker, _ := newTestBot(ex)

	require.NoError(t, svc.ApplySignal(context.Background(), longSignal()))

	// $1000 × 0.96 × 4 / $1.00 = 3840
	require.Equal(t, 1, ex.OrderCount())
	order := ex.LastOrder()
	assert.Equal(t, domain.SideLong, order.Side)
	assert.Equal(t, 3840.0, order.Size)
	assert.False(t, order.ReduceOnly)

	rec := tracker.Snapshot()
	assert.Equal(t, domain.SideLong, rec.Side)
	assert.Equal(t, 3840.0, rec.Size)
	assert.Equal(t, 1.00, rec.EntryPrice)
	assert.Equal(t, domain.PhaseOpen, rec.Phase)
	assert.True(t, rec.SignalActive)
	// stop = 1.00 × (1 − 0.07/4)
	assert.InDelta(t, 0.9825, rec.StopLossPrice, 1e-9)
}

func TestApplySignal_ShortStopAboveEntry(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 2.00}
	svc, tracker, _ := newTestBot(ex)

	sig := domain.Signal{MarketPosition: "SHORT", PrevMarketPosition: "flat", Timeframe: "5"}
	require.NoError(t, svc.ApplySignal(context.Background(), sig))

	rec := tracker.Snapshot()
	assert.Equal(t, domain.SideShort, rec.Side)
	assert.InDelta(t, 2.00*(1+0.0175), rec.StopLossPrice, 1e-9)
}

func TestApplySignal_AlreadyPositionedIsNoOp(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 1.00, LongSize: 3840}
	svc, tracker, _ := newTestBot(ex)

	require.NoError(t, svc.ApplySignal(context.Background(), longSignal()))

	assert.Equal(t, 0, ex.OrderCount())
	assert.True(t, tracker.Snapshot().SignalActive)
}

func TestApplySignal_ReversesShortToLong(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 1.00, ShortSize: 500}
	svc, tracker, _ := newTestBot(ex)

	require.NoError(t, svc.ApplySignal(context.Background(), longSignal()))

	require.Equal(t, 2, ex.OrderCount())
	assert.True(t, ex.Orders[0].ReduceOnly, "first order closes the short")
	assert.Equal(t, domain.SideLong, ex.Orders[0].Side, "short is closed by a buy")
	assert.Equal(t, 500.0, ex.Orders[0].Size)
	assert.False(t, ex.Orders[1].ReduceOnly, "second order opens the long")
	assert.Equal(t, domain.SideLong, ex.Orders[1].Side)

	assert.Equal(t, domain.SideLong, tracker.Snapshot().Side)
}

func TestApplySignal_FlatClosesAndDisarms(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 1.00}
	svc, tracker, _ := newTestBot(ex)

	require.NoError(t, svc.ApplySignal(context.Background(), longSignal()))
	ex.LongSize = 3840

	flat := domain.Signal{MarketPosition: "flat", PrevMarketPosition: "long", Timeframe: "5"}
	require.NoError(t, svc.ApplySignal(context.Background(), flat))

	last := ex.LastOrder()
	assert.True(t, last.ReduceOnly)
	assert.Equal(t, domain.SideShort, last.Side, "long is closed by a sell")

	rec := tracker.Snapshot()
	assert.False(t, rec.SignalActive)
	assert.Empty(t, string(rec.Side))
	assert.Zero(t, rec.Size)
	assert.Zero(t, rec.StopLossPrice)
	assert.Zero(t, rec.PeakProfitPct)
	assert.Equal(t, domain.StanceFlat, rec.ExternalStance)
}

func TestApplySignal_InvalidMarketDataFails(t *testing.T) {
	ex := &MockExchange{Balance: 1000, PriceErr: errors.New("timeout")}
	svc, tracker, _ := newTestBot(ex)

	err := svc.ApplySignal(context.Background(), longSignal())
	require.Error(t, err)
	assert.Equal(t, 0, ex.OrderCount())
	assert.False(t, tracker.Snapshot().SignalActive)
}

func TestApplySignal_UnknownStanceRejected(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 1.00}
	svc, _, _ := newTestBot(ex)

	err := svc.ApplySignal(context.Background(), domain.Signal{MarketPosition: "sideways"})
	require.Error(t, err)
	assert.Equal(t, 0, ex.OrderCount())
}

func TestApplySignal_SizingRejectsBelowMinimum(t *testing.T) {
	// $1 × 0.96 × 4 = $3.84 exposure, below the $5 venue minimum.
	ex := &MockExchange{Balance: 1, Price: 1.00}
	svc, tracker, _ := newTestBot(ex)

	require.NoError(t, svc.ApplySignal(context.Background(), longSignal()))
	assert.Equal(t, 0, ex.OrderCount())
	// The stance is still armed; a later balance top-up plus signal works.
	assert.True(t, tracker.Snapshot().SignalActive)
}

func TestApplySignal_OpenOrderFailureLeavesFlat(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 1.00, OrderErr: errors.New("rejected")}
	svc, tracker, _ := newTestBot(ex)

	err := svc.ApplySignal(context.Background(), longSignal())
	require.Error(t, err)

	rec := tracker.Snapshot()
	assert.Empty(t, string(rec.Side))
	assert.Zero(t, rec.Size)
}

func TestApplySignal_JournalsOpenTransition(t *testing.T) {
	ex := &MockExchange{Balance: 1000, Price: 1.00}
	svc, _, journal := newTestBot(ex)

	require.NoError(t, svc.ApplySignal(context.Background(), longSignal()))

	require.Len(t, journal.Transitions, 1)
	tr := journal.Transitions[0]
	assert.Equal(t, domain.EventSignalOpen, tr.Event)
	assert.Equal(t, "FLAT", tr.FromState)
	assert.Equal(t, "OPEN", tr.ToState)
	require.Len(t, journal.SavedOrders, 1)
}
