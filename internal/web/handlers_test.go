package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/futures_signal_bot/internal/config"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"github.com/vitos/futures_signal_bot/internal/web"
	"go.uber.org/zap"
)

type stubExchange struct {
	balance   float64
	price     float64
	longSize  float64
	shortSize float64
	orders    int
}

func (s *stubExchange) GetBalance(ctx context.Context) (float64, error) { return s.balance, nil }

func (s *stubExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, nil
}

func (s *stubExchange) GetPositions(ctx context.Context, symbol string) (float64, float64, error) {
	return s.longSize, s.shortSize, nil
}

func (s *stubExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, size float64, reduceOnly bool) error {
	s.orders++
	return nil
}

func (s *stubExchange) ServerTime(ctx context.Context) (int64, error) { return 1700000000000, nil }

type stubJournal struct {
	transitions []*domain.PositionTransition
	orders      []*domain.Order
}

func (s *stubJournal) SaveTransition(ctx context.Context, t *domain.PositionTransition) error {
	s.transitions = append(s.transitions, t)
	return nil
}

func (s *stubJournal) SaveOrder(ctx context.Context, o *domain.Order) error {
	s.orders = append(s.orders, o)
	return nil
}

func (s *stubJournal) ListTransitions(ctx context.Context, limit int) ([]*domain.PositionTransition, error) {
	return s.transitions, nil
}

func (s *stubJournal) ListOrders(ctx context.Context, limit int) ([]*domain.Order, error) {
	return s.orders, nil
}

func newTestServer(ex *stubExchange) (http.Handler, *usecase.BotService) {
	cfg := config.Default()
	cfg.Timing.CacheTTLMs = 0
	cfg.Timing.CheckGateMs = 0
	cfg.Timing.ActionCooldownMs = 0
	cfg.Timing.SettleDelayMs = 0
	cfg.Credentials.APIKey = "bg_test_key_12345"
	cfg.Credentials.APISecret = "secret"
	cfg.Credentials.APIPassphrase = "phrase"

	log := zap.NewNop()
	journal := &stubJournal{}
	cache := usecase.NewMarketCache(ex, cfg.Exchange.Symbol, cfg.CacheTTL(), log)
	tracker := usecase.NewTracker(journal, log)
	executor := usecase.NewTradeExecutor(ex, journal, cfg.Exchange.Symbol, log)
	svc := usecase.NewBotService(cfg, cache, tracker, executor, log)
	dedup := usecase.NewDedup(2 * time.Second)

	return web.NewServer(cfg, svc, dedup, ex, journal, log).Handler(), svc
}

func postWebhook(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestWebhook_AcceptsSignal(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, _ := newTestServer(ex)

	rr := postWebhook(t, h, `{"marketPosition":"long","prevMarketPosition":"flat","timeframe":"5"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, 1, ex.orders)
}

func TestWebhook_SuppressesDuplicate(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, _ := newTestServer(ex)
	payload := `{"marketPosition":"long","prevMarketPosition":"flat","timeframe":"5"}`

	postWebhook(t, h, payload)
	rr := postWebhook(t, h, payload)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, rr.Body.String())
	assert.Equal(t, 1, ex.orders, "duplicate must not reach the venue")
}

func TestWebhook_RejectsMalformedBody(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, _ := newTestServer(ex)

	rr := postWebhook(t, h, `{"marketPosition":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"error"`)
	assert.Equal(t, 0, ex.orders)
}

func TestWebhook_ReportsHandlingFailure(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, _ := newTestServer(ex)

	rr := postWebhook(t, h, `{"marketPosition":"sideways","prevMarketPosition":"flat","timeframe":"5"}`)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp["status"])
	assert.NotEmpty(t, resp["message"])
}

func TestStatus_ReportsTrackedPosition(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, svc := newTestServer(ex)

	sig := domain.Signal{MarketPosition: "long", PrevMarketPosition: "flat", Timeframe: "5"}
	require.NoError(t, svc.ApplySignal(context.Background(), sig))
	ex.longSize = 3840
	ex.price = 1.02

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var status map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, true, status["signalActive"])
	assert.Equal(t, "long", status["externalStance"])
	assert.Equal(t, "long", status["actualPosition"])
	assert.Equal(t, 3840.0, status["size"])
	assert.Equal(t, 1.0, status["entryPrice"])
	assert.Equal(t, 1.02, status["currentPrice"])
	assert.Equal(t, "2.00%", status["pnl"])
	assert.Equal(t, "8.00%", status["pnlLeveraged"])
}

func TestStatus_FlatOmitsPnL(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, _ := newTestServer(ex)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status))
	assert.Equal(t, false, status["signalActive"])
	assert.Equal(t, "flat", status["externalStance"])
	assert.NotContains(t, status, "pnl")
}

func TestHealth_RespondsOK(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, _ := newTestServer(ex)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestHealth_DrivesProtectiveCycle(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, svc := newTestServer(ex)

	sig := domain.Signal{MarketPosition: "long", PrevMarketPosition: "flat", Timeframe: "5"}
	require.NoError(t, svc.ApplySignal(context.Background(), sig))
	ex.longSize = 3840
	before := ex.orders

	// Price through the stop; the ping must close the position.
	ex.price = 0.98
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, before+1, ex.orders)
}

func TestJournal_ListsRows(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, svc := newTestServer(ex)

	sig := domain.Signal{MarketPosition: "long", PrevMarketPosition: "flat", Timeframe: "5"}
	require.NoError(t, svc.ApplySignal(context.Background(), sig))

	req := httptest.NewRequest(http.MethodGet, "/journal?limit=10", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Transitions []json.RawMessage `json:"transitions"`
		Orders      []json.RawMessage `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Len(t, resp.Transitions, 1)
	assert.Len(t, resp.Orders, 1)
}

func TestTestCredentials_NeverLeaksSecrets(t *testing.T) {
	ex := &stubExchange{balance: 1000, price: 1.00}
	h, _ := newTestServer(ex)

	req := httptest.NewRequest(http.MethodGet, "/test-credentials", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(len("bg_test_key_12345")), resp["api_key_length"])
	assert.Equal(t, "bg_test_", resp["api_key_prefix"])
	assert.Equal(t, true, resp["credentials_loaded"])
	assert.Equal(t, "success", resp["balance_test"])
	assert.NotContains(t, rr.Body.String(), "secret")
	assert.NotContains(t, rr.Body.String(), "phrase")
}
