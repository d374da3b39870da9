package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"go.uber.org/zap"
)

const (
	BitgetBaseURL = "https://api.bitget.com"

	requestTimeout = 10 * time.Second
	maxAttempts    = 3
	retryBackoff   = 300 * time.Millisecond
)

const successCode = "00000"

// BitgetAdapter talks to the Bitget V2 mix (USDT futures) REST API.
// Transient failures come back as errors with zero-value results; callers
// treat those as "no data this cycle".
type BitgetAdapter struct {
	apiKey        string
	apiSecret     string
	apiPassphrase string
	baseURL       string
	symbol        string
	productType   string
	marginCoin    string
	client        *http.Client
	logger        *zap.Logger
}

func NewBitgetAdapter(apiKey, apiSecret, apiPassphrase, baseURL, productType, marginCoin string, logger *zap.Logger) *BitgetAdapter {
	if baseURL == "" {
		baseURL = BitgetBaseURL
	}
	return &BitgetAdapter{
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		apiPassphrase: apiPassphrase,
		baseURL:       baseURL,
		productType:   productType,
		marginCoin:    marginCoin,
		client:        &http.Client{Timeout: requestTimeout},
		logger:        logger,
	}
}

// --- signing ---

// sign builds the V2 signature: base64(HMAC-SHA256(ts + method + path + body)).
// GET requests sign the bare endpoint path, POST requests include the body.
func (b *BitgetAdapter) sign(timestamp, method, path, body string) string {
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

type apiEnvelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// sendRequest signs and sends one request, retrying transport errors and
// 5xx responses with a small backoff. A non-success API code is an error
// but is never retried: the venue understood us and said no.
func (b *BitgetAdapter) sendRequest(ctx context.Context, method, endpoint string, query url.Values, payload any) (*apiEnvelope, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	reqURL := b.baseURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff << attempt):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req, err := http.NewRequestWithContext(ctx, method, reqURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("ACCESS-KEY", b.apiKey)
		req.Header.Set("ACCESS-SIGN", b.sign(timestamp, method, endpoint, string(body)))
		req.Header.Set("ACCESS-TIMESTAMP", timestamp)
		req.Header.Set("ACCESS-PASSPHRASE", b.apiPassphrase)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("locale", "en-US")

		resp, err := b.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("bitget %s %s: status %d: %s", method, endpoint, resp.StatusCode, respBody)
			continue
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("bitget %s %s: status %d: %s", method, endpoint, resp.StatusCode, respBody)
		}

		var env apiEnvelope
		if err := json.Unmarshal(respBody, &env); err != nil {
			return nil, fmt.Errorf("bitget %s %s: bad response: %w", method, endpoint, err)
		}
		if env.Code != successCode {
			return nil, fmt.Errorf("bitget %s %s: code %s: %s", method, endpoint, env.Code, env.Msg)
		}
		return &env, nil
	}

	b.logger.Warn("Bitget request exhausted retries",
		zap.String("method", method), zap.String("endpoint", endpoint), zap.Error(lastErr))
	return nil, lastErr
}

// --- venue operations ---

// GetBalance returns the available margin-coin balance, 0 on failure.
func (b *BitgetAdapter) GetBalance(ctx context.Context) (float64, error) {
	query := url.Values{"productType": {b.productType}}
	env, err := b.sendRequest(ctx, http.MethodGet, "/api/v2/mix/account/accounts", query, nil)
	if err != nil {
		return 0, err
	}

	var accounts []struct {
		MarginCoin string `json:"marginCoin"`
		Available  string `json:"available"`
	}
	if err := json.Unmarshal(env.Data, &accounts); err != nil {
		return 0, fmt.Errorf("parse accounts: %w", err)
	}

	for _, acct := range accounts {
		if acct.MarginCoin == b.marginCoin {
			avail, err := strconv.ParseFloat(acct.Available, 64)
			if err != nil {
				return 0, fmt.Errorf("parse available %q: %w", acct.Available, err)
			}
			return avail, nil
		}
	}
	return 0, fmt.Errorf("no %s account in response", b.marginCoin)
}

// GetPrice returns the last traded price of the symbol, 0 on failure.
func (b *BitgetAdapter) GetPrice(ctx context.Context, symbol string) (float64, error) {
	query := url.Values{"symbol": {symbol}, "productType": {b.productType}}
	env, err := b.sendRequest(ctx, http.MethodGet, "/api/v2/mix/market/ticker", query, nil)
	if err != nil {
		return 0, err
	}

	var tickers []struct {
		LastPr string `json:"lastPr"`
	}
	if err := json.Unmarshal(env.Data, &tickers); err != nil {
		return 0, fmt.Errorf("parse ticker: %w", err)
	}
	if len(tickers) == 0 {
		return 0, fmt.Errorf("empty ticker for %s", symbol)
	}

	price, err := strconv.ParseFloat(tickers[0].LastPr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse lastPr %q: %w", tickers[0].LastPr, err)
	}
	return price, nil
}

// GetPositions returns the held long and short sizes for the symbol.
// A symbol absent from the response means both sides are flat.
func (b *BitgetAdapter) GetPositions(ctx context.Context, symbol string) (float64, float64, error) {
	query := url.Values{"productType": {b.productType}, "marginCoin": {b.marginCoin}}
	env, err := b.sendRequest(ctx, http.MethodGet, "/api/v2/mix/position/all-position", query, nil)
	if err != nil {
		return 0, 0, err
	}

	var positions []struct {
		Symbol   string `json:"symbol"`
		HoldSide string `json:"holdSide"`
		Total    string `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &positions); err != nil {
		return 0, 0, fmt.Errorf("parse positions: %w", err)
	}

	var longSize, shortSize float64
	for _, pos := range positions {
		if pos.Symbol != symbol {
			continue
		}
		total, err := strconv.ParseFloat(pos.Total, 64)
		if err != nil {
			continue
		}
		switch pos.HoldSide {
		case "long":
			longSize = total
		case "short":
			shortSize = total
		}
	}
	return longSize, shortSize, nil
}

// PlaceMarketOrder sends a crossed-margin market order. Quantities are sent
// as whole units, matching the sizing math upstream.
func (b *BitgetAdapter) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, size float64, reduceOnly bool) error {
	if size <= 0 {
		return fmt.Errorf("invalid order size %g", size)
	}

	orderSide := "buy"
	if side == domain.SideShort {
		orderSide = "sell"
	}

	payload := map[string]string{
		"symbol":      symbol,
		"productType": b.productType,
		"marginMode":  "crossed",
		"marginCoin":  b.marginCoin,
		"side":        orderSide,
		"orderType":   "market",
		"size":        strconv.FormatInt(int64(size), 10),
	}
	if reduceOnly {
		payload["reduceOnly"] = "YES"
	}

	_, err := b.sendRequest(ctx, http.MethodPost, "/api/v2/mix/order/place-order", nil, payload)
	return err
}

// ServerTime hits the unauthenticated time endpoint; used by diagnostics to
// separate network reachability from credential problems.
func (b *BitgetAdapter) ServerTime(ctx context.Context) (int64, error) {
	env, err := b.sendRequest(ctx, http.MethodGet, "/api/v2/public/time", nil, nil)
	if err != nil {
		return 0, err
	}

	var data struct {
		ServerTime string `json:"serverTime"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return 0, fmt.Errorf("parse server time: %w", err)
	}
	return strconv.ParseInt(data.ServerTime, 10, 64)
}
