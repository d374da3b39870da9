package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Signal bot running (%s)", s.cfg.Exchange.Symbol)
}

// handleHealth doubles as the legacy protective trigger: external pingers
// hitting /health drive an evaluation cycle on top of the internal ticker.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.service.Tracker().Snapshot().SignalActive {
		s.service.EvaluateRisk(r.Context())
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var sig domain.Signal
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&sig); err != nil {
		s.logger.Warn("Webhook body rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, webhookResponse{Status: "error", Message: "invalid payload"})
		return
	}

	if !s.dedup.Accept(sig) {
		s.logger.Info("Duplicate webhook skipped")
		metrics.Duplicates.Inc()
		writeJSON(w, http.StatusOK, webhookResponse{Status: "duplicate"})
		return
	}

	if err := s.service.ApplySignal(r.Context(), sig); err != nil {
		s.logger.Error("Signal handling failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, webhookResponse{Status: "error", Message: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec := s.service.Tracker().Snapshot()
	snap := s.service.Cache().Get(r.Context())

	status := map[string]any{
		"signalActive":   rec.SignalActive,
		"externalStance": stanceOrFlat(rec.ExternalStance),
		"actualPosition": string(snap.ActualStance()),
		"size":           rec.Size,
		"entryPrice":     rec.EntryPrice,
		"currentPrice":   snap.Price,
		"stopLossPrice":  rec.StopLossPrice,
		"balance":        snap.Balance,
	}

	if rec.Tracked() && rec.EntryPrice > 0 {
		pnl := directionalPnLPct(rec.Side, rec.EntryPrice, snap.Price)
		status["pnl"] = fmt.Sprintf("%.2f%%", pnl)
		status["pnlLeveraged"] = fmt.Sprintf("%.2f%%", pnl*float64(s.cfg.Trading.Leverage))
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	transitions, err := s.journal.ListTransitions(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list transitions", zap.Error(err))
		http.Error(w, "journal unavailable", http.StatusInternalServerError)
		return
	}
	orders, err := s.journal.ListOrders(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		http.Error(w, "journal unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transitions": transitions,
		"orders":      orders,
	})
}

// handleTestCredentials reports credential presence and a trial venue round
// trip without leaking secrets. No side effects.
func (s *Server) handleTestCredentials(w http.ResponseWriter, r *http.Request) {
	creds := s.cfg.Credentials

	result := map[string]any{
		"api_key_length":        len(creds.APIKey),
		"api_secret_length":     len(creds.APISecret),
		"api_passphrase_length": len(creds.APIPassphrase),
		"credentials_loaded":    creds.Loaded(),
	}
	if len(creds.APIKey) >= 8 {
		result["api_key_prefix"] = creds.APIKey[:8]
	} else {
		result["api_key_prefix"] = "empty"
	}

	if ts, err := s.exchange.ServerTime(r.Context()); err == nil {
		result["server_time"] = ts
	} else {
		result["server_time_error"] = err.Error()
	}

	if balance, err := s.exchange.GetBalance(r.Context()); err == nil {
		result["balance_test"] = "success"
		result["balance"] = balance
	} else {
		result["balance_test"] = "failed"
		result["balance_error"] = err.Error()
	}

	writeJSON(w, http.StatusOK, result)
}

func stanceOrFlat(st domain.Stance) string {
	if st == "" {
		return string(domain.StanceFlat)
	}
	return string(st)
}

func directionalPnLPct(side domain.Side, entry, price float64) float64 {
	if entry <= 0 {
		return 0
	}
	if side == domain.SideLong {
		return (price - entry) / entry * 100
	}
	return (entry - price) / entry * 100
}
