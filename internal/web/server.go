package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitos/futures_signal_bot/internal/config"
	"github.com/vitos/futures_signal_bot/internal/domain"
	"github.com/vitos/futures_signal_bot/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router   *http.ServeMux
	server   *http.Server
	cfg      *config.Config
	service  *usecase.BotService
	dedup    *usecase.Dedup
	exchange domain.Exchange
	journal  domain.Journal
	logger   *zap.Logger
}

func NewServer(
	cfg *config.Config,
	service *usecase.BotService,
	dedup *usecase.Dedup,
	exchange domain.Exchange,
	journal domain.Journal,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:   http.NewServeMux(),
		cfg:      cfg,
		service:  service,
		dedup:    dedup,
		exchange: exchange,
		journal:  journal,
		logger:   logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Liveness
	s.router.HandleFunc("GET /", s.handleHome)
	s.router.HandleFunc("GET /health", s.handleHealth)

	// State
	s.router.HandleFunc("GET /status", s.handleStatus)
	s.router.HandleFunc("GET /journal", s.handleJournal)

	// Signal intake
	s.router.HandleFunc("POST /webhook", s.handleWebhook)

	// Diagnostics
	s.router.HandleFunc("GET /test-credentials", s.handleTestCredentials)
	s.router.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
