// Package api serves the read-only dashboard: JSON endpoints over the
// entity store and paper portfolio, a WebSocket feed of live alerts, and
// the operational health surface. Nothing here mutates pipeline state
// except the custom watchlist, which is the operator's own list.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/internal/confluence"
	"alpha-scout/internal/paper"
	"alpha-scout/internal/scheduler"
	"alpha-scout/internal/source"
	"alpha-scout/internal/store"
	"alpha-scout/internal/watchlist"
	"alpha-scout/pkg/types"
)

// Deps are the read surfaces the dashboard exposes.
type Deps struct {
	Store    *store.Store
	Trader   *paper.Trader
	Ranker   *watchlist.Ranker
	Sched    *scheduler.Scheduler
	Router   *source.PriceRouter
	Detector *confluence.Detector
	Full     config.Config
}

// Server runs the HTTP/WebSocket dashboard.
type Server struct {
	cfg      config.DashboardConfig
	deps     Deps
	hub      *Hub
	handlers *Handlers
	server   *http.Server
	logger   *slog.Logger
}

func NewServer(cfg config.DashboardConfig, deps Deps, logger *slog.Logger) *Server {
	hub := NewHub(logger)
	handlers := NewHandlers(cfg, deps, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handlers.HandleHealth)
	mux.HandleFunc("GET /api/snapshot", handlers.HandleSnapshot)
	mux.HandleFunc("GET /api/wallets/top", handlers.HandleTopWallets)
	mux.HandleFunc("GET /api/trades/recent", handlers.HandleRecentTrades)
	mux.HandleFunc("GET /api/trending", handlers.HandleTrending)
	mux.HandleFunc("GET /api/alerts", handlers.HandleAlerts)
	mux.HandleFunc("GET /api/paper", handlers.HandlePaper)
	mux.HandleFunc("GET /api/confluence/{side}/{chain}/{token}", handlers.HandleConfluenceWindow)
	mux.HandleFunc("GET /api/watchlist", handlers.HandleWatchlist)
	mux.HandleFunc("GET /api/watchlist/custom", handlers.HandleCustomList)
	mux.HandleFunc("POST /api/watchlist/custom", handlers.HandleCustomAdd)
	mux.HandleFunc("DELETE /api/watchlist/custom/{chain}/{address}", handlers.HandleCustomRemove)
	mux.HandleFunc("GET /ws", handlers.HandleWebSocket)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		cfg:      cfg,
		deps:     deps,
		hub:      hub,
		handlers: handlers,
		server:   server,
		logger:   logger.With("component", "api-server"),
	}
}

// Start blocks serving requests until Stop or a listener error.
func (s *Server) Start() error {
	go s.hub.Run()

	s.logger.Info("dashboard server starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard server: %w", err)
	}
	return nil
}

// Stop drains the server gracefully.
func (s *Server) Stop() error {
	s.logger.Info("stopping dashboard server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// NotifyAlert pushes an alert to connected dashboard clients.
func (s *Server) NotifyAlert(p types.AlertPayload) {
	s.hub.BroadcastEvent(DashboardEvent{Type: "alert", Timestamp: time.Now(), Data: p})
}

// NotifyClose pushes a closed paper trade to connected dashboard clients.
func (s *Server) NotifyClose(tr paper.ClosedTrade) {
	s.hub.BroadcastEvent(DashboardEvent{Type: "trade_closed", Timestamp: time.Now(), Data: tr})
}
