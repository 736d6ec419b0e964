package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"alpha-scout/internal/config"
	"alpha-scout/internal/store"
	"alpha-scout/pkg/types"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	cfg    config.DashboardConfig
	deps   Deps
	hub    *Hub
	logger *slog.Logger
}

func NewHandlers(cfg config.DashboardConfig, deps Deps, hub *Hub, logger *slog.Logger) *Handlers {
	return &Handlers{
		cfg:    cfg,
		deps:   deps,
		hub:    hub,
		logger: logger.With("component", "api-handlers"),
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response encode failed", "error", err)
	}
}

// intQuery reads an integer query parameter, clamped to [1, max].
func intQuery(r *http.Request, name string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

// HandleHealth reports process liveness plus the job and price-source record.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "timestamp": time.Now().UTC()}
	if h.deps.Sched != nil {
		resp["jobs"] = h.deps.Sched.Health()
	}
	if h.deps.Router != nil {
		resp["price_failures"] = h.deps.Router.FailureCounts()
	}
	h.writeJSON(w, resp)
}

// HandleSnapshot returns the full dashboard state.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := BuildSnapshot(r.Context(), h.deps)
	if err != nil {
		h.logger.Error("snapshot build failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, snap)
}

// HandleTopWallets returns wallets ranked by 30-day realized P&L.
func (h *Handlers) HandleTopWallets(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 25, 200)
	stats, err := h.deps.Store.TopWalletStats(r.Context(), limit)
	if err != nil {
		h.logger.Error("top wallets query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"wallets": stats})
}

// HandleRecentTrades returns the newest recorded trades across all wallets.
func (h *Handlers) HandleRecentTrades(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50, 500)
	trades, err := h.deps.Store.RecentTrades(r.Context(), limit)
	if err != nil {
		h.logger.Error("recent trades query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"trades": trades})
}

// HandleTrending returns the trending tokens observed over the last day.
func (h *Handlers) HandleTrending(w http.ResponseWriter, r *http.Request) {
	hours := intQuery(r, "hours", 24, 24*7)
	limit := intQuery(r, "limit", 50, 500)
	seeds, err := h.deps.Store.RecentSeeds(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour), limit)
	if err != nil {
		h.logger.Error("trending query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"tokens": seeds})
}

// HandleAlerts returns the alert log, newest first.
func (h *Handlers) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	hours := intQuery(r, "hours", 24, 24*30)
	limit := intQuery(r, "limit", 100, 1000)
	alerts, err := h.deps.Store.AlertsSince(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour), limit)
	if err != nil {
		h.logger.Error("alerts query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"alerts": alerts})
}

// HandlePaper returns the paper portfolio report and open positions.
func (h *Handlers) HandlePaper(w http.ResponseWriter, r *http.Request) {
	if h.deps.Trader == nil {
		http.Error(w, "paper trading disabled", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]any{
		"report":    h.deps.Trader.Performance(),
		"positions": h.deps.Trader.OpenPositions(),
		"closed":    h.deps.Trader.ClosedTrades(),
	})
}

// HandleConfluenceWindow returns the live window stats for one
// (side, chain, token) key.
func (h *Handlers) HandleConfluenceWindow(w http.ResponseWriter, r *http.Request) {
	if h.deps.Detector == nil {
		http.Error(w, "not available", http.StatusNotFound)
		return
	}
	side := types.Side(r.PathValue("side"))
	chain := types.Chain(r.PathValue("chain"))
	token := r.PathValue("token")
	if !side.Valid() || !chain.Valid() || token == "" {
		http.Error(w, "side, chain and token required", http.StatusBadRequest)
		return
	}
	h.writeJSON(w, h.deps.Detector.Stats(r.Context(), side, chain, token))
}

// HandleWatchlist returns the monitored wallet set with scores.
func (h *Handlers) HandleWatchlist(w http.ResponseWriter, r *http.Request) {
	set, err := h.deps.Ranker.MonitoredSet(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("watchlist query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"wallets": set})
}

// HandleCustomList returns the operator's custom wallets.
func (h *Handlers) HandleCustomList(w http.ResponseWriter, r *http.Request) {
	wallets, err := h.deps.Store.CustomWallets(r.Context())
	if err != nil {
		h.logger.Error("custom wallets query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{"wallets": wallets})
}

type customAddRequest struct {
	Address string      `json:"address"`
	Chain   types.Chain `json:"chain"`
	Label   string      `json:"label"`
	Notes   string      `json:"notes"`
}

// HandleCustomAdd adds a wallet to the custom watchlist.
func (h *Handlers) HandleCustomAdd(w http.ResponseWriter, r *http.Request) {
	var req customAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" || !req.Chain.Valid() {
		http.Error(w, "address and valid chain required", http.StatusBadRequest)
		return
	}
	if req.Chain.IsEVM() {
		req.Address = strings.ToLower(req.Address)
	}

	err := h.deps.Store.AddCustomWallet(r.Context(), store.CustomWallet{
		Address: req.Address,
		Chain:   req.Chain,
		AddedAt: time.Now().UTC(),
		AddedBy: "api",
		Label:   req.Label,
		Notes:   req.Notes,
	})
	if err != nil {
		h.logger.Error("custom wallet add failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	h.writeJSON(w, map[string]string{"status": "added"})
}

// HandleCustomRemove deactivates a custom wallet.
func (h *Handlers) HandleCustomRemove(w http.ResponseWriter, r *http.Request) {
	chain := types.Chain(r.PathValue("chain"))
	address := r.PathValue("address")
	if !chain.Valid() || address == "" {
		http.Error(w, "address and valid chain required", http.StatusBadRequest)
		return
	}
	if chain.IsEVM() {
		address = strings.ToLower(address)
	}

	removed, err := h.deps.Store.RemoveCustomWallet(r.Context(), chain, address)
	if err != nil {
		h.logger.Error("custom wallet remove failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !removed {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, map[string]string{"status": "removed"})
}

// HandleWebSocket upgrades the connection and seeds the client with a
// snapshot.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return isOriginAllowed(r.Header.Get("Origin"), h.cfg, r.Host)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := NewClient(h.hub, conn)

	snap, err := BuildSnapshot(r.Context(), h.deps)
	if err != nil {
		h.logger.Error("snapshot build failed", "error", err)
		return
	}
	data, err := json.Marshal(DashboardEvent{Type: "snapshot", Timestamp: time.Now(), Data: snap})
	if err != nil {
		h.logger.Error("snapshot marshal failed", "error", err)
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.Warn("initial snapshot dropped, client send buffer full")
	}
}

// isOriginAllowed gates WebSocket upgrades: same host and localhost are
// always fine, anything else must be on the configured allowlist.
func isOriginAllowed(origin string, cfg config.DashboardConfig, reqHost string) bool {
	if origin == "" {
		return true
	}
	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			if origin == allowed {
				return true
			}
		}
		return false
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return u.Host == reqHost
}
