package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"alpha-scout/internal/config"
	"alpha-scout/internal/store"
	"alpha-scout/internal/watchlist"
)

func testHandlers(t *testing.T) (*Handlers, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(t.TempDir(), "scout.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Config{Chains: "ethereum,solana"}
	deps := Deps{
		Store:  st,
		Ranker: watchlist.NewRanker(st, cfg.Watchlist, logger),
		Full:   cfg,
	}
	return NewHandlers(config.DashboardConfig{}, deps, NewHub(logger), logger), st
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	h, _ := testHandlers(t)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
}

func TestHandleSnapshotEmptyStore(t *testing.T) {
	t.Parallel()

	h, _ := testHandlers(t)
	rec := httptest.NewRecorder()
	h.HandleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var snap DashboardSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.WatchlistSize != 0 {
		t.Errorf("watchlist size = %d, want 0", snap.WatchlistSize)
	}
	if len(snap.Chains) != 2 {
		t.Errorf("chains = %v, want 2 entries", snap.Chains)
	}
}

func TestCustomWalletLifecycle(t *testing.T) {
	t.Parallel()

	h, _ := testHandlers(t)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/watchlist/custom", h.HandleCustomAdd)
	mux.HandleFunc("GET /api/watchlist/custom", h.HandleCustomList)
	mux.HandleFunc("DELETE /api/watchlist/custom/{chain}/{address}", h.HandleCustomRemove)

	body := strings.NewReader(`{"address": "0xABCDEF0000000000000000000000000000000001", "chain": "ethereum", "label": "smart money"}`)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/watchlist/custom", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/watchlist/custom", nil))
	var listed struct {
		Wallets []store.CustomWallet `json:"wallets"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed.Wallets) != 1 {
		t.Fatalf("wallets = %d, want 1", len(listed.Wallets))
	}
	// EVM addresses are normalized to lowercase on the way in.
	if listed.Wallets[0].Address != "0xabcdef0000000000000000000000000000000001" {
		t.Errorf("address = %s", listed.Wallets[0].Address)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete,
		"/api/watchlist/custom/ethereum/0xABCDEF0000000000000000000000000000000001", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d, body %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete,
		"/api/watchlist/custom/ethereum/0xabcdef0000000000000000000000000000000001", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second remove status = %d, want 404", rec.Code)
	}
}

func TestHandleCustomAddRejectsBadInput(t *testing.T) {
	t.Parallel()

	h, _ := testHandlers(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"missing address", `{"chain": "ethereum"}`},
		{"unknown chain", `{"address": "0xabc", "chain": "dogechain"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/watchlist/custom", strings.NewReader(tt.body))
			h.HandleCustomAdd(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleAlertsEmpty(t *testing.T) {
	t.Parallel()

	h, _ := testHandlers(t)
	rec := httptest.NewRecorder()
	h.HandleAlerts(rec, httptest.NewRequest(http.MethodGet, "/api/alerts?hours=48", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIntQueryClamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  int
	}{
		{"limit=5", 5},
		{"limit=9999", 200},
		{"limit=0", 25},
		{"limit=abc", 25},
		{"", 25},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/x?"+tt.query, nil)
		if got := intQuery(r, "limit", 25, 200); got != tt.want {
			t.Errorf("intQuery(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestIsOriginAllowed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		cfg     config.DashboardConfig
		reqHost string
		want    bool
	}{
		{
			name:    "empty origin is allowed",
			origin:  "",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8090",
			want:    true,
		},
		{
			name:    "localhost origin allowed by default",
			origin:  "http://localhost:8090",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8090",
			want:    true,
		},
		{
			name:    "non-local origin denied by default",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{},
			reqHost: "localhost:8090",
			want:    false,
		},
		{
			name:    "allowlist permits exact origin",
			origin:  "https://dash.example.com",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8090",
			want:    true,
		},
		{
			name:    "allowlist denies everything else",
			origin:  "https://evil.example",
			cfg:     config.DashboardConfig{AllowedOrigins: []string{"https://dash.example.com"}},
			reqHost: "0.0.0.0:8090",
			want:    false,
		},
		{
			name:    "same host allowed when no allowlist",
			origin:  "https://scout.internal:8090",
			cfg:     config.DashboardConfig{},
			reqHost: "scout.internal:8090",
			want:    true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isOriginAllowed(tt.origin, tt.cfg, tt.reqHost); got != tt.want {
				t.Fatalf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
