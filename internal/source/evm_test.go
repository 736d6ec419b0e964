package source

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

func TestPoolAddresses(t *testing.T) {
	t.Parallel()

	addrs := []string{
		"0xpool", "0xpool", "0xpool", // 3 sends: pool
		"0xbusy", "0xbusy", // 2 sends: below K
		"0xonce",
		"", // invalid entries are dropped upstream
	}

	pools := poolAddresses(addrs, 3)
	if !pools["0xpool"] {
		t.Error("address with 3 sends should be a pool")
	}
	if pools["0xbusy"] {
		t.Error("address with 2 sends should not be a pool at K=3")
	}
	if pools["0xonce"] || pools[""] {
		t.Error("one-off and empty addresses should not be pools")
	}
}

func TestPoolAddressesCountsWithinWindowOnly(t *testing.T) {
	t.Parallel()

	// Same address below threshold in each call: the heuristic has no
	// memory across windows.
	for i := 0; i < 5; i++ {
		pools := poolAddresses([]string{"0xa", "0xa"}, 3)
		if len(pools) != 0 {
			t.Fatalf("call %d: pools = %v, want none", i, pools)
		}
	}
}

func TestTransferQtyPrefersRawAmount(t *testing.T) {
	t.Parallel()

	var tr assetTransfer
	tr.Value = 999 // stale float from the API
	tr.RawContract.Value = "0xde0b6b3a7640000" // 1e18
	tr.RawContract.Decimal = "0x12"            // 18

	if got := transferQty(tr); math.Abs(got-1.0) > 1e-12 {
		t.Errorf("qty = %v, want 1.0 from raw amount", got)
	}
}

func TestTransferQtyFallsBackToFloat(t *testing.T) {
	t.Parallel()

	var tr assetTransfer
	tr.Value = 42.5

	if got := transferQty(tr); got != 42.5 {
		t.Errorf("qty = %v, want 42.5 fallback", got)
	}

	tr.RawContract.Value = "not-hex"
	if got := transferQty(tr); got != 42.5 {
		t.Errorf("qty = %v, want 42.5 on parse failure", got)
	}
}

func TestTransferQtyDefaultsTo18Decimals(t *testing.T) {
	t.Parallel()

	var tr assetTransfer
	tr.RawContract.Value = "0x1bc16d674ec80000" // 2e18

	if got := transferQty(tr); math.Abs(got-2.0) > 1e-12 {
		t.Errorf("qty = %v, want 2.0 with default decimals", got)
	}
}

type flatPricer struct{ price float64 }

func (f flatPricer) TokenPrice(ctx context.Context, chain types.Chain, token string) types.TokenQuote {
	return types.TokenQuote{PriceUSD: f.price, Source: "test"}
}

func TestRecentWalletTradesInterleavesSidesNewestFirst(t *testing.T) {
	t.Parallel()

	const (
		pool   = "0x00000000000000000000000000000000000000aa"
		sink   = "0x00000000000000000000000000000000000000bb"
		wallet = "0x00000000000000000000000000000000000000cc"
		token  = "0x00000000000000000000000000000000000000dd"
	)
	transfer := func(hash, from, to, ts string) map[string]any {
		return map[string]any{
			"hash": hash, "from": from, "to": to, "value": 100.0,
			"rawContract": map[string]any{"address": token},
			"metadata":    map[string]any{"blockTimestamp": ts},
		}
	}
	// Each direction is a separate desc-ordered API response; the newest
	// trade overall is a sell.
	incoming := []map[string]any{
		transfer("0xb3", pool, wallet, "2026-05-02T11:48:00Z"),
		transfer("0xb2", pool, wallet, "2026-05-02T11:47:00Z"),
		transfer("0xb1", pool, wallet, "2026-05-02T11:46:00Z"),
	}
	outgoing := []map[string]any{
		transfer("0xs1", wallet, sink, "2026-05-02T11:59:00Z"),
		transfer("0xs2", wallet, sink, "2026-05-02T11:50:00Z"),
		transfer("0xs3", wallet, sink, "2026-05-02T11:45:00Z"),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_blockNumber":
			json.NewEncoder(w).Encode(map[string]any{"result": "0x2710"})
		case "alchemy_getAssetTransfers":
			filter := req.Params[0].(map[string]any)
			transfers := outgoing
			if _, in := filter["toAddress"]; in {
				transfers = incoming
			}
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{"transfers": transfers},
			})
		default:
			http.Error(w, "unexpected method "+req.Method, http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)

	a := &EVMAdapter{
		chain:    types.Ethereum,
		http:     newHTTPClient(srv.URL, config.SourcesConfig{}),
		rl:       newPolitenessBucket(100),
		pricer:   flatPricer{price: 0.5},
		poolMinK: 3,
		logger:   testLogger(),
	}

	out, err := a.RecentWalletTrades(context.Background(), wallet, 100)
	if err != nil {
		t.Fatalf("RecentWalletTrades: %v", err)
	}

	want := []struct {
		tx   string
		side types.Side
	}{
		{"0xs1", types.Sell},
		{"0xs2", types.Sell},
		{"0xb3", types.Buy},
		{"0xb2", types.Buy},
		{"0xb1", types.Buy},
		{"0xs3", types.Sell},
	}
	if len(out) != len(want) {
		t.Fatalf("trades = %d, want %d", len(out), len(want))
	}
	for i, w := range want {
		if out[i].TxHash != w.tx || out[i].Side != w.side {
			t.Errorf("out[%d] = %s %s, want %s %s", i, out[i].TxHash, out[i].Side, w.tx, w.side)
		}
	}
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.After(out[i-1].Timestamp) {
			t.Errorf("out[%d] is newer than out[%d]", i, i-1)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"checksummed", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
		{"already lower", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
		{"not an address", "hello", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := normalizeAddress(tt.in); got != tt.want {
				t.Errorf("normalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
