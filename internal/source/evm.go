package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// Block lookback windows for transfer scans. Token scans stay shallow (the
// confluence window is 30 minutes); wallet scans reach further back so the
// whale-exit check sees sells from earlier in the day.
const (
	tokenScanBlocks  = 1000
	walletScanBlocks = 5000
)

// EVMAdapter reads ERC-20 transfer activity over Alchemy's JSON-RPC API for
// one EVM chain. Swap direction is inferred from pool behavior: an address
// that appears on the sending side of at least K transfers in the scanned
// window is treated as a liquidity pool, a transfer from a pool is a buy
// and a transfer into a pool is a sell.
type EVMAdapter struct {
	chain    types.Chain
	http     *resty.Client
	rl       *TokenBucket
	pricer   Pricer
	poolMinK int
	logger   *slog.Logger
}

var alchemyHosts = map[types.Chain]string{
	types.Ethereum: "eth-mainnet.g.alchemy.com",
	types.Base:     "base-mainnet.g.alchemy.com",
	types.Arbitrum: "arb-mainnet.g.alchemy.com",
}

func NewEVMAdapter(chain types.Chain, cfg config.SourcesConfig, poolMinK int, pricer Pricer, logger *slog.Logger) (*EVMAdapter, error) {
	host, ok := alchemyHosts[chain]
	if !ok {
		return nil, fmt.Errorf("no alchemy host for chain %q", chain)
	}
	if poolMinK <= 0 {
		poolMinK = 3
	}
	return &EVMAdapter{
		chain:    chain,
		http:     newHTTPClient(fmt.Sprintf("https://%s/v2/%s", host, cfg.AlchemyAPIKey), cfg),
		rl:       newPolitenessBucket(cfg.RequestsPerSec),
		pricer:   pricer,
		poolMinK: poolMinK,
		logger:   logger.With("component", "evm_adapter", "chain", chain),
	}, nil
}

func (a *EVMAdapter) Chain() types.Chain { return a.chain }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type assetTransfer struct {
	Hash        string  `json:"hash"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Value       float64 `json:"value"`
	RawContract struct {
		Address string `json:"address"`
		Value   string `json:"value"`   // hex amount in base units
		Decimal string `json:"decimal"` // hex decimals
	} `json:"rawContract"`
	Metadata struct {
		BlockTimestamp time.Time `json:"blockTimestamp"`
	} `json:"metadata"`
}

type transfersResult struct {
	Transfers []assetTransfer `json:"transfers"`
}

func (a *EVMAdapter) call(ctx context.Context, method string, params []any, result any) error {
	if err := a.rl.Wait(ctx); err != nil {
		return err
	}

	var envelope struct {
		Result any       `json:"result"`
		Error  *rpcError `json:"error"`
	}
	envelope.Result = result

	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}).
		SetResult(&envelope).
		Post("")
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%s: status %d", method, resp.StatusCode())
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	return nil
}

func (a *EVMAdapter) latestBlock(ctx context.Context) (uint64, error) {
	var raw string
	if err := a.call(ctx, "eth_blockNumber", []any{}, &raw); err != nil {
		return 0, err
	}
	n, err := hexutil.DecodeUint64(raw)
	if err != nil {
		return 0, fmt.Errorf("parse block number %q: %w", raw, err)
	}
	return n, nil
}

func (a *EVMAdapter) assetTransfers(ctx context.Context, filter map[string]any) ([]assetTransfer, error) {
	var result transfersResult
	if err := a.call(ctx, "alchemy_getAssetTransfers", []any{filter}, &result); err != nil {
		return nil, err
	}
	return result.Transfers, nil
}

// RecentTokenBuyers scans the token's recent transfers and returns one buy
// trade per transfer leaving a pool.
func (a *EVMAdapter) RecentTokenBuyers(ctx context.Context, token string, limit int) ([]types.Trade, error) {
	latest, err := a.latestBlock(ctx)
	if err != nil {
		return nil, err
	}
	fromBlock := uint64(0)
	if latest > tokenScanBlocks {
		fromBlock = latest - tokenScanBlocks
	}

	transfers, err := a.assetTransfers(ctx, map[string]any{
		"fromBlock":         hexutil.EncodeUint64(fromBlock),
		"toBlock":           "latest",
		"contractAddresses": []string{token},
		"category":          []string{"erc20"},
		"maxCount":          hexutil.EncodeUint64(uint64(min(limit, 1000))),
		"order":             "desc",
		"withMetadata":      true,
	})
	if err != nil {
		return nil, err
	}

	pools := poolAddresses(senders(transfers), a.poolMinK)
	a.logger.Debug("pool heuristic", "token", token, "transfers", len(transfers), "pools", len(pools))

	quote := a.pricer.TokenPrice(ctx, a.chain, token)

	var out []types.Trade
	for _, tr := range transfers {
		from := normalizeAddress(tr.From)
		if !pools[from] {
			continue
		}
		buyer := normalizeAddress(tr.To)
		if buyer == "" || pools[buyer] {
			continue
		}
		out = append(out, a.buildTrade(tr, buyer, token, types.Buy, quote))
	}
	return out, nil
}

// RecentWalletTrades scans both directions of a wallet's transfer history
// and classifies each leg against the pool sets seen in the same window.
func (a *EVMAdapter) RecentWalletTrades(ctx context.Context, wallet string, limit int) ([]types.Trade, error) {
	latest, err := a.latestBlock(ctx)
	if err != nil {
		return nil, err
	}
	fromBlock := uint64(0)
	if latest > walletScanBlocks {
		fromBlock = latest - walletScanBlocks
	}

	base := map[string]any{
		"fromBlock":    hexutil.EncodeUint64(fromBlock),
		"toBlock":      "latest",
		"category":     []string{"erc20"},
		"maxCount":     hexutil.EncodeUint64(uint64(min(limit, 1000))),
		"order":        "desc",
		"withMetadata": true,
	}

	// Transfers into the wallet: buys when the sender is a pool.
	inFilter := cloneFilter(base)
	inFilter["toAddress"] = wallet
	incoming, err := a.assetTransfers(ctx, inFilter)
	if err != nil {
		return nil, err
	}

	// Transfers out of the wallet: sells when the receiver is a pool.
	outFilter := cloneFilter(base)
	outFilter["fromAddress"] = wallet
	outgoing, err := a.assetTransfers(ctx, outFilter)
	if err != nil {
		return nil, err
	}

	buyPools := poolAddresses(senders(incoming), a.poolMinK)
	sellPools := poolAddresses(receivers(outgoing), a.poolMinK)
	walletAddr := normalizeAddress(wallet)

	var out []types.Trade
	for _, tr := range incoming {
		if !buyPools[normalizeAddress(tr.From)] {
			continue
		}
		token := normalizeAddress(tr.RawContract.Address)
		if token == "" {
			continue
		}
		quote := a.pricer.TokenPrice(ctx, a.chain, token)
		out = append(out, a.buildTrade(tr, walletAddr, token, types.Buy, quote))
	}
	for _, tr := range outgoing {
		if !sellPools[normalizeAddress(tr.To)] {
			continue
		}
		token := normalizeAddress(tr.RawContract.Address)
		if token == "" {
			continue
		}
		quote := a.pricer.TokenPrice(ctx, a.chain, token)
		out = append(out, a.buildTrade(tr, walletAddr, token, types.Sell, quote))
	}

	// The two legs arrive as separate desc lists; interleave them so the
	// cursor in the monitor sees one globally newest-first history.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (a *EVMAdapter) buildTrade(tr assetTransfer, wallet, token string, side types.Side, quote types.TokenQuote) types.Trade {
	qty := transferQty(tr)
	value := 0.0
	if !quote.Stale && quote.PriceUSD > 0 {
		value = qty * quote.PriceUSD
	}
	ts := tr.Metadata.BlockTimestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return types.Trade{
		TxHash:    tr.Hash,
		Timestamp: ts,
		Chain:     a.chain,
		Wallet:    wallet,
		Token:     token,
		Side:      side,
		QtyToken:  qty,
		PriceUSD:  quote.PriceUSD,
		ValueUSD:  value,
		Venue:     "dex_pool",
	}
}

// transferQty extracts the token quantity, preferring the raw base-unit
// amount over the float the API pre-computes.
func transferQty(tr assetTransfer) float64 {
	raw := tr.RawContract.Value
	if raw == "" || raw == "0x" {
		return tr.Value
	}
	amount, err := hexutil.DecodeBig(raw)
	if err != nil {
		return tr.Value
	}
	decimals := int64(18)
	if tr.RawContract.Decimal != "" {
		if d, err := hexutil.DecodeUint64(tr.RawContract.Decimal); err == nil {
			decimals = int64(d)
		}
	}
	qty, _ := decimal.NewFromBigInt(amount, int32(-decimals)).Float64()
	return qty
}

// poolAddresses returns the addresses that appear at least minK times in
// the given slice. They are almost certainly liquidity pools: a normal
// wallet does not land on the same side of several transfers of the same
// token inside one short scan window.
func poolAddresses(addrs []string, minK int) map[string]bool {
	counts := make(map[string]int)
	for _, addr := range addrs {
		if addr != "" {
			counts[addr]++
		}
	}
	pools := make(map[string]bool)
	for addr, n := range counts {
		if n >= minK {
			pools[addr] = true
		}
	}
	return pools
}

func senders(transfers []assetTransfer) []string {
	out := make([]string, 0, len(transfers))
	for _, tr := range transfers {
		out = append(out, normalizeAddress(tr.From))
	}
	return out
}

func receivers(transfers []assetTransfer) []string {
	out := make([]string, 0, len(transfers))
	for _, tr := range transfers {
		out = append(out, normalizeAddress(tr.To))
	}
	return out
}

// normalizeAddress lowercases a checksummed address. Invalid input comes
// back empty.
func normalizeAddress(addr string) string {
	if !common.IsHexAddress(addr) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(addr).Hex())
}

func cloneFilter(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
