// Package paper runs the simulated portfolio that reacts to confluence
// signals. No real orders are ever placed: state is a virtual cash balance,
// open positions, and a closed-trade ledger, serialized to a JSON log after
// every mutation so restarts lose at most nothing.
package paper

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// Position is one open paper holding, keyed by token address.
type Position struct {
	Token         string      `json:"token_address"`
	Chain         types.Chain `json:"chain_id"`
	Qty           float64     `json:"qty"`
	EntryPrice    float64     `json:"entry_price"`
	CostBasisUSD  float64     `json:"cost_basis"`
	BoughtAt      time.Time   `json:"bought_at"`
	NumWhales     int         `json:"num_whales"`
	TakeProfitPct float64     `json:"take_profit_pct"`
	StopLossPct   float64     `json:"stop_loss_pct"`
	BuyReason     string      `json:"buy_reason"`

	// Trailing stop bookkeeping. PeakReturnPct is only meaningful once
	// TrailArmed is set.
	TrailArmed    bool    `json:"trail_armed"`
	PeakReturnPct float64 `json:"peak_return_pct"`
}

// ClosedTrade is one completed round trip in the ledger.
type ClosedTrade struct {
	Token        string      `json:"token_address"`
	Chain        types.Chain `json:"chain_id"`
	Qty          float64     `json:"qty"`
	EntryPrice   float64     `json:"entry_price"`
	ExitPrice    float64     `json:"exit_price"`
	CostBasisUSD float64     `json:"cost_basis"`
	ProceedsUSD  float64     `json:"proceeds"`
	ProfitUSD    float64     `json:"profit_loss"`
	ProfitPct    float64     `json:"profit_pct"`
	HoldHours    float64     `json:"hold_time_hours"`
	BoughtAt     time.Time   `json:"bought_at"`
	SoldAt       time.Time   `json:"sold_at"`
	BuyReason    string      `json:"buy_reason"`
	SellReason   string      `json:"sell_reason"`
	NumWhales    int         `json:"num_whales"`
}

// state is everything that survives a restart.
type state struct {
	StartingBalance float64              `json:"starting_balance"`
	Cash            float64              `json:"cash"`
	Positions       map[string]*Position `json:"positions"`
	Closed          []ClosedTrade        `json:"closed_trades"`
	TotalProfitUSD  float64              `json:"total_profit"`
	TotalLossUSD    float64              `json:"total_loss"`
	WinCount        int                  `json:"win_count"`
	LossCount       int                  `json:"loss_count"`
	UpdatedAt       time.Time            `json:"last_updated"`
}

// Trader owns the paper portfolio. All mutations go through its mutex; the
// rest of the system reads via snapshots.
type Trader struct {
	cfg    config.PaperConfig
	logger *slog.Logger

	mu sync.Mutex
	st state

	now func() time.Time
}

// NewTrader restores state from the configured log when present, otherwise
// starts fresh with the configured balance.
func NewTrader(cfg config.PaperConfig, logger *slog.Logger) (*Trader, error) {
	t := &Trader{
		cfg:    cfg,
		logger: logger.With("component", "paper"),
		now:    time.Now,
		st: state{
			StartingBalance: cfg.StartingBalance,
			Cash:            cfg.StartingBalance,
			Positions:       make(map[string]*Position),
		},
	}

	if cfg.LogPath != "" {
		data, err := os.ReadFile(cfg.LogPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read paper log: %w", err)
		default:
			var restored state
			if err := json.Unmarshal(data, &restored); err != nil {
				return nil, fmt.Errorf("parse paper log %s: %w", cfg.LogPath, err)
			}
			if restored.Positions == nil {
				restored.Positions = make(map[string]*Position)
			}
			t.st = restored
			t.logger.Info("paper state restored",
				"cash", restored.Cash, "open", len(restored.Positions), "closed", len(restored.Closed))
		}
	}
	return t, nil
}

// sizing returns the fraction of cash to deploy and the TP/SL for a signal
// backed by n distinct wallets.
func sizing(n int) (sizePct, tpPct, slPct float64) {
	switch {
	case n >= 10:
		return 0.60, 40, -15
	case n >= 7:
		return 0.50, 35, -15
	default:
		return 0.40, 30, -15
	}
}

// EntrySignal is a buy-side confluence hit plus the token market snapshot.
type EntrySignal struct {
	Chain     types.Chain
	Token     string
	Profile   TokenProfile
	NumWhales int
	Reason    string
}

// Enter opens a position when every precondition holds. The returned reason
// explains a refusal; entered=true means cash moved and state was logged.
func (t *Trader) Enter(sig EntrySignal) (entered bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if sig.Profile.PriceUSD <= 0 {
		return false, "no_price"
	}
	if !Eligible(t.cfg, sig.Profile) {
		return false, "filtered"
	}
	if _, held := t.st.Positions[sig.Token]; held {
		return false, "already_held"
	}
	if len(t.st.Positions) >= t.cfg.MaxPositions {
		return false, "max_positions"
	}
	if t.st.Cash < t.cfg.MinCashUSD {
		return false, "insufficient_cash"
	}

	sizePct, tp, sl := sizing(sig.NumWhales)
	amount := t.st.Cash * sizePct
	qty := amount / sig.Profile.PriceUSD

	t.st.Positions[sig.Token] = &Position{
		Token:         sig.Token,
		Chain:         sig.Chain,
		Qty:           qty,
		EntryPrice:    sig.Profile.PriceUSD,
		CostBasisUSD:  amount,
		BoughtAt:      t.now(),
		NumWhales:     sig.NumWhales,
		TakeProfitPct: tp,
		StopLossPct:   sl,
		BuyReason:     sig.Reason,
	}
	t.st.Cash -= amount

	t.logger.Info("paper buy",
		"token", sig.Token, "chain", sig.Chain, "qty", qty,
		"price", sig.Profile.PriceUSD, "cost", amount,
		"whales", sig.NumWhales, "cash", t.st.Cash)
	t.saveLocked()
	return true, ""
}

// Mark re-evaluates one open position against a fresh price. whaleSells is
// the count of distinct watchlist wallets that sold this token inside the
// confluence window. A zero or negative mark holds the position untouched.
// Exit rules fire in fixed order: take profit, stop loss, max hold,
// trailing stop, whale exit.
func (t *Trader) Mark(token string, markPrice float64, whaleSells int) (*ClosedTrade, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.st.Positions[token]
	if !ok {
		return nil, false
	}
	if markPrice <= 0 {
		t.logger.Warn("stale mark, holding position", "token", token)
		return nil, false
	}

	ret := (markPrice - pos.EntryPrice) / pos.EntryPrice * 100
	age := t.now().Sub(pos.BoughtAt)

	if ret >= t.cfg.TrailActivatePct {
		if !pos.TrailArmed || ret > pos.PeakReturnPct {
			pos.TrailArmed = true
			pos.PeakReturnPct = ret
		}
	}

	var sellReason string
	switch {
	case ret >= pos.TakeProfitPct:
		sellReason = fmt.Sprintf("take_profit (%+.1f%%)", ret)
	case ret <= pos.StopLossPct:
		sellReason = fmt.Sprintf("stop_loss (%+.1f%%)", ret)
	case age >= time.Duration(t.cfg.MaxHoldHours)*time.Hour:
		sellReason = fmt.Sprintf("max_hold (%.1fh)", age.Hours())
	case pos.TrailArmed && pos.PeakReturnPct-ret >= t.cfg.TrailDropPts:
		sellReason = fmt.Sprintf("trailing_stop (peak %+.1f%%, now %+.1f%%)", pos.PeakReturnPct, ret)
	case whaleSells >= t.cfg.WhaleExitCount:
		sellReason = fmt.Sprintf("whale_exit (%d selling)", whaleSells)
	default:
		t.saveLocked()
		return nil, false
	}

	closed := t.closeLocked(pos, markPrice, sellReason)
	return &closed, true
}

// closeLocked removes the position, credits proceeds, and appends to the
// ledger. Caller holds the mutex.
func (t *Trader) closeLocked(pos *Position, markPrice float64, sellReason string) ClosedTrade {
	proceeds := pos.Qty * markPrice
	profit := proceeds - pos.CostBasisUSD
	profitPct := profit / pos.CostBasisUSD * 100
	soldAt := t.now()

	t.st.Cash += proceeds
	if profit > 0 {
		t.st.WinCount++
		t.st.TotalProfitUSD += profit
	} else {
		t.st.LossCount++
		t.st.TotalLossUSD += -profit
	}

	closed := ClosedTrade{
		Token:        pos.Token,
		Chain:        pos.Chain,
		Qty:          pos.Qty,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    markPrice,
		CostBasisUSD: pos.CostBasisUSD,
		ProceedsUSD:  proceeds,
		ProfitUSD:    profit,
		ProfitPct:    profitPct,
		HoldHours:    soldAt.Sub(pos.BoughtAt).Hours(),
		BoughtAt:     pos.BoughtAt,
		SoldAt:       soldAt,
		BuyReason:    pos.BuyReason,
		SellReason:   sellReason,
		NumWhales:    pos.NumWhales,
	}
	t.st.Closed = append(t.st.Closed, closed)
	delete(t.st.Positions, pos.Token)

	t.logger.Info("paper sell",
		"token", pos.Token, "exit", markPrice, "proceeds", proceeds,
		"profit", profit, "pct", profitPct, "reason", sellReason, "cash", t.st.Cash)
	t.saveLocked()
	return closed
}

// Holding reports whether the trader has an open position in token.
func (t *Trader) Holding(token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.st.Positions[token]
	return ok
}

// OpenPositions returns a copy of the open positions.
func (t *Trader) OpenPositions() []Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Position, 0, len(t.st.Positions))
	for _, pos := range t.st.Positions {
		out = append(out, *pos)
	}
	return out
}

// Cash returns the current virtual cash balance.
func (t *Trader) Cash() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.st.Cash
}

// ClosedTrades returns a copy of the ledger.
func (t *Trader) ClosedTrades() []ClosedTrade {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]ClosedTrade(nil), t.st.Closed...)
}

// Report summarizes portfolio performance for the dashboard.
type Report struct {
	StartingBalance   float64      `json:"starting_balance"`
	CashUSD           float64      `json:"cash_usd"`
	OpenPositionsUSD  float64      `json:"open_positions_usd"`
	PortfolioUSD      float64      `json:"portfolio_usd"`
	NetProfitUSD      float64      `json:"net_profit_usd"`
	ROIPct            float64      `json:"roi_pct"`
	TotalTrades       int          `json:"total_trades"`
	WinCount          int          `json:"win_count"`
	LossCount         int          `json:"loss_count"`
	WinRatePct        float64      `json:"win_rate_pct"`
	TotalProfitUSD    float64      `json:"total_profit_usd"`
	TotalLossUSD      float64      `json:"total_loss_usd"`
	OpenPositionCount int          `json:"open_position_count"`
	BestTrade         *ClosedTrade `json:"best_trade,omitempty"`
	WorstTrade        *ClosedTrade `json:"worst_trade,omitempty"`
	Grade             string       `json:"grade"`
}

// Performance computes the report. Open positions are valued at cost since
// live marks belong to the position manager, not the snapshot.
func (t *Trader) Performance() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	var openValue float64
	for _, pos := range t.st.Positions {
		openValue += pos.CostBasisUSD
	}
	portfolio := t.st.Cash + openValue

	r := Report{
		StartingBalance:   t.st.StartingBalance,
		CashUSD:           t.st.Cash,
		OpenPositionsUSD:  openValue,
		PortfolioUSD:      portfolio,
		NetProfitUSD:      t.st.TotalProfitUSD - t.st.TotalLossUSD,
		ROIPct:            (portfolio - t.st.StartingBalance) / t.st.StartingBalance * 100,
		TotalTrades:       len(t.st.Closed),
		WinCount:          t.st.WinCount,
		LossCount:         t.st.LossCount,
		TotalProfitUSD:    t.st.TotalProfitUSD,
		TotalLossUSD:      t.st.TotalLossUSD,
		OpenPositionCount: len(t.st.Positions),
	}
	if r.TotalTrades > 0 {
		r.WinRatePct = float64(r.WinCount) / float64(r.TotalTrades) * 100
	}

	for i := range t.st.Closed {
		ct := t.st.Closed[i]
		if r.BestTrade == nil || ct.ProfitPct > r.BestTrade.ProfitPct {
			best := ct
			r.BestTrade = &best
		}
		if r.WorstTrade == nil || ct.ProfitPct < r.WorstTrade.ProfitPct {
			worst := ct
			r.WorstTrade = &worst
		}
	}
	r.Grade = grade(r.ROIPct)
	return r
}

func grade(roi float64) string {
	switch {
	case roi >= 50:
		return "S"
	case roi >= 25:
		return "A+"
	case roi >= 10:
		return "A"
	case roi >= 5:
		return "B"
	case roi >= 0:
		return "C"
	default:
		return "F"
	}
}

// saveLocked writes the state log atomically. Persistence failures are
// logged, never fatal: the in-memory state stays authoritative.
func (t *Trader) saveLocked() {
	if t.cfg.LogPath == "" {
		return
	}
	t.st.UpdatedAt = t.now()

	data, err := json.MarshalIndent(t.st, "", "  ")
	if err != nil {
		t.logger.Error("marshal paper state", "error", err)
		return
	}
	tmp := t.cfg.LogPath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(t.cfg.LogPath), 0o755); err != nil {
		t.logger.Error("create paper log dir", "error", err)
		return
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		t.logger.Error("write paper log", "error", err)
		return
	}
	if err := os.Rename(tmp, t.cfg.LogPath); err != nil {
		t.logger.Error("rename paper log", "error", err)
	}
}
