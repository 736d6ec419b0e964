// Package alert delivers signals to outbound sinks. Every sink fails open:
// a delivery error is logged and returned, but alerts are persisted before
// any delivery attempt, so a dead sink loses nothing.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"alpha-scout/internal/config"
	"alpha-scout/pkg/types"
)

// Alerter emits one signal, best-effort.
type Alerter interface {
	Emit(ctx context.Context, p types.AlertPayload) error
}

// Noop swallows alerts. Used when no sink is configured.
type Noop struct{}

func (Noop) Emit(ctx context.Context, p types.AlertPayload) error { return nil }

// Func adapts a plain function to Alerter.
type Func func(ctx context.Context, p types.AlertPayload) error

func (f Func) Emit(ctx context.Context, p types.AlertPayload) error { return f(ctx, p) }

// Multi fans one alert out to several sinks. Every sink is attempted; the
// first error is returned.
type Multi struct {
	mu    sync.RWMutex
	sinks []Alerter
}

func NewMulti(sinks ...Alerter) *Multi {
	return &Multi{sinks: sinks}
}

// Add registers another sink. Safe to call after delivery has started.
func (m *Multi) Add(a Alerter) {
	m.mu.Lock()
	m.sinks = append(m.sinks, a)
	m.mu.Unlock()
}

func (m *Multi) Emit(ctx context.Context, p types.AlertPayload) error {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()

	var first error
	for _, s := range sinks {
		if err := s.Emit(ctx, p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Telegram posts alerts to a chat via the Bot API.
type Telegram struct {
	http   *resty.Client
	chatID string
	logger *slog.Logger
}

func NewTelegram(cfg config.TelegramConfig, logger *slog.Logger) *Telegram {
	return &Telegram{
		http: resty.New().
			SetBaseURL("https://api.telegram.org/bot" + cfg.BotToken).
			SetTimeout(10 * time.Second).
			SetRetryCount(2),
		chatID: cfg.ChatID,
		logger: logger.With("component", "telegram"),
	}
}

func (t *Telegram) Emit(ctx context.Context, p types.AlertPayload) error {
	body := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     FormatMessage(p),
		"disable_web_page_preview": true,
	}
	resp, err := t.http.R().SetContext(ctx).SetBody(body).Post("/sendMessage")
	if err != nil {
		t.logger.Warn("telegram send failed", "error", err)
		return fmt.Errorf("telegram send: %w", err)
	}
	if resp.IsError() {
		t.logger.Warn("telegram rejected alert", "status", resp.StatusCode())
		return fmt.Errorf("telegram send: status %d", resp.StatusCode())
	}
	return nil
}

// FormatMessage renders an alert as the plain-text message body.
func FormatMessage(p types.AlertPayload) string {
	var b strings.Builder

	switch p.Type {
	case types.AlertConfluence:
		fmt.Fprintf(&b, "CONFLUENCE: %d wallets bought %s on %s\n", len(p.Wallets), tokenLabel(p), p.Chain)
	default:
		fmt.Fprintf(&b, "%s %s %s on %s\n", shortAddr(firstWallet(p)), p.Side, tokenLabel(p), p.Chain)
	}

	if p.PriceUSD > 0 {
		fmt.Fprintf(&b, "price $%.8g", p.PriceUSD)
		if p.ValueUSD > 0 {
			fmt.Fprintf(&b, ", value $%.2f", p.ValueUSD)
		}
		b.WriteString("\n")
	}
	if p.Type == types.AlertConfluence {
		for _, w := range p.Wallets {
			fmt.Fprintf(&b, "  %s\n", shortAddr(w))
		}
	}
	if p.Note != "" {
		b.WriteString(p.Note)
		b.WriteString("\n")
	}
	if p.ExplorerURL != "" {
		b.WriteString(p.ExplorerURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func tokenLabel(p types.AlertPayload) string {
	if p.TokenSymbol != "" {
		return p.TokenSymbol
	}
	return shortAddr(p.Token)
}

func firstWallet(p types.AlertPayload) string {
	if len(p.Wallets) > 0 {
		return p.Wallets[0]
	}
	return ""
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + ".." + addr[len(addr)-4:]
}
