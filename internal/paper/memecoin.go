package paper

import (
	"strings"

	"alpha-scout/internal/config"
)

// memeKeywords are symbol fragments common to meme tokens. A match is a
// scoring bonus, not a requirement.
var memeKeywords = []string{
	"inu", "doge", "shib", "pepe", "floki", "elon", "moon", "safe",
	"baby", "rocket", "wojak", "chad", "bonk", "cat", "dog", "frog",
	"meme", "giga", "based", "turbo", "mog", "wif", "ponke",
	"popcat", "myro", "brett", "toshi", "degen", "wen", "pnut",
}

// TokenProfile is the market snapshot the entry filter judges.
type TokenProfile struct {
	Symbol       string
	PriceUSD     float64
	Volume24hUSD float64
	LiquidityUSD float64
}

// Eligible reports whether a token passes the entry filter: price inside
// the configured band, enough 24h volume to not be dead, enough liquidity
// to not be a rug. The keyword list only affects MemeScore.
func Eligible(cfg config.PaperConfig, p TokenProfile) bool {
	if p.PriceUSD < cfg.MemePriceMin || p.PriceUSD > cfg.MemePriceMax {
		return false
	}
	if p.Volume24hUSD < cfg.MemeMinVolumeUSD {
		return false
	}
	if p.LiquidityUSD < cfg.MemeMinLiquidity {
		return false
	}
	return true
}

// MemeScore grades how meme-like a token looks, 0 to 100. Cheaper price,
// higher volume, and keyword hits all add points.
func MemeScore(p TokenProfile) int {
	score := 0

	switch {
	case p.PriceUSD <= 0:
	case p.PriceUSD < 0.0001:
		score += 40
	case p.PriceUSD < 0.001:
		score += 30
	case p.PriceUSD < 0.01:
		score += 20
	}

	switch {
	case p.Volume24hUSD >= 1_000_000:
		score += 30
	case p.Volume24hUSD >= 100_000:
		score += 20
	case p.Volume24hUSD >= 10_000:
		score += 10
	}

	symbol := strings.ToLower(p.Symbol)
	matches := 0
	for _, kw := range memeKeywords {
		if strings.Contains(symbol, kw) {
			matches++
		}
	}
	switch {
	case matches >= 2:
		score += 30
	case matches == 1:
		score += 20
	}

	if score > 100 {
		score = 100
	}
	return score
}
