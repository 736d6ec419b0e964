package types

import "testing"

func TestParseChains(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []Chain
	}{
		{"default set", "ethereum,base,arbitrum,solana", []Chain{Ethereum, Base, Arbitrum, Solana}},
		{"whitespace and case", " Ethereum , SOLANA ", []Chain{Ethereum, Solana}},
		{"empty entries dropped", "ethereum,,base,", []Chain{Ethereum, Base}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseChains(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("ParseChains(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseChains(%q)[%d] = %v, want %v", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestIsExcluded(t *testing.T) {
	t.Parallel()

	// EVM addresses match case-insensitively; Solana mints are case-sensitive.
	if !IsExcluded(Ethereum, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2") {
		t.Error("WETH (checksummed) should be excluded on ethereum")
	}
	if !IsExcluded(Solana, "So11111111111111111111111111111111111111112") {
		t.Error("wSOL should be excluded on solana")
	}
	if IsExcluded(Ethereum, "0x1234567890abcdef1234567890abcdef12345678") {
		t.Error("random token should not be excluded")
	}
	if IsExcluded(Chain("bsc"), "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2") {
		t.Error("unknown chain has no exclusions")
	}
}

func TestSideValid(t *testing.T) {
	t.Parallel()

	if !Buy.Valid() || !Sell.Valid() {
		t.Error("buy and sell must be valid sides")
	}
	if Side("short").Valid() {
		t.Error("unknown side must be invalid")
	}
}

func TestExplorerTxURL(t *testing.T) {
	t.Parallel()

	if got := Base.ExplorerTxURL("0xabc"); got != "https://basescan.org/tx/0xabc" {
		t.Errorf("base explorer = %q", got)
	}
	if got := Solana.ExplorerTxURL("sig"); got != "https://solscan.io/tx/sig" {
		t.Errorf("solana explorer = %q", got)
	}
}
