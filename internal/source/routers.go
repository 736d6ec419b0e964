package source

// Known DEX router / program addresses per chain, used to recognize swap
// transactions. The sets are not exhaustive; the pool heuristic in the EVM
// adapter covers venues missing from here.
var dexPrograms = map[string]string{
	// Ethereum
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "uniswap_v2",
	"0xe592427a0aece92de3edee1f18e0157c05861564": "uniswap_v3",
	"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "uniswap_v3",
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": "sushiswap",
	"0x1111111254fb6c44bac0bed2854e76f90643097d": "1inch",
	"0xdef1c0ded9bec7f1a1670819833240f027b25eff": "0x",
	"0xba12222222228d8ba445958a75a0704d566bf2c8": "balancer",
	"0x99a58482bd75cbab83b27ec03ca68ff489b5788f": "curve",
	// Base
	"0x2626664c2603336e57b271c5c0b26f421741e481": "uniswap_v3",
	"0x327df1e6de05895d2ab08513aadd9313fe505d86": "baseswap",
	"0xcf77a3ba9a5ca399b7c97c74d54e5b1beb874e43": "aerodrome",
	// Arbitrum
	"0x1b02da8cb0d097eb8d57a175b88c7d8b47997506": "sushiswap",
	"0xc873fecbd354f5a56e00e710b90ef4201db2448d": "camelot",
	// Solana
	"675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8": "raydium",
	"whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc":  "orca",
	"JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4":  "jupiter",
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  "pumpfun",
}

// dexName returns the venue name for a known router/program address, or ""
// when the address is not recognized.
func dexName(address string) string {
	if name, ok := dexPrograms[address]; ok {
		return name
	}
	return ""
}
