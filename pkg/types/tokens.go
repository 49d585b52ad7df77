package types

import "fmt"

// TokenInfo describes a token the venue and price feed both understand.
type TokenInfo struct {
	Symbol      string
	Address     string
	Decimals    int
	CoingeckoID string
	Chain       string
	Stable      bool
}

// DefaultTokens is the built-in token registry. Stable tokens are held
// as the quote/safe-haven asset and never receive directional signals.
var DefaultTokens = map[string]TokenInfo{
	"USDC": {
		Symbol:      "USDC",
		Address:     "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Decimals:    6,
		CoingeckoID: "usd-coin",
		Chain:       "evm",
		Stable:      true,
	},
	"WETH": {
		Symbol:      "WETH",
		Address:     "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Decimals:    18,
		CoingeckoID: "weth",
		Chain:       "evm",
	},
	"WBTC": {
		Symbol:      "WBTC",
		Address:     "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599",
		Decimals:    8,
		CoingeckoID: "wrapped-bitcoin",
		Chain:       "evm",
	},
	"SOL": {
		Symbol:      "SOL",
		Address:     "So11111111111111111111111111111111111111112",
		Decimals:    9,
		CoingeckoID: "solana",
		Chain:       "svm",
	},
}

// LookupToken returns the registry entry for a symbol.
func LookupToken(symbol string) (TokenInfo, error) {
	info, ok := DefaultTokens[symbol]
	if !ok {
		return TokenInfo{}, fmt.Errorf("unknown token symbol: %s", symbol)
	}
	return info, nil
}

// TokenDecimals returns the precision for a symbol, defaulting to 8
// when the symbol is not in the registry.
func TokenDecimals(symbol string) int {
	if info, ok := DefaultTokens[symbol]; ok {
		return info.Decimals
	}
	return 8
}

// IsStable reports whether the symbol is a registered stablecoin.
func IsStable(symbol string) bool {
	info, ok := DefaultTokens[symbol]
	return ok && info.Stable
}
