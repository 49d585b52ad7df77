package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpotPairMapsWrappedTokens(t *testing.T) {
	assert.Equal(t, "ETHUSDT", spotPair("WETH"))
	assert.Equal(t, "BTCUSDT", spotPair("WBTC"))
	assert.Equal(t, "SOLUSDT", spotPair("SOL"))
	assert.Equal(t, "USDCUSDT", spotPair("USDC"))
}

func TestPortfolioSymbolRoundTrips(t *testing.T) {
	assert.Equal(t, "WETH", portfolioSymbol("ETH"))
	assert.Equal(t, "WBTC", portfolioSymbol("BTC"))
	assert.Equal(t, "SOL", portfolioSymbol("SOL"))
}
