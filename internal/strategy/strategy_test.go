package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

func snapshotWith(data map[string]types.AssetData) types.PriceSnapshot {
	return types.PriceSnapshot{Assets: data, Timestamp: time.Now()}
}

// TestMomentum_Thresholds verifies the ±5% 7-day boundaries.
func TestMomentum_Thresholds(t *testing.T) {
	m := NewMomentumEvaluator()

	snapshot := snapshotWith(map[string]types.AssetData{
		"WETH": {Price: 3000, Return7d: 0.051},
		"WBTC": {Price: 60000, Return7d: -0.051},
		"SOL":  {Price: 150, Return7d: 0.05}, // exactly at threshold: hold
	})

	signals := m.Evaluate(snapshot)
	assert.Equal(t, types.SignalBuy, signals["WETH"])
	assert.Equal(t, types.SignalSell, signals["WBTC"])
	assert.Equal(t, types.SignalHold, signals["SOL"])
}

// TestMomentum_StablecoinAlwaysHolds verifies stablecoins never get a
// directional signal regardless of the snapshot numbers.
func TestMomentum_StablecoinAlwaysHolds(t *testing.T) {
	m := NewMomentumEvaluator()

	snapshot := snapshotWith(map[string]types.AssetData{
		"USDC": {Price: 1, Return7d: 0.20},
	})

	assert.Equal(t, types.SignalHold, m.Evaluate(snapshot)["USDC"])
}

// TestMeanReversion_FadesLargeMoves verifies the ±15% 30-day logic.
func TestMeanReversion_FadesLargeMoves(t *testing.T) {
	m := NewMeanReversionEvaluator()

	snapshot := snapshotWith(map[string]types.AssetData{
		"WETH": {Price: 3000, Return30d: -0.20}, // crashed: buy the dip
		"WBTC": {Price: 60000, Return30d: 0.20}, // rallied: take profit
		"SOL":  {Price: 150, Return30d: 0.10},
	})

	signals := m.Evaluate(snapshot)
	assert.Equal(t, types.SignalBuy, signals["WETH"])
	assert.Equal(t, types.SignalSell, signals["WBTC"])
	assert.Equal(t, types.SignalHold, signals["SOL"])
}

// TestVolatility_Regimes verifies low/high volatility thresholds.
func TestVolatility_Regimes(t *testing.T) {
	v := NewVolatilityEvaluator(0.02, 0.08)

	snapshot := snapshotWith(map[string]types.AssetData{
		"WETH": {Price: 3000, Volatility: 0.01},  // calm: accumulate
		"WBTC": {Price: 60000, Volatility: 0.12}, // wild: reduce
		"SOL":  {Price: 150, Volatility: 0.05},
	})

	signals := v.Evaluate(snapshot)
	assert.Equal(t, types.SignalBuy, signals["WETH"])
	assert.Equal(t, types.SignalSell, signals["WBTC"])
	assert.Equal(t, types.SignalHold, signals["SOL"])
}

// TestVolatility_DefaultThresholds verifies zero config falls back to
// the 2%/8% defaults.
func TestVolatility_DefaultThresholds(t *testing.T) {
	v := NewVolatilityEvaluator(0, 0)
	assert.Equal(t, 0.02, v.thresholdLow)
	assert.Equal(t, 0.08, v.thresholdHigh)
}

// TestEvaluators_ArePure verifies repeated evaluation of the same
// snapshot yields identical signals.
func TestEvaluators_ArePure(t *testing.T) {
	snapshot := snapshotWith(map[string]types.AssetData{
		"WETH": {Price: 3000, Return7d: 0.08, Return30d: -0.20, Volatility: 0.01},
	})

	evaluators, err := BuildEvaluators([]string{NameMomentum, NameMeanReversion, NameVolatility}, 0.02, 0.08)
	require.NoError(t, err)

	for _, ev := range evaluators {
		first := ev.Evaluate(snapshot)
		second := ev.Evaluate(snapshot)
		assert.Equal(t, first, second, "evaluator %s is not pure", ev.Name())
	}
}

// TestBuildEvaluators_UnknownStrategy verifies config typos are caught.
func TestBuildEvaluators_UnknownStrategy(t *testing.T) {
	_, err := BuildEvaluators([]string{"arbitrage"}, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}
