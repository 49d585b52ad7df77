package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// TestAggregator_WeightedMajorityWins verifies the heaviest vote mass
// picks the signal and confidence reflects it.
func TestAggregator_WeightedMajorityWins(t *testing.T) {
	agg := NewAggregator(map[string]float64{
		NameMomentum:      0.5,
		NameMeanReversion: 0.3,
		NameVolatility:    0.2,
	})

	decisions := agg.Combine(map[string]map[string]types.Signal{
		NameMomentum:      {"WETH": types.SignalBuy},
		NameMeanReversion: {"WETH": types.SignalBuy},
		NameVolatility:    {"WETH": types.SignalSell},
	})

	assert.Equal(t, types.SignalBuy, decisions["WETH"].Signal)
	assert.InDelta(t, 0.8, decisions["WETH"].Confidence, 1e-9)
}

// TestAggregator_TieResolvesToHold verifies a Buy/Sell tie never trades.
func TestAggregator_TieResolvesToHold(t *testing.T) {
	agg := NewAggregator(map[string]float64{
		NameMomentum:      0.5,
		NameMeanReversion: 0.5,
	})

	decisions := agg.Combine(map[string]map[string]types.Signal{
		NameMomentum:      {"WBTC": types.SignalBuy},
		NameMeanReversion: {"WBTC": types.SignalSell},
	})

	assert.Equal(t, types.SignalHold, decisions["WBTC"].Signal)
}

// TestAggregator_TieWithHoldResolvesToHold verifies Hold wins when it
// shares the top mass with a directional signal.
func TestAggregator_TieWithHoldResolvesToHold(t *testing.T) {
	agg := NewAggregator(map[string]float64{
		NameMomentum:      0.5,
		NameMeanReversion: 0.5,
	})

	decisions := agg.Combine(map[string]map[string]types.Signal{
		NameMomentum:      {"WBTC": types.SignalBuy},
		NameMeanReversion: {"WBTC": types.SignalHold},
	})

	assert.Equal(t, types.SignalHold, decisions["WBTC"].Signal)
	assert.InDelta(t, 0.5, decisions["WBTC"].Confidence, 1e-9)
}

// TestAggregator_OrderIndependent verifies permuting strategy maps does
// not change the output. Go map iteration order is already randomized,
// so run the reduction repeatedly and demand identical results.
func TestAggregator_OrderIndependent(t *testing.T) {
	agg := NewAggregator(map[string]float64{
		NameMomentum:      0.4,
		NameMeanReversion: 0.35,
		NameVolatility:    0.25,
	})

	input := map[string]map[string]types.Signal{
		NameMomentum:      {"WETH": types.SignalBuy, "WBTC": types.SignalSell},
		NameMeanReversion: {"WETH": types.SignalSell, "WBTC": types.SignalSell},
		NameVolatility:    {"WETH": types.SignalBuy, "WBTC": types.SignalHold},
	}

	baseline := agg.Combine(input)
	for i := 0; i < 50; i++ {
		assert.Equal(t, baseline, agg.Combine(input))
	}
}

// TestAggregator_MissingVoteCountsAsHold verifies a strategy that did
// not cover an asset still contributes its weight to Hold.
func TestAggregator_MissingVoteCountsAsHold(t *testing.T) {
	agg := NewAggregator(map[string]float64{
		NameMomentum:      0.4,
		NameMeanReversion: 0.6,
	})

	decisions := agg.Combine(map[string]map[string]types.Signal{
		NameMomentum:      {"SOL": types.SignalBuy},
		NameMeanReversion: {}, // no vote on SOL
	})

	// Hold mass 0.6 beats Buy mass 0.4.
	assert.Equal(t, types.SignalHold, decisions["SOL"].Signal)
	assert.InDelta(t, 0.6, decisions["SOL"].Confidence, 1e-9)
}

// TestAggregator_ConfidenceIsFractionOfActiveWeight verifies confidence
// normalization against the total active weight.
func TestAggregator_ConfidenceIsFractionOfActiveWeight(t *testing.T) {
	agg := NewAggregator(map[string]float64{
		NameMomentum:   0.25,
		NameVolatility: 0.75,
	})

	decisions := agg.Combine(map[string]map[string]types.Signal{
		NameMomentum:   {"WETH": types.SignalSell},
		NameVolatility: {"WETH": types.SignalSell},
	})

	assert.Equal(t, types.SignalSell, decisions["WETH"].Signal)
	assert.InDelta(t, 1.0, decisions["WETH"].Confidence, 1e-9)
}
