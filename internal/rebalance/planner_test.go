package rebalance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

func snapshot(total float64, weights map[string]float64) types.PortfolioSnapshot {
	positions := make(map[string]types.Position, len(weights))
	for symbol, w := range weights {
		positions[symbol] = types.Position{USDValue: total * w}
	}
	return types.PortfolioSnapshot{Positions: positions, TotalValue: total}
}

func pricesFor(prices map[string]float64) types.PriceSnapshot {
	assets := make(map[string]types.AssetData, len(prices))
	for symbol, p := range prices {
		assets[symbol] = types.AssetData{Price: p}
	}
	return types.PriceSnapshot{Assets: assets}
}

func holdAll() map[string]types.CombinedDecision {
	return map[string]types.CombinedDecision{}
}

func TestPlanner_ExampleScenario(t *testing.T) {
	p := NewPlanner(0.02)

	portfolio := snapshot(1000, map[string]float64{"USDC": 0.40, "WETH": 0.40, "WBTC": 0.20})
	targets := map[string]float64{"USDC": 0.30, "WETH": 0.50, "WBTC": 0.20}
	prices := pricesFor(map[string]float64{"USDC": 1, "WETH": 2000, "WBTC": 40000})

	requests := p.Plan(portfolio, prices, targets, holdAll())
	require.Len(t, requests, 2)

	assert.Equal(t, "USDC", requests[0].Symbol)
	assert.Equal(t, types.SideSell, requests[0].Side)
	assert.InDelta(t, 100, requests[0].USDAmount, 0.01)

	assert.Equal(t, "WETH", requests[1].Symbol)
	assert.Equal(t, types.SideBuy, requests[1].Side)
	assert.InDelta(t, 100, requests[1].USDAmount, 0.01)
}

func TestPlanner_BalancedPortfolioPlansNothing(t *testing.T) {
	p := NewPlanner(0.02)

	portfolio := snapshot(1000, map[string]float64{"USDC": 0.31, "WETH": 0.49, "WBTC": 0.20})
	targets := map[string]float64{"USDC": 0.30, "WETH": 0.50, "WBTC": 0.20}
	prices := pricesFor(map[string]float64{"USDC": 1, "WETH": 2000, "WBTC": 40000})

	assert.Empty(t, p.Plan(portfolio, prices, targets, holdAll()))
}

func TestPlanner_ContraryDecisionVetoesDrift(t *testing.T) {
	p := NewPlanner(0.02)

	portfolio := snapshot(1000, map[string]float64{"USDC": 0.40, "WETH": 0.40, "WBTC": 0.20})
	targets := map[string]float64{"USDC": 0.30, "WETH": 0.50, "WBTC": 0.20}
	prices := pricesFor(map[string]float64{"USDC": 1, "WETH": 2000, "WBTC": 40000})

	// The aggregator says Sell WETH: the underweight buy is suppressed.
	decisions := map[string]types.CombinedDecision{
		"WETH": {Signal: types.SignalSell, Confidence: 0.6},
	}
	requests := p.Plan(portfolio, prices, targets, decisions)
	require.Len(t, requests, 1)
	assert.Equal(t, "USDC", requests[0].Symbol)

	// The aggregator says Buy USDC: the overweight sell is suppressed.
	decisions = map[string]types.CombinedDecision{
		"USDC": {Signal: types.SignalBuy, Confidence: 0.6},
	}
	requests = p.Plan(portfolio, prices, targets, decisions)
	require.Len(t, requests, 1)
	assert.Equal(t, "WETH", requests[0].Symbol)

	// An aligned decision does not veto.
	decisions = map[string]types.CombinedDecision{
		"USDC": {Signal: types.SignalSell, Confidence: 0.6},
		"WETH": {Signal: types.SignalBuy, Confidence: 0.6},
	}
	assert.Len(t, p.Plan(portfolio, prices, targets, decisions), 2)
}

func TestPlanner_SellsBeforeBuysDescendingDrift(t *testing.T) {
	p := NewPlanner(0.02)

	portfolio := snapshot(1000, map[string]float64{
		"USDC": 0.45, "WETH": 0.30, "WBTC": 0.15, "SOL": 0.10,
	})
	targets := map[string]float64{
		"USDC": 0.25, "WETH": 0.40, "WBTC": 0.20, "SOL": 0.15,
	}
	prices := pricesFor(map[string]float64{"USDC": 1, "WETH": 2000, "WBTC": 40000, "SOL": 100})

	requests := p.Plan(portfolio, prices, targets, holdAll())
	require.Len(t, requests, 4)

	// One sell (USDC -0.20), then buys by descending drift:
	// WETH +0.10, then SOL/WBTC both +0.05 broken lexically.
	assert.Equal(t, types.SideSell, requests[0].Side)
	assert.Equal(t, "USDC", requests[0].Symbol)
	assert.Equal(t, "WETH", requests[1].Symbol)
	assert.Equal(t, "SOL", requests[2].Symbol)
	assert.Equal(t, "WBTC", requests[3].Symbol)
}

func TestPlanner_SkipsAssetsWithoutPrices(t *testing.T) {
	p := NewPlanner(0.02)

	portfolio := snapshot(1000, map[string]float64{"USDC": 0.40, "WETH": 0.40, "WBTC": 0.20})
	targets := map[string]float64{"USDC": 0.30, "WETH": 0.50, "WBTC": 0.20}
	prices := pricesFor(map[string]float64{"USDC": 1})

	requests := p.Plan(portfolio, prices, targets, holdAll())
	require.Len(t, requests, 1)
	assert.Equal(t, "USDC", requests[0].Symbol)
}

func TestPlanner_AmountFlooredToTradablePrecision(t *testing.T) {
	p := NewPlanner(0.02)

	// WBTC has 8 decimals: the notional is floored to a whole number
	// of satoshi at the current price.
	portfolio := snapshot(1000, map[string]float64{"USDC": 0.50, "WBTC": 0.50})
	targets := map[string]float64{"USDC": 0.55, "WBTC": 0.45}
	prices := pricesFor(map[string]float64{"USDC": 1, "WBTC": 41234.56})

	requests := p.Plan(portfolio, prices, targets, holdAll())
	for _, req := range requests {
		assert.LessOrEqual(t, req.USDAmount, 50.0)
		assert.Greater(t, req.USDAmount, 49.9)
	}
}

func TestPlanner_StopLossSells(t *testing.T) {
	p := NewPlanner(0.02)

	portfolio := types.PortfolioSnapshot{
		TotalValue: 10000,
		Positions: map[string]types.Position{
			"USDC": {USDValue: 4000, Price: 1, AvgEntryPrice: 1},
			"WETH": {USDValue: 3000, Price: 1800, AvgEntryPrice: 2000}, // -10%
			"WBTC": {USDValue: 2000, Price: 39000, AvgEntryPrice: 40000}, // -2.5%
			"SOL":  {USDValue: 1000, Price: 90},                          // no entry price
		},
	}

	requests := p.StopLossSells(portfolio, 0.05)
	require.Len(t, requests, 1)
	assert.Equal(t, "WETH", requests[0].Symbol)
	assert.Equal(t, types.SideSell, requests[0].Side)
	assert.True(t, requests[0].LossProtection)
	assert.InDelta(t, 3000, requests[0].USDAmount, 1e-9)
}
