package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"targets": {"USDC": 0.30, "WETH": 0.30, "WBTC": 0.40}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"momentum", "mean_reversion", "volatility"}, cfg.Strategies.Active)
	assert.InDelta(t, 1.0/3.0, cfg.Strategies.Weights["momentum"], 1e-9)
	assert.Equal(t, 0.02, cfg.Strategies.VolThresholdLow)
	assert.Equal(t, 0.08, cfg.Strategies.VolThresholdHigh)
	assert.Equal(t, 0.30, cfg.Risk.MaxPositionSize)
	assert.Equal(t, 0.02, cfg.Risk.RebalanceThreshold)
	assert.Equal(t, 60*time.Second, cfg.Risk.MinTradeInterval)
	assert.Equal(t, 4*time.Hour, cfg.Risk.HaltCooldown)
	assert.Equal(t, "09:00", cfg.Schedule.RebalanceTime)
	assert.Equal(t, "Monday", cfg.Schedule.ReviewWeekday)
}

func TestLoad_RejectsTargetsNotSummingToOne(t *testing.T) {
	path := writeConfig(t, `{
		"targets": {"USDC": 0.50, "WETH": 0.30}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum")
}

func TestLoad_RejectsUnweightedStrategy(t *testing.T) {
	path := writeConfig(t, `{
		"targets": {"USDC": 0.50, "WETH": 0.50},
		"strategies": {
			"active": ["momentum", "volatility"],
			"weights": {"momentum": 1.0}
		}
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volatility")
}

func TestLoad_RejectsHaltBelowDailyLoss(t *testing.T) {
	path := writeConfig(t, `{
		"targets": {"USDC": 0.50, "WETH": 0.50},
		"risk": {"max_daily_loss": 0.08, "halt_daily_loss": 0.05}
	}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestSaveTargets_PersistsAndReloads(t *testing.T) {
	path := writeConfig(t, `{
		"targets": {"USDC": 0.30, "WETH": 0.30, "WBTC": 0.40}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	newTargets := map[string]float64{"USDC": 0.20, "WETH": 0.40, "WBTC": 0.40}
	require.NoError(t, cfg.SaveTargets(newTargets))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk PortfolioConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.InDelta(t, 0.40, onDisk.Targets["WETH"], 1e-9)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.20, reloaded.Targets["USDC"], 1e-9)
}

func TestSaveTargets_RejectsBadSum(t *testing.T) {
	cfg := &PortfolioConfig{Targets: map[string]float64{"USDC": 1.0}}
	err := cfg.SaveTargets(map[string]float64{"USDC": 0.5})
	assert.Error(t, err)
}

func TestLoadEnv_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("EXCHANGE_NAME", "")
	t.Setenv("PROMETHEUS_PORT", "")
	t.Setenv("HEALTH_PORT", "")

	env := LoadEnv()
	assert.True(t, env.Sandbox())
	assert.Equal(t, "recall", env.Exchange.Name)
	assert.Equal(t, 8080, env.Monitoring.PrometheusPort)
	assert.Equal(t, 8081, env.Monitoring.HealthPort)
}
