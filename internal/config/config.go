package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// WeightTolerance is how far target weights may drift from summing to
// exactly 1.0 before the engine refuses to start.
const WeightTolerance = 1e-6

// PortfolioConfig is the file-backed configuration loaded once at
// startup. It is immutable during a run except for the target
// allocation, which the weekly strategy review may rewrite.
type PortfolioConfig struct {
	// Target allocation per asset, must sum to 1.0.
	Targets map[string]float64 `json:"targets"`

	// Strategy selection and voting weights.
	Strategies StrategyConfig `json:"strategies"`

	// Risk limits enforced by the risk manager.
	Risk RiskConfig `json:"risk"`

	// Scheduling for the continuous mode.
	Schedule ScheduleConfig `json:"schedule"`

	path string
}

// StrategyConfig selects the active evaluators and their vote weights.
type StrategyConfig struct {
	Active  []string           `json:"active"`  // momentum, mean_reversion, volatility
	Weights map[string]float64 `json:"weights"` // per-strategy weight, sums to 1.0

	// Thresholds for the volatility-adaptive evaluator.
	VolThresholdLow  float64 `json:"vol_threshold_low"`
	VolThresholdHigh float64 `json:"vol_threshold_high"`
}

// RiskConfig holds the risk manager limits.
type RiskConfig struct {
	MaxPositionSize    float64       `json:"max_position_size"`
	MinPositionSize    float64       `json:"min_position_size"`
	StopLossPercentage float64       `json:"stop_loss_percentage"`
	MaxDailyLoss       float64       `json:"max_daily_loss"`       // soft Buy brake
	HaltDailyLoss      float64       `json:"halt_daily_loss"`      // hard halt threshold
	MinSuccessRate     float64       `json:"min_success_rate"`     // 24h halt trigger
	MinSampleSize      int           `json:"min_sample_size"`      // trades before success-rate rule fires
	MaxTradesPerHour   int           `json:"max_trades_per_hour"`
	MinTradeInterval   time.Duration `json:"-"`
	MinTradeIntervalS  int           `json:"min_trade_interval_seconds"`
	RebalanceThreshold float64       `json:"rebalance_threshold"`
	HaltCooldown       time.Duration `json:"-"`
	HaltCooldownS      int           `json:"halt_cooldown_seconds"`
}

// ScheduleConfig drives the continuous scheduler.
type ScheduleConfig struct {
	RebalanceTime   string `json:"rebalance_time"` // HH:MM, daily
	MonitorMinutes  int    `json:"monitor_minutes"`
	ReviewWeekday   string `json:"review_weekday"` // weekly AI strategy review
	ReviewTime      string `json:"review_time"`
}

// Load reads, defaults and validates a portfolio configuration file.
// Bare filenames are resolved under configs/ and .json is appended when
// missing, matching how the config files are laid out in this repo.
func Load(configFile string) (*PortfolioConfig, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg PortfolioConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.path = configFile

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults fills in zero-valued fields with the documented defaults.
func (c *PortfolioConfig) setDefaults() {
	if len(c.Strategies.Active) == 0 {
		c.Strategies.Active = []string{"momentum", "mean_reversion", "volatility"}
	}
	if len(c.Strategies.Weights) == 0 {
		w := 1.0 / float64(len(c.Strategies.Active))
		c.Strategies.Weights = make(map[string]float64, len(c.Strategies.Active))
		for _, name := range c.Strategies.Active {
			c.Strategies.Weights[name] = w
		}
	}
	if c.Strategies.VolThresholdLow == 0 {
		c.Strategies.VolThresholdLow = 0.02
	}
	if c.Strategies.VolThresholdHigh == 0 {
		c.Strategies.VolThresholdHigh = 0.08
	}

	if c.Risk.MaxPositionSize == 0 {
		c.Risk.MaxPositionSize = 0.30
	}
	if c.Risk.MinPositionSize == 0 {
		c.Risk.MinPositionSize = 0.05
	}
	if c.Risk.StopLossPercentage == 0 {
		c.Risk.StopLossPercentage = 0.05
	}
	if c.Risk.MaxDailyLoss == 0 {
		c.Risk.MaxDailyLoss = 0.05
	}
	if c.Risk.HaltDailyLoss == 0 {
		c.Risk.HaltDailyLoss = 0.07
	}
	if c.Risk.MinSuccessRate == 0 {
		c.Risk.MinSuccessRate = 0.30
	}
	if c.Risk.MinSampleSize == 0 {
		c.Risk.MinSampleSize = 5
	}
	if c.Risk.MaxTradesPerHour == 0 {
		c.Risk.MaxTradesPerHour = 10
	}
	if c.Risk.MinTradeIntervalS == 0 {
		c.Risk.MinTradeIntervalS = 60
	}
	if c.Risk.RebalanceThreshold == 0 {
		c.Risk.RebalanceThreshold = 0.02
	}
	if c.Risk.HaltCooldownS == 0 {
		c.Risk.HaltCooldownS = 4 * 3600
	}
	c.Risk.MinTradeInterval = time.Duration(c.Risk.MinTradeIntervalS) * time.Second
	c.Risk.HaltCooldown = time.Duration(c.Risk.HaltCooldownS) * time.Second

	if c.Schedule.RebalanceTime == "" {
		c.Schedule.RebalanceTime = "09:00"
	}
	if c.Schedule.MonitorMinutes == 0 {
		c.Schedule.MonitorMinutes = 60
	}
	if c.Schedule.ReviewWeekday == "" {
		c.Schedule.ReviewWeekday = "Monday"
	}
	if c.Schedule.ReviewTime == "" {
		c.Schedule.ReviewTime = "08:00"
	}
}

// Validate rejects configurations the engine must not start with.
func (c *PortfolioConfig) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("target allocation is required")
	}

	sum := 0.0
	for symbol, weight := range c.Targets {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("target weight for %s out of range: %f", symbol, weight)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("target weights sum to %f, expected 1.0", sum)
	}

	stratSum := 0.0
	for _, name := range c.Strategies.Active {
		w, ok := c.Strategies.Weights[name]
		if !ok {
			return fmt.Errorf("no weight configured for strategy %s", name)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("strategy weight for %s out of range: %f", name, w)
		}
		stratSum += w
	}
	if math.Abs(stratSum-1.0) > WeightTolerance {
		return fmt.Errorf("strategy weights sum to %f, expected 1.0", stratSum)
	}

	if c.Risk.RebalanceThreshold < 0.001 || c.Risk.RebalanceThreshold > 0.1 {
		return fmt.Errorf("rebalance threshold must be between 0.1%% and 10%%")
	}
	if c.Risk.MaxPositionSize <= 0 || c.Risk.MaxPositionSize > 1 {
		return fmt.Errorf("max position size must be in (0, 1]")
	}
	if c.Risk.MinPositionSize < 0 || c.Risk.MinPositionSize >= c.Risk.MaxPositionSize {
		return fmt.Errorf("min position size must be in [0, max_position_size)")
	}
	if c.Risk.HaltDailyLoss < c.Risk.MaxDailyLoss {
		return fmt.Errorf("halt daily loss %.2f must not be below max daily loss %.2f",
			c.Risk.HaltDailyLoss, c.Risk.MaxDailyLoss)
	}

	return nil
}

// SaveTargets persists a new target allocation back to the config file.
// Used by the weekly strategy review when the advisor suggests a
// significant change.
func (c *PortfolioConfig) SaveTargets(targets map[string]float64) error {
	sum := 0.0
	for _, w := range targets {
		sum += w
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("new target weights sum to %f, expected 1.0", sum)
	}

	c.Targets = targets

	if c.path == "" {
		return nil // in-memory config, nothing to persist
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
