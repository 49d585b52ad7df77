package risk

import (
	"time"
)

// Mode is the trading permission state owned by the risk manager.
type Mode int

const (
	ModeNormal Mode = iota
	ModeHalted
)

func (m Mode) String() string {
	if m == ModeHalted {
		return "HALTED"
	}
	return "NORMAL"
}

// State is the single mutable piece of shared state in the engine.
// Only the Manager writes it; reads go through Manager.Status.
type State struct {
	Mode                Mode
	DailyPnLPct         float64
	TradesInLastHour    []time.Time
	ConsecutiveFailures int
	HaltedAt            time.Time
	HaltReason          string

	// Recovering is a transient modifier on Normal: after a cooldown
	// recovery, position limits are halved for one cycle.
	Recovering bool

	dayStart      time.Time
	dayStartValue float64
	pnlAtHalt     float64
}

// Limits are the risk parameters, fixed at startup.
type Limits struct {
	MaxPositionSize    float64
	MinPositionSize    float64
	StopLossPercentage float64
	MaxDailyLoss       float64 // soft brake: blocks Buys
	HaltDailyLoss      float64 // hard halt threshold
	MinSuccessRate     float64
	MinSampleSize      int
	MaxTradesPerHour   int
	MinTradeInterval   time.Duration
	HaltCooldown       time.Duration
}

// Status is a read-only view of the risk state for reporting.
type Status struct {
	Mode             Mode
	Recovering       bool
	DailyPnLPct      float64
	TradesInLastHour int
	HaltedAt         time.Time
	HaltReason       string
}

// Metrics summarizes the rolling 24h trade window.
type Metrics struct {
	TotalTrades24h   int
	FilledTrades24h  int
	FailedTrades24h  int
	SuccessRate24h   float64
	TotalVolume24h   float64
	AvgTradeSize24h  float64
	DailyPnLPct      float64
}
