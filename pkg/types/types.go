package types

import "time"

// Asset is one tradable token in the portfolio universe.
type Asset struct {
	Symbol   string
	Decimals int
}

// AssetData holds the market observations for one asset within a snapshot.
// Returns are fractional: 0.05 means +5%.
type AssetData struct {
	Price      float64
	Return7d   float64
	Return30d  float64
	Volatility float64
}

// PriceSnapshot is the market view for one evaluation cycle.
// It is built once at the start of a cycle and never mutated afterwards.
type PriceSnapshot struct {
	Assets    map[string]AssetData
	Timestamp time.Time
}

// Signal is a strategy's directional recommendation for one asset.
type Signal int

const (
	SignalHold Signal = iota
	SignalBuy
	SignalSell
)

func (s Signal) String() string {
	switch s {
	case SignalHold:
		return "HOLD"
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// CombinedDecision is the aggregated signal for one asset with the
// fraction of total strategy weight backing it.
type CombinedDecision struct {
	Signal     Signal
	Confidence float64
}

// Position is one asset's holding inside a portfolio snapshot.
// AvgEntryPrice may be zero when the venue does not report it.
type Position struct {
	Balance       float64
	USDValue      float64
	Price         float64
	AvgEntryPrice float64
}

// PortfolioSnapshot captures balances and valuations atomically at the
// start of a cycle. Weights are always derived from it, never from live
// balances mid-cycle.
type PortfolioSnapshot struct {
	Positions  map[string]Position
	TotalValue float64
	Timestamp  time.Time
}

// Weight returns the asset's current share of total portfolio value.
func (p PortfolioSnapshot) Weight(symbol string) float64 {
	if p.TotalValue <= 0 {
		return 0
	}
	return p.Positions[symbol].USDValue / p.TotalValue
}

// Side is the direction of a trade.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "SELL"
	}
	return "BUY"
}

// TradeRequest is a candidate trade produced by the rebalance planner.
// LossProtection marks a sell emitted to cut an open loss; the risk
// manager verifies that claim against the stop-loss threshold.
type TradeRequest struct {
	Symbol         string
	Side           Side
	USDAmount      float64
	LossProtection bool
	RequestedAt    time.Time
}

// Outcome is the terminal state of a submitted or rejected trade.
type Outcome int

const (
	OutcomeFilled Outcome = iota
	OutcomeRejected
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFilled:
		return "FILLED"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Executed reports whether the trade actually reached the venue.
// Rejections never leave the process.
func (o Outcome) Executed() bool {
	return o == OutcomeFilled || o == OutcomeFailed
}

// TradeRecord is the audit entry appended to the rolling ledger for
// every planned trade, whatever its fate.
type TradeRecord struct {
	Symbol     string
	Side       Side
	USDAmount  float64
	Price      float64
	ExecutedAt time.Time
	Outcome    Outcome
	Reason     string
}
