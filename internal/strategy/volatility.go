package strategy

import (
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// VolatilityEvaluator positions by volatility regime: low volatility is
// read as a pre-breakout accumulation zone, high volatility as a cue to
// reduce exposure.
type VolatilityEvaluator struct {
	thresholdLow  float64
	thresholdHigh float64
}

// NewVolatilityEvaluator creates a volatility-adaptive evaluator. Zero
// thresholds fall back to the 2%/8% defaults.
func NewVolatilityEvaluator(low, high float64) *VolatilityEvaluator {
	if low == 0 {
		low = 0.02
	}
	if high == 0 {
		high = 0.08
	}
	return &VolatilityEvaluator{thresholdLow: low, thresholdHigh: high}
}

func (v *VolatilityEvaluator) Name() string {
	return NameVolatility
}

func (v *VolatilityEvaluator) Evaluate(snapshot types.PriceSnapshot) map[string]types.Signal {
	signals := make(map[string]types.Signal, len(snapshot.Assets))
	for symbol, data := range snapshot.Assets {
		if types.IsStable(symbol) {
			signals[symbol] = types.SignalHold
			continue
		}
		switch {
		case data.Volatility < v.thresholdLow:
			signals[symbol] = types.SignalBuy
		case data.Volatility > v.thresholdHigh:
			signals[symbol] = types.SignalSell
		default:
			signals[symbol] = types.SignalHold
		}
	}
	return signals
}
