package strategy

import (
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// MomentumEvaluator buys recent strength and sells recent weakness,
// using the 7-day return as the momentum measure.
type MomentumEvaluator struct {
	threshold float64
}

// NewMomentumEvaluator creates a momentum evaluator with the default
// ±5% 7-day threshold.
func NewMomentumEvaluator() *MomentumEvaluator {
	return &MomentumEvaluator{threshold: 0.05}
}

func (m *MomentumEvaluator) Name() string {
	return NameMomentum
}

// Evaluate returns Buy above +threshold, Sell below -threshold, Hold in
// between. Stablecoins always hold.
func (m *MomentumEvaluator) Evaluate(snapshot types.PriceSnapshot) map[string]types.Signal {
	signals := make(map[string]types.Signal, len(snapshot.Assets))
	for symbol, data := range snapshot.Assets {
		if types.IsStable(symbol) {
			signals[symbol] = types.SignalHold
			continue
		}
		switch {
		case data.Return7d > m.threshold:
			signals[symbol] = types.SignalBuy
		case data.Return7d < -m.threshold:
			signals[symbol] = types.SignalSell
		default:
			signals[symbol] = types.SignalHold
		}
	}
	return signals
}
