package strategy

import (
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// MeanReversionEvaluator fades large 30-day moves: it buys deep
// drawdowns and sells extended rallies, expecting reversion.
type MeanReversionEvaluator struct {
	threshold float64
}

// NewMeanReversionEvaluator creates a mean-reversion evaluator with the
// default ±15% 30-day threshold.
func NewMeanReversionEvaluator() *MeanReversionEvaluator {
	return &MeanReversionEvaluator{threshold: 0.15}
}

func (m *MeanReversionEvaluator) Name() string {
	return NameMeanReversion
}

func (m *MeanReversionEvaluator) Evaluate(snapshot types.PriceSnapshot) map[string]types.Signal {
	signals := make(map[string]types.Signal, len(snapshot.Assets))
	for symbol, data := range snapshot.Assets {
		if types.IsStable(symbol) {
			signals[symbol] = types.SignalHold
			continue
		}
		switch {
		case data.Return30d < -m.threshold:
			signals[symbol] = types.SignalBuy
		case data.Return30d > m.threshold:
			signals[symbol] = types.SignalSell
		default:
			signals[symbol] = types.SignalHold
		}
	}
	return signals
}
