package strategy

import (
	"fmt"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// Evaluator maps a price snapshot to a per-asset signal. Evaluators are
// pure: no side effects and no dependency on prior calls.
type Evaluator interface {
	// Evaluate returns a signal for every asset in the snapshot.
	Evaluate(snapshot types.PriceSnapshot) map[string]types.Signal

	// Name returns the strategy identifier used for config weights.
	Name() string
}

// Strategy identifiers accepted in configuration.
const (
	NameMomentum      = "momentum"
	NameMeanReversion = "mean_reversion"
	NameVolatility    = "volatility"
)

// BuildEvaluators resolves the configured strategy names into evaluator
// instances. Unknown names are a configuration error.
func BuildEvaluators(active []string, volLow, volHigh float64) ([]Evaluator, error) {
	evaluators := make([]Evaluator, 0, len(active))
	for _, name := range active {
		switch name {
		case NameMomentum:
			evaluators = append(evaluators, NewMomentumEvaluator())
		case NameMeanReversion:
			evaluators = append(evaluators, NewMeanReversionEvaluator())
		case NameVolatility:
			evaluators = append(evaluators, NewVolatilityEvaluator(volLow, volHigh))
		default:
			return nil, fmt.Errorf("unknown strategy: %s", name)
		}
	}
	return evaluators, nil
}
