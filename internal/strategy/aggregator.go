package strategy

import (
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// Aggregator combines per-strategy signals into one decision per asset
// via weighted voting.
type Aggregator struct {
	weights map[string]float64
}

// NewAggregator creates an aggregator using the configured per-strategy
// vote weights.
func NewAggregator(weights map[string]float64) *Aggregator {
	return &Aggregator{weights: weights}
}

// Combine reduces the per-strategy signal maps to one CombinedDecision
// per asset. The signal with the largest summed weight wins; any tie
// resolves to Hold so an ambiguous vote never trades. Confidence is the
// winning mass over the total weight of strategies that voted on the
// asset. The reduction is order-independent: permuting the input map
// cannot change the result.
func (a *Aggregator) Combine(perStrategy map[string]map[string]types.Signal) map[string]types.CombinedDecision {
	// Collect the asset universe across all strategies.
	assets := make(map[string]struct{})
	for _, signals := range perStrategy {
		for symbol := range signals {
			assets[symbol] = struct{}{}
		}
	}

	decisions := make(map[string]types.CombinedDecision, len(assets))
	for symbol := range assets {
		var buyMass, sellMass, holdMass, total float64

		for name, signals := range perStrategy {
			weight := a.weights[name]
			if weight == 0 {
				continue
			}
			// A strategy that did not vote on this asset counts as Hold.
			switch signals[symbol] {
			case types.SignalBuy:
				buyMass += weight
			case types.SignalSell:
				sellMass += weight
			default:
				holdMass += weight
			}
			total += weight
		}

		decision := types.CombinedDecision{Signal: types.SignalHold}
		switch {
		case buyMass > sellMass && buyMass > holdMass:
			decision.Signal = types.SignalBuy
			decision.Confidence = buyMass
		case sellMass > buyMass && sellMass > holdMass:
			decision.Signal = types.SignalSell
			decision.Confidence = sellMass
		default:
			decision.Confidence = holdMass
		}

		if total > 0 {
			decision.Confidence /= total
		} else {
			decision.Confidence = 0
		}
		decisions[symbol] = decision
	}

	return decisions
}
