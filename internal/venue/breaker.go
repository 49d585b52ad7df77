package venue

import (
	"context"
	"errors"
	"time"

	enginerrors "github.com/recall-agent/portfolio-rebalancer/internal/errors"
	"github.com/recall-agent/portfolio-rebalancer/internal/safety"
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// GuardedExecutor wraps an Executor with a circuit breaker. After a run
// of consecutive venue failures it fails trades locally for a cooldown
// instead of hammering a venue that is clearly down.
type GuardedExecutor struct {
	inner   Executor
	breaker *safety.Breaker
}

// NewGuardedExecutor wraps inner with the given breaker.
func NewGuardedExecutor(inner Executor, breaker *safety.Breaker) *GuardedExecutor {
	return &GuardedExecutor{inner: inner, breaker: breaker}
}

// BreakerState exposes the wrapped breaker state for health reporting.
func (g *GuardedExecutor) BreakerState() safety.BreakerState {
	return g.breaker.State()
}

func (g *GuardedExecutor) Execute(ctx context.Context, req types.TradeRequest, price float64) (types.TradeRecord, error) {
	var record types.TradeRecord
	var innerErr error

	err := g.breaker.Do(func() error {
		record, innerErr = g.inner.Execute(ctx, req, price)
		return innerErr
	})
	if err == nil {
		return record, nil
	}

	var open *safety.ErrBreakerOpen
	if errors.As(err, &open) {
		record = types.TradeRecord{
			Symbol:     req.Symbol,
			Side:       req.Side,
			USDAmount:  req.USDAmount,
			Price:      price,
			ExecutedAt: time.Now(),
			Outcome:    types.OutcomeFailed,
			Reason:     err.Error(),
		}
		return record, enginerrors.NewExecutionFailed("venue", "circuit breaker open", err)
	}
	return record, err
}
