package venue

import (
	"context"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// Executor submits risk-approved trades to a venue. Execute blocks
// until the venue answers; the returned record carries the final
// outcome. A venue-side rejection yields a rejected record with a nil
// error; transport and execution failures yield a failed record with a
// non-nil error.
type Executor interface {
	Execute(ctx context.Context, req types.TradeRequest, price float64) (types.TradeRecord, error)
}

// AccountReader exposes the account state the engine needs to build a
// portfolio snapshot.
type AccountReader interface {
	Balances(ctx context.Context) (map[string]float64, error)
}

// Venue is the full surface a trading venue offers the engine.
type Venue interface {
	Executor
	AccountReader

	// Ping verifies the venue is reachable before the engine starts.
	Ping(ctx context.Context) error
}
