package marketdata

import (
	"context"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// Provider supplies a fresh price snapshot at the start of each cycle.
//
// A provider may return a partial snapshot: assets it could not price
// are simply absent from the result and the caller decides whether it
// can proceed without them. An error is returned only when nothing
// usable came back.
type Provider interface {
	// Snapshot fetches price, trailing returns and a volatility
	// estimate for the requested symbols.
	Snapshot(ctx context.Context, symbols []string) (types.PriceSnapshot, error)

	// Prices is the lightweight spot-price path used between full
	// cycles, e.g. for portfolio valuation in the hourly monitor.
	Prices(ctx context.Context, symbols []string) (map[string]float64, error)
}
