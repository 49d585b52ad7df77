package risk

import (
	"time"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// ledgerWindow is how long trade records stay relevant for the rolling
// success-rate and metrics checks.
const ledgerWindow = 24 * time.Hour

// Ledger is the in-memory rolling trade history. Entries older than 24h
// are evicted lazily on read; the caller never sees them again.
type Ledger struct {
	records []types.TradeRecord
}

// NewLedger creates an empty trade ledger.
func NewLedger() *Ledger {
	return &Ledger{records: make([]types.TradeRecord, 0, 64)}
}

// Append adds a trade record. Records are appended in execution order,
// so the slice stays sorted by ExecutedAt.
func (l *Ledger) Append(rec types.TradeRecord) {
	l.records = append(l.records, rec)
}

// Records returns all records inside the 24h window, evicting older
// entries as a side effect.
func (l *Ledger) Records(now time.Time) []types.TradeRecord {
	l.evict(now)
	out := make([]types.TradeRecord, len(l.records))
	copy(out, l.records)
	return out
}

// ExecutedCount returns the number of trades that actually reached the
// venue (filled or failed) in the last 24h.
func (l *Ledger) ExecutedCount(now time.Time) int {
	l.evict(now)
	n := 0
	for _, rec := range l.records {
		if rec.Outcome.Executed() {
			n++
		}
	}
	return n
}

// SuccessRate returns filled / executed over the 24h window. With no
// executed trades it returns 1.0 so an idle engine never looks broken.
func (l *Ledger) SuccessRate(now time.Time) float64 {
	l.evict(now)
	executed, filled := 0, 0
	for _, rec := range l.records {
		if !rec.Outcome.Executed() {
			continue
		}
		executed++
		if rec.Outcome == types.OutcomeFilled {
			filled++
		}
	}
	if executed == 0 {
		return 1.0
	}
	return float64(filled) / float64(executed)
}

// Metrics summarizes the rolling window for reporting and the hourly
// monitor trigger.
func (l *Ledger) Metrics(now time.Time) Metrics {
	l.evict(now)

	var m Metrics
	var volume float64
	for _, rec := range l.records {
		if !rec.Outcome.Executed() {
			continue
		}
		m.TotalTrades24h++
		volume += rec.USDAmount
		if rec.Outcome == types.OutcomeFilled {
			m.FilledTrades24h++
		} else {
			m.FailedTrades24h++
		}
	}
	m.TotalVolume24h = volume
	if m.TotalTrades24h > 0 {
		m.SuccessRate24h = float64(m.FilledTrades24h) / float64(m.TotalTrades24h)
		m.AvgTradeSize24h = volume / float64(m.TotalTrades24h)
	} else {
		m.SuccessRate24h = 1.0
	}
	return m
}

func (l *Ledger) evict(now time.Time) {
	cutoff := now.Add(-ledgerWindow)
	idx := 0
	for idx < len(l.records) && l.records[idx].ExecutedAt.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		l.records = append(l.records[:0], l.records[idx:]...)
	}
}
