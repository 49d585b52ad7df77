package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

func TestLedger_EvictsRecordsOlderThan24h(t *testing.T) {
	l := NewLedger()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	l.Append(types.TradeRecord{Symbol: "WETH", ExecutedAt: base, Outcome: types.OutcomeFilled})
	l.Append(types.TradeRecord{Symbol: "WBTC", ExecutedAt: base.Add(12 * time.Hour), Outcome: types.OutcomeFilled})
	l.Append(types.TradeRecord{Symbol: "SOL", ExecutedAt: base.Add(23 * time.Hour), Outcome: types.OutcomeFailed})

	records := l.Records(base.Add(25 * time.Hour))
	assert.Len(t, records, 2)
	assert.Equal(t, "WBTC", records[0].Symbol)
	assert.Equal(t, "SOL", records[1].Symbol)
}

func TestLedger_SuccessRateExcludesRejections(t *testing.T) {
	l := NewLedger()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	l.Append(types.TradeRecord{ExecutedAt: base, Outcome: types.OutcomeFilled})
	l.Append(types.TradeRecord{ExecutedAt: base.Add(time.Minute), Outcome: types.OutcomeRejected})
	l.Append(types.TradeRecord{ExecutedAt: base.Add(2 * time.Minute), Outcome: types.OutcomeFailed})

	now := base.Add(time.Hour)
	assert.Equal(t, 2, l.ExecutedCount(now))
	assert.InDelta(t, 0.5, l.SuccessRate(now), 1e-9)
}

func TestLedger_SuccessRateWithNoExecutedTrades(t *testing.T) {
	l := NewLedger()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.0, l.SuccessRate(now))

	l.Append(types.TradeRecord{ExecutedAt: now, Outcome: types.OutcomeRejected})
	assert.Equal(t, 1.0, l.SuccessRate(now.Add(time.Minute)))
}

func TestLedger_MetricsAggregation(t *testing.T) {
	l := NewLedger()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	l.Append(types.TradeRecord{USDAmount: 100, ExecutedAt: base, Outcome: types.OutcomeFilled})
	l.Append(types.TradeRecord{USDAmount: 300, ExecutedAt: base.Add(time.Minute), Outcome: types.OutcomeFilled})
	l.Append(types.TradeRecord{USDAmount: 200, ExecutedAt: base.Add(2 * time.Minute), Outcome: types.OutcomeFailed})
	l.Append(types.TradeRecord{USDAmount: 999, ExecutedAt: base.Add(3 * time.Minute), Outcome: types.OutcomeRejected})

	m := l.Metrics(base.Add(time.Hour))
	assert.Equal(t, 3, m.TotalTrades24h)
	assert.Equal(t, 2, m.FilledTrades24h)
	assert.Equal(t, 1, m.FailedTrades24h)
	assert.InDelta(t, 600.0, m.TotalVolume24h, 1e-9)
	assert.InDelta(t, 200.0, m.AvgTradeSize24h, 1e-9)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate24h, 1e-9)
}

func TestLedger_RecordsReturnsCopy(t *testing.T) {
	l := NewLedger()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	l.Append(types.TradeRecord{Symbol: "WETH", ExecutedAt: now, Outcome: types.OutcomeFilled})

	records := l.Records(now)
	records[0].Symbol = "mutated"

	assert.Equal(t, "WETH", l.Records(now)[0].Symbol)
}
