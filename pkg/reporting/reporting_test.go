package reporting

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

func sampleRecords() []types.TradeRecord {
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	return []types.TradeRecord{
		{Symbol: "USDC", Side: types.SideSell, USDAmount: 100, Price: 1, ExecutedAt: at, Outcome: types.OutcomeFilled},
		{Symbol: "WETH", Side: types.SideBuy, USDAmount: 100, Price: 2000, ExecutedAt: at.Add(time.Second), Outcome: types.OutcomeFailed, Reason: "venue timeout"},
		{Symbol: "WBTC", Side: types.SideBuy, USDAmount: 50, Price: 40000, ExecutedAt: at.Add(2 * time.Second), Outcome: types.OutcomeRejected, Reason: "frequency: limit reached"},
	}
}

func TestCSVReporter_WriteLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")

	require.NoError(t, NewDefaultCSVReporter().WriteLedger(sampleRecords(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4, "header plus three records")
	assert.Equal(t, "executed_at", rows[0][0])
	assert.Equal(t, "USDC", rows[1][1])
	assert.Equal(t, "SELL", rows[1][2])
	assert.Equal(t, "REJECTED", rows[3][5])
}

func TestCSVReporter_DelegatesXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")

	require.NoError(t, NewDefaultCSVReporter().WriteLedger(sampleRecords(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Contains(t, fx.GetSheetList(), "Trade Ledger")
	assert.Contains(t, fx.GetSheetList(), "Summary")
}

func TestExcelReporter_WriteLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ledger.xlsx")

	require.NoError(t, NewDefaultExcelReporter().WriteLedger(sampleRecords(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	symbol, err := fx.GetCellValue("Trade Ledger", "B2")
	require.NoError(t, err)
	assert.Equal(t, "USDC", symbol)

	filled, err := fx.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "1", filled)

	// One filled out of two executed: rejected records are excluded.
	rate, err := fx.GetCellValue("Summary", "B6")
	require.NoError(t, err)
	assert.Equal(t, "50.0%", rate)
}

func TestConsoleReporter_PrintCycleDoesNotPanic(t *testing.T) {
	report := CycleReport{
		Trigger: "daily",
		Portfolio: types.PortfolioSnapshot{
			TotalValue: 1000,
			Positions: map[string]types.Position{
				"USDC": {USDValue: 400},
				"WETH": {USDValue: 600},
			},
		},
		Targets: map[string]float64{"USDC": 0.3, "WETH": 0.7},
		Decisions: map[string]types.CombinedDecision{
			"WETH": {Signal: types.SignalBuy, Confidence: 0.8},
		},
		Records: sampleRecords(),
	}

	r := NewDefaultConsoleReporter()
	r.PrintStartup("rebalancer", "sandbox", report.Targets)
	r.PrintCycle(report)
}
