package reporting

import (
	"github.com/recall-agent/portfolio-rebalancer/internal/risk"
	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// CycleReport is everything the reporters need about one finished
// rebalancing cycle.
type CycleReport struct {
	Trigger   string
	Portfolio types.PortfolioSnapshot
	Targets   map[string]float64
	Decisions map[string]types.CombinedDecision
	Records   []types.TradeRecord
	Risk      risk.Status
	Metrics   risk.Metrics
}

// ConsoleReporter renders cycle state to stdout.
type ConsoleReporter interface {
	PrintStartup(agentName, environment string, targets map[string]float64)
	PrintCycle(report CycleReport)
}

// LedgerWriter persists the trade ledger to a file.
type LedgerWriter interface {
	WriteLedger(records []types.TradeRecord, path string) error
}
