package reporting

import (
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DefaultConsoleReporter renders portfolio and cycle state as rounded
// tables on stdout.
type DefaultConsoleReporter struct{}

// NewDefaultConsoleReporter creates a new console reporter
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return &DefaultConsoleReporter{}
}

// PrintStartup prints the agent configuration at boot.
func (r *DefaultConsoleReporter) PrintStartup(agentName, environment string, targets map[string]float64) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("REBALANCER INITIALIZATION")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"🤖 Agent", agentName},
		{"🔧 Environment", environment},
	})
	for _, symbol := range sortedKeys(targets) {
		t.AppendRow(table.Row{"🎯 Target " + symbol, fmt.Sprintf("%.1f%%", targets[symbol]*100)})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 20, Align: text.AlignLeft},
		{Number: 2, WidthMin: 25, WidthMax: 35, Align: text.AlignLeft},
	})

	t.Render()
	fmt.Println()
}

// PrintCycle prints allocation, decisions and trades for one cycle.
func (r *DefaultConsoleReporter) PrintCycle(report CycleReport) {
	r.printAllocation(report)
	if len(report.Records) > 0 {
		r.printTrades(report)
	}
	r.printRiskSummary(report)
}

func (r *DefaultConsoleReporter) printAllocation(report CycleReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("ALLOCATION (%s)", report.Trigger))
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Asset", "Value", "Current", "Target", "Drift", "Decision"})

	for _, symbol := range sortedKeys(report.Targets) {
		pos := report.Portfolio.Positions[symbol]
		current := report.Portfolio.Weight(symbol)
		target := report.Targets[symbol]
		decision := report.Decisions[symbol]

		t.AppendRow(table.Row{
			symbol,
			fmt.Sprintf("$%.2f", pos.USDValue),
			fmt.Sprintf("%.1f%%", current*100),
			fmt.Sprintf("%.1f%%", target*100),
			fmt.Sprintf("%+.2f%%", (target-current)*100),
			fmt.Sprintf("%s (%.0f%%)", decision.Signal, decision.Confidence*100),
		})
	}
	t.AppendFooter(table.Row{"TOTAL", fmt.Sprintf("$%.2f", report.Portfolio.TotalValue), "", "", "", ""})

	t.Render()
	fmt.Println()
}

func (r *DefaultConsoleReporter) printTrades(report CycleReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Time", "Asset", "Side", "Notional", "Price", "Outcome", "Reason"})

	for _, rec := range report.Records {
		t.AppendRow(table.Row{
			rec.ExecutedAt.Format("15:04:05"),
			rec.Symbol,
			rec.Side.String(),
			fmt.Sprintf("$%.2f", rec.USDAmount),
			fmt.Sprintf("$%.4f", rec.Price),
			rec.Outcome.String(),
			rec.Reason,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, WidthMax: 40},
	})

	t.Render()
	fmt.Println()
}

func (r *DefaultConsoleReporter) printRiskSummary(report CycleReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("RISK")
	t.SetStyle(table.StyleRounded)

	mode := report.Risk.Mode.String()
	if report.Risk.Recovering {
		mode += " (recovering, reduced limits)"
	}

	t.AppendRows([]table.Row{
		{"🚦 Mode", mode},
		{"📊 Daily PnL", fmt.Sprintf("%+.2f%%", report.Risk.DailyPnLPct*100)},
		{"🔄 Trades (1h)", report.Risk.TradesInLastHour},
		{"🔄 Trades (24h)", report.Metrics.TotalTrades24h},
		{"✅ Success Rate (24h)", fmt.Sprintf("%.0f%%", report.Metrics.SuccessRate24h*100)},
		{"💵 Volume (24h)", fmt.Sprintf("$%.2f", report.Metrics.TotalVolume24h)},
	})
	if report.Risk.HaltReason != "" {
		t.AppendRow(table.Row{"🛑 Halt Reason", report.Risk.HaltReason})
	}

	t.Render()
	fmt.Println()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
