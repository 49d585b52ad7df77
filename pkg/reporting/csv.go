package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// DefaultCSVReporter writes the trade ledger as CSV.
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteLedger writes trade records to path. An .xlsx path delegates to
// the Excel writer.
func (r *DefaultCSVReporter) WriteLedger(records []types.TradeRecord, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return NewDefaultExcelReporter().WriteLedger(records, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"executed_at", "symbol", "side", "usd_amount", "price", "outcome", "reason"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, rec := range records {
		row := []string{
			rec.ExecutedAt.Format("2006-01-02 15:04:05"),
			rec.Symbol,
			rec.Side.String(),
			fmt.Sprintf("%.2f", rec.USDAmount),
			fmt.Sprintf("%.6f", rec.Price),
			rec.Outcome.String(),
			rec.Reason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
