package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/recall-agent/portfolio-rebalancer/pkg/types"
)

// DefaultExcelReporter writes the trade ledger as a styled workbook.
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// ExcelStyles holds the style IDs used across sheets.
type ExcelStyles struct {
	Header int
	Filled int
	Failed int
	Money  int
}

// WriteLedger writes trade records to an .xlsx workbook at path.
func (r *DefaultExcelReporter) WriteLedger(records []types.TradeRecord, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	const ledgerSheet = "Trade Ledger"
	const summarySheet = "Summary"
	fx.SetSheetName(fx.GetSheetName(0), ledgerSheet)
	fx.NewSheet(summarySheet)

	styles, err := r.createStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeLedgerSheet(fx, ledgerSheet, records, styles); err != nil {
		return err
	}
	if err := r.writeSummarySheet(fx, summarySheet, records, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	styles.Header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return styles, err
	}

	styles.Filled, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "006100"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return styles, err
	}

	styles.Failed, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	if err != nil {
		return styles, err
	}

	styles.Money, err = fx.NewStyle(&excelize.Style{NumFmt: 177}) // $#,##0.00
	return styles, err
}

func (r *DefaultExcelReporter) writeLedgerSheet(fx *excelize.File, sheet string, records []types.TradeRecord, styles ExcelStyles) error {
	headers := []string{"Executed At", "Asset", "Side", "Notional (USD)", "Price", "Outcome", "Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(sheet, "A1", lastCol, styles.Header); err != nil {
		return err
	}

	for i, rec := range records {
		row := i + 2
		values := []interface{}{
			rec.ExecutedAt.Format("2006-01-02 15:04:05"),
			rec.Symbol,
			rec.Side.String(),
			rec.USDAmount,
			rec.Price,
			rec.Outcome.String(),
			rec.Reason,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, row)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}

		outcomeCell, _ := excelize.CoordinatesToCellName(6, row)
		switch rec.Outcome {
		case types.OutcomeFilled:
			fx.SetCellStyle(sheet, outcomeCell, outcomeCell, styles.Filled)
		case types.OutcomeFailed:
			fx.SetCellStyle(sheet, outcomeCell, outcomeCell, styles.Failed)
		}
	}

	fx.SetColWidth(sheet, "A", "A", 20)
	fx.SetColWidth(sheet, "D", "E", 14)
	fx.SetColWidth(sheet, "G", "G", 45)
	return nil
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, records []types.TradeRecord, styles ExcelStyles) error {
	var filled, failed, rejected int
	var volume float64
	for _, rec := range records {
		switch rec.Outcome {
		case types.OutcomeFilled:
			filled++
			volume += rec.USDAmount
		case types.OutcomeFailed:
			failed++
		case types.OutcomeRejected:
			rejected++
		}
	}

	successRate := 1.0
	if filled+failed > 0 {
		successRate = float64(filled) / float64(filled+failed)
	}

	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Total Records", len(records)},
		{"Filled", filled},
		{"Failed", failed},
		{"Rejected", rejected},
		{"Success Rate", fmt.Sprintf("%.1f%%", successRate*100)},
		{"Filled Volume (USD)", volume},
	}
	for i, row := range rows {
		for j, v := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
			if err := fx.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := fx.SetCellStyle(sheet, "A1", "B1", styles.Header); err != nil {
		return err
	}
	fx.SetColWidth(sheet, "A", "A", 22)
	return nil
}
