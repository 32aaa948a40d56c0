// Package voucher renders payment vouchers as Excel workbooks for printing
// and archival.
package voucher

import (
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/opsfinance/formflow/internal/domain/entity"
)

// Exporter renders vouchers into xlsx workbooks
type Exporter struct {
	companyName  string
	companyTaxID string
	logger       *zap.Logger
}

// NewExporter creates a new voucher exporter
func NewExporter(companyName, companyTaxID string, logger *zap.Logger) *Exporter {
	return &Exporter{
		companyName:  companyName,
		companyTaxID: companyTaxID,
		logger:       logger,
	}
}

// Render produces an xlsx workbook for the voucher and returns its bytes.
func (e *Exporter) Render(v *entity.Voucher) ([]byte, error) {
	e.logger.Info("Rendering voucher workbook",
		zap.Int64("voucher_id", v.ID),
		zap.String("voucher_number", v.VoucherNumber))

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	e.setCell(f, sheet, "A1", "CASH VOUCHER")
	e.setCell(f, sheet, "A2", e.companyName)
	if e.companyTaxID != "" {
		e.setCell(f, sheet, "A3", "Tax ID: "+e.companyTaxID)
	}

	e.setCell(f, sheet, "D2", "Voucher No: "+v.VoucherNumber)
	e.setCell(f, sheet, "D3", "Date: "+v.Date.Format("2006-01-02"))

	e.setCell(f, sheet, "A5", "Payee:")
	e.setCell(f, sheet, "B5", v.Payee)
	e.setCell(f, sheet, "A6", "Particulars:")
	e.setCell(f, sheet, "B6", v.Particulars)
	if v.FormNumber != "" {
		e.setCell(f, sheet, "A7", "Form No:")
		e.setCell(f, sheet, "B7", v.FormNumber)
	}
	if v.BankName != "" {
		e.setCell(f, sheet, "D5", "Bank: "+v.BankName)
	}
	if v.ReferenceNumber != "" {
		e.setCell(f, sheet, "D6", "Reference: "+v.ReferenceNumber)
	}

	// Entry table
	e.setCell(f, sheet, "A9", "Account Title")
	e.setCell(f, sheet, "B9", "Activity")
	e.setCell(f, sheet, "C9", "Debit")
	e.setCell(f, sheet, "D9", "Credit")

	row := 10
	for _, entry := range v.Entries {
		e.setCell(f, sheet, fmt.Sprintf("A%d", row), entry.AccountTitle)
		e.setCell(f, sheet, fmt.Sprintf("B%d", row), entry.Activity)
		e.setCell(f, sheet, fmt.Sprintf("C%d", row), entry.Debit.StringFixed(2))
		e.setCell(f, sheet, fmt.Sprintf("D%d", row), entry.Credit.StringFixed(2))
		row++
	}

	e.setCell(f, sheet, "A"+fmt.Sprint(row+1), "Total:")
	e.setCell(f, sheet, "C"+fmt.Sprint(row+1), v.TotalAmount.StringFixed(2))

	e.setCell(f, sheet, "A"+fmt.Sprint(row+3), "Prepared By")
	e.setCell(f, sheet, "C"+fmt.Sprint(row+3), "Approved By")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// setCell sets a cell value in the workbook
func (e *Exporter) setCell(f *excelize.File, sheet, cell, value string) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}
