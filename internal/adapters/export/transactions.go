// Package export は配布履歴を表計算ファイルとして書き出します。
package export

import (
	"fmt"
	"io"

	"github.com/ogurasousui/gallon-quota/internal/core/employee"
	"github.com/ogurasousui/gallon-quota/internal/core/ledger"
	"github.com/xuri/excelize/v2"
)

// ContentTypeXLSX は xlsx の MIME タイプです。
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Transactions"

var header = []any{"Date", "Gallons Taken", "Remaining Quota", "Recorded At"}

// Filename は社員の履歴ファイル名を返します。
func Filename(e *employee.Employee) string {
	return fmt.Sprintf("transactions_%s.xlsx", e.ExternalID)
}

// WriteTransactions は履歴を 1 シートの xlsx として w に書き出します。
// 1 行目は見出しで、以降は与えられた順に 1 件 1 行です。
func WriteTransactions(w io.Writer, e *employee.Employee, items []*ledger.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{
		Title:   fmt.Sprintf("Gallon transactions for %s (%s)", e.Name, e.ExternalID),
		Creator: "gallon-quota",
	}); err != nil {
		return fmt.Errorf("export: doc props: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("export: header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("export: style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "D1", bold); err != nil {
		return fmt.Errorf("export: header style: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "D", 20); err != nil {
		return fmt.Errorf("export: column width: %w", err)
	}

	for i, item := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export: cell name: %w", err)
		}
		row := []any{
			item.TransactionDate.Format("2006-01-02"),
			item.GallonsTaken,
			item.RemainingQuota,
			item.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("export: row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
