package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// RejectionsSheet is the worksheet name of the rejections workbook.
const RejectionsSheet = "Rejections"

var rejectionHeader = []any{"Row", "Order Number", "Cause", "Detail"}

// WriteRejectionsWorkbook writes one worksheet row per rejection, under a
// bold header, so reviewers can filter by cause.
func WriteRejectionsWorkbook(path string, rejections []types.RejectionEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RejectionsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := f.SetSheetRow(RejectionsSheet, "A1", &rejectionHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(RejectionsSheet, "A1", "D1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, rej := range rejections {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{rej.RowNumber, rej.OrderNumber, string(rej.Cause), rej.Detail}
		if err := f.SetSheetRow(RejectionsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write rejection for row %d: %w", rej.RowNumber, err)
		}
	}

	if err := f.SetColWidth(RejectionsSheet, "B", "C", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(RejectionsSheet, "D", "D", 60); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save rejections workbook: %w", err)
	}
	return nil
}
