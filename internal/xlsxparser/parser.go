// =============================================================================
// Warranty Orders - XLSX Workbook Reader
// =============================================================================
//
// This module reads the dealer management system export (an XLSX workbook)
// into a types.Sheet.
//
// SHEET SELECTION:
//   The configured sheet (default "Tabela") is read when it exists. Otherwise
//   the first sheet that has at least one row is used, and Sheet.Name tells
//   the caller which one was picked.
//
// CELL TYPING:
//   Cells keep the shape they have in the workbook so the date check can
//   tell serial numbers from text:
//     - Numbers and date-formatted cells  -> float64 (raw serial for dates)
//     - Shared/inline strings, booleans   -> string
//     - Empty cells                       -> nil (absent)
//
// ROW NUMBERS:
//   The header is line 1. The first data row is line 2. Empty rows keep their
//   line number so rejection reports point at the right spreadsheet line.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// ErrEmptyWorkbook is returned when no sheet in the workbook has rows.
var ErrEmptyWorkbook = errors.New("workbook has no non-empty sheet")

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// ReadWorkbook opens an XLSX file and reads the orders sheet.
//
// PARAMETERS:
//   - path: The path to the XLSX file.
//   - sheetName: The preferred sheet. Falls back to the first non-empty sheet.
//
// RETURNS:
//   - The sheet with typed cell values.
//   - An error if the file cannot be opened or has no data.
func ReadWorkbook(path, sheetName string) (*types.Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readFile(f, path, sheetName)
}

// ReadWorkbookFrom reads a workbook from a stream, such as an HTTP upload.
// source is recorded as Sheet.Source.
func ReadWorkbookFrom(r io.Reader, source, sheetName string) (*types.Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readFile(f, source, sheetName)
}

func readFile(f *excelize.File, source, sheetName string) (*types.Sheet, error) {
	name, rows, err := selectSheet(f, sheetName)
	if err != nil {
		return nil, err
	}

	headers := types.NormalizeHeaders(rows[0])
	sheet := &types.Sheet{
		Source:  source,
		Name:    name,
		Headers: headers,
		Rows:    make([]types.RawRow, 0, len(rows)-1),
	}

	for i := 1; i < len(rows); i++ {
		lineNumber := i + 1
		values := make(map[string]any, len(headers))

		for col, header := range headers {
			var raw string
			if col < len(rows[i]) {
				raw = rows[i][col]
			}
			value, err := cellValue(f, name, col+1, lineNumber, raw)
			if err != nil {
				return nil, fmt.Errorf("error reading row %d: %w", lineNumber, err)
			}
			values[header] = value
		}

		sheet.Rows = append(sheet.Rows, types.RawRow{Number: lineNumber, Values: values})
	}

	return sheet, nil
}

// selectSheet returns the preferred sheet, or the first sheet with rows.
func selectSheet(f *excelize.File, preferred string) (string, [][]string, error) {
	opts := excelize.Options{RawCellValue: true}

	if idx, _ := f.GetSheetIndex(preferred); preferred != "" && idx >= 0 {
		rows, err := f.GetRows(preferred, opts)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read rows: %w", err)
		}
		if len(rows) > 0 {
			return preferred, rows, nil
		}
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, opts)
		if err != nil {
			return "", nil, fmt.Errorf("failed to read rows of sheet '%s': %w", name, err)
		}
		if len(rows) > 0 {
			return name, rows, nil
		}
	}

	return "", nil, ErrEmptyWorkbook
}

// cellValue converts the raw cell text into a typed value.
func cellValue(f *excelize.File, sheet string, col, row int, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}

	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	cellType, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, err
	}

	switch cellType {
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	}
	return raw, nil
}
