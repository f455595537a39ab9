// =============================================================================
// Warranty Orders - CSV Parser Module
// =============================================================================
//
// This module reads CSV exports of the service-order table into a
// types.Sheet, the same shape the XLSX reader produces.
//
// FEATURES:
//   - Configurable delimiter (comma, semicolon, pipe, tab)
//   - UTF-8 byte order mark stripped from the first header
//   - Quoted fields spanning lines keep the line number of their first line
//   - Number inference so serial dates behave like workbook cells
//
// NUMBER INFERENCE:
//   A cell that is a plain decimal number ("45678", "-12", "150.5") becomes
//   a float64. Anything else stays a string, including values with leading
//   zeros ("00123"), thousands separators and dates. Set KeepText to disable.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/warranty-orders/internal/config"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// ErrEmptyFile is returned when the CSV has no header row.
var ErrEmptyFile = errors.New("CSV file is empty")

// plainNumber matches numbers a spreadsheet would store as numeric cells.
var plainNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?$`)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed sheet.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings from the configuration.
//
// RETURNS:
//   - The sheet with one RawRow per non-empty line.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings config.CSVSettings) (*types.Sheet, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file, filePath, settings)
}

// ParseReader parses CSV content from r. source is recorded as Sheet.Source.
func ParseReader(r io.Reader, source string, settings config.CSVSettings) (*types.Sheet, error) {
	csvReader := csv.NewReader(bufio.NewReader(r))
	configureReader(csvReader, settings)

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	headers := types.NormalizeHeaders(header)
	sheet := &types.Sheet{
		Source:  source,
		Headers: headers,
	}

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		line, _ := csvReader.FieldPos(0)
		values := make(map[string]any, len(headers))
		for i, name := range headers {
			if i < len(record) {
				values[name] = cellValue(record[i], settings.KeepText)
			} else {
				values[name] = nil
			}
		}

		sheet.Rows = append(sheet.Rows, types.RawRow{Number: line, Values: values})
	}

	return sheet, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Exports are ragged when trailing cells are empty.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = settings.LazyQuotes
}

// cellValue maps an empty cell to nil and infers plain numbers.
func cellValue(raw string, keepText bool) any {
	if raw == "" {
		return nil
	}
	if keepText {
		return raw
	}
	trimmed := strings.TrimSpace(raw)
	if plainNumber.MatchString(trimmed) {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return n
		}
	}
	return raw
}
