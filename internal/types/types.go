// =============================================================================
// Warranty Orders - Shared Types
// =============================================================================
//
// This package contains the types that flow through the ingestion pipeline.
// They live here so the reader, pipeline stages, reports and stores can share
// them without import cycles. Types defined here are used by:
//   - xlsxparser / csvparser (Sheet, RawRow)
//   - extractor, validation, transform (ExtractedRow, FieldValue)
//   - batch, report, store, server (NormalizedRecord, RejectionEntry)
//
// =============================================================================

package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOGICAL SCHEMA
// =============================================================================

// LogicalField names one slot of the fixed service-order schema.
type LogicalField string

const (
	FieldOrderNumber         LogicalField = "order_number"
	FieldOrderDate           LogicalField = "order_date"
	FieldOrderStatus         LogicalField = "order_status"
	FieldEngineManufacturer  LogicalField = "engine_manufacturer"
	FieldEngineDescription   LogicalField = "engine_description"
	FieldVehicleModel        LogicalField = "vehicle_model"
	FieldDefectDescription   LogicalField = "defect_description"
	FieldResponsibleMechanic LogicalField = "responsible_mechanic"
	FieldPartsTotal          LogicalField = "parts_total"
	FieldLaborTotal          LogicalField = "labor_total"
	FieldGrandTotal          LogicalField = "grand_total"
)

// LogicalFields lists every logical field in schema order.
var LogicalFields = []LogicalField{
	FieldOrderNumber,
	FieldOrderDate,
	FieldOrderStatus,
	FieldEngineManufacturer,
	FieldEngineDescription,
	FieldVehicleModel,
	FieldDefectDescription,
	FieldResponsibleMechanic,
	FieldPartsTotal,
	FieldLaborTotal,
	FieldGrandTotal,
}

// RequiredFields gate all further processing of a row.
var RequiredFields = []LogicalField{
	FieldOrderNumber,
	FieldOrderDate,
	FieldOrderStatus,
}

// FieldMapping maps each logical field to the source column that feeds it.
type FieldMapping map[LogicalField]string

// DefaultFieldMapping returns the column names used by the dealer
// management system export ("Tabela" sheet).
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		FieldOrderNumber:         "NOrdem_OSv",
		FieldOrderDate:           "Data_OSv",
		FieldOrderStatus:         "Status_OSv",
		FieldEngineManufacturer:  "Fabricante_Mot",
		FieldEngineDescription:   "Descricao_Mot",
		FieldVehicleModel:        "ModeloVei_Osv",
		FieldDefectDescription:   "ObsCorpo_OSv",
		FieldResponsibleMechanic: "RazaoSocial_Cli",
		FieldPartsTotal:          "TotalProd_OSv",
		FieldLaborTotal:          "TotalServ_OSv",
		FieldGrandTotal:          "Total_OSv",
	}
}

// =============================================================================
// RAW INPUT
// =============================================================================

// RawRow is one source row keyed by source column name.
// Values are one of: string, float64, int, time.Time or nil (absent).
type RawRow struct {
	// Number is the 1-based line number in the source sheet, header included.
	// It is the row identifier used in rejection reports.
	Number int

	// Values holds the cell values keyed by header name.
	Values map[string]any
}

// IsBlank reports whether the row carries no data in any column.
func (r RawRow) IsBlank() bool {
	for _, v := range r.Values {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if strings.TrimSpace(val) != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Sheet is an ordered set of raw rows read from one source.
type Sheet struct {
	// Source is the path (or upload name) the rows were read from.
	Source string

	// Name is the worksheet name, empty for CSV sources.
	Name string

	// Headers are the column names in source order.
	Headers []string

	// Rows are the data rows in source order.
	Rows []RawRow
}

// NormalizeHeaders trims header names, drops trailing blank columns, names
// interior blank columns "Unnamed: N" and suffixes duplicates with ".1", ".2".
func NormalizeHeaders(row []string) []string {
	last := len(row) - 1
	for last >= 0 && strings.TrimSpace(row[last]) == "" {
		last--
	}

	headers := make([]string, 0, last+1)
	seen := make(map[string]int, last+1)
	for i := 0; i <= last; i++ {
		name := strings.TrimSpace(row[i])
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		headers = append(headers, name)
	}
	return headers
}

// =============================================================================
// EXTRACTED ROW
// =============================================================================

// FieldValue is one extracted slot.
type FieldValue struct {
	// Raw is the untouched source value. The date check needs its shape
	// (serial number, string or structured time).
	Raw any

	// Text is the trimmed string representation of Raw.
	Text string

	// Present is false when the source cell was absent (nil).
	// An absent value is distinct from an empty string.
	Present bool
}

// IsBlank reports whether the value is absent or whitespace only.
func (v FieldValue) IsBlank() bool {
	return !v.Present || v.Text == ""
}

// ExtractedRow is a raw row projected onto the logical schema.
type ExtractedRow struct {
	// RowNumber is copied from RawRow.Number.
	RowNumber int

	// Fields holds one value per logical field. Every logical field has an
	// entry; missing cells are represented by a FieldValue with Present=false.
	Fields map[LogicalField]FieldValue
}

// Get returns the value for a logical field.
func (r ExtractedRow) Get(field LogicalField) FieldValue {
	return r.Fields[field]
}

// =============================================================================
// REJECTIONS
// =============================================================================

// Cause tags why a row was rejected. The set is closed.
type Cause string

const (
	CauseMissingRequiredField Cause = "missing_required_field"
	CauseInvalidStatus        Cause = "invalid_status"
	CauseUnparseableDate      Cause = "unparseable_date"
	CauseYearOutOfRange       Cause = "year_out_of_range"
	CauseImpossibleFutureDate Cause = "impossible_future_date"
)

// Causes lists every cause in the order the validator checks them.
var Causes = []Cause{
	CauseMissingRequiredField,
	CauseInvalidStatus,
	CauseUnparseableDate,
	CauseYearOutOfRange,
	CauseImpossibleFutureDate,
}

// Valid reports whether c is one of the known causes.
func (c Cause) Valid() bool {
	for _, known := range Causes {
		if c == known {
			return true
		}
	}
	return false
}

// RejectionEntry records one rejected row.
type RejectionEntry struct {
	RowNumber   int    `json:"row_number"`
	OrderNumber string `json:"order_number,omitempty"`
	Cause       Cause  `json:"cause"`
	Detail      string `json:"detail"`
}

// =============================================================================
// NORMALIZED RECORD
// =============================================================================

// NormalizedRecord is an accepted, transformed service order.
// It is created once by the transformer and not modified afterwards.
type NormalizedRecord struct {
	// SourceRow is the source line the record came from.
	SourceRow int `json:"source_row"`

	OrderNumber string    `json:"order_number"`
	OrderDate   time.Time `json:"order_date"`
	Status      string    `json:"order_status"`

	// Optional descriptive fields. nil means "no data".
	EngineManufacturer  *string `json:"engine_manufacturer"`
	EngineDescription   *string `json:"engine_description"`
	VehicleModel        *string `json:"vehicle_model"`
	DefectDescription   *string `json:"raw_defect_description"`
	ResponsibleMechanic *string `json:"responsible_mechanic"`

	// PartsTotal is OriginalPartsValue halved.
	PartsTotal         decimal.Decimal `json:"parts_total"`
	LaborTotal         decimal.Decimal `json:"labor_total"`
	GrandTotal         decimal.Decimal `json:"grand_total"`
	OriginalPartsValue decimal.Decimal `json:"original_parts_value"`

	// CalculationVerified is true when parts + labor reconcile with grand.
	CalculationVerified bool `json:"calculation_verified"`
}

// DateString renders the order date as YYYY-MM-DD.
func (r NormalizedRecord) DateString() string {
	return r.OrderDate.Format("2006-01-02")
}

// StringOrEmpty dereferences an optional text field.
func StringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
