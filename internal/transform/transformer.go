// =============================================================================
// Warranty Orders - Record Transformer
// =============================================================================
//
// This module turns an accepted row into the final NormalizedRecord. It is
// where the numeric rules live:
//
//   - Monetary coercion is lenient. "1.234,56", "1234.56" and "R$ 12,30" all
//     yield numbers; anything without digits becomes zero. A malformed money
//     field never rejects a row.
//   - The raw parts figure is halved. The source system double counts parts,
//     and the halving is applied to every record without exception.
//   - calculation_verified compares parts + labor against the grand total
//     with a strict 0.01 tolerance, in exact decimal arithmetic.
//
// Optional text fields collapse to nil when blank so storage can tell
// "no data" from "empty data".
//
// =============================================================================

package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/warranty-orders/internal/types"
	"github.com/ginjaninja78/warranty-orders/internal/validation"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Tolerance is the maximum (exclusive) gap between parts + labor and the
// grand total for a record to count as verified.
var Tolerance = decimal.New(1, -2)

// partsDivisor corrects the double-counted parts figure.
var partsDivisor = decimal.NewFromInt(2)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer converts accepted rows into normalized records.
type Transformer struct{}

// NewTransformer creates a new Transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform builds the normalized record for an accepted row.
//
// PARAMETERS:
//   - row: The extracted row.
//   - outcome: The validator outcome for the row. It must be accepted; its
//     normalized status and parsed date are carried into the record.
//
// RETURNS:
//   - The normalized record.
func (t *Transformer) Transform(row types.ExtractedRow, outcome validation.Outcome) types.NormalizedRecord {
	rawParts := CoerceMoney(row.Get(types.FieldPartsTotal).Raw)
	labor := CoerceMoney(row.Get(types.FieldLaborTotal).Raw)
	grand := CoerceMoney(row.Get(types.FieldGrandTotal).Raw)
	parts := HalveParts(rawParts)

	return types.NormalizedRecord{
		SourceRow:           row.RowNumber,
		OrderNumber:         row.Get(types.FieldOrderNumber).Text,
		OrderDate:           outcome.Date,
		Status:              outcome.Status,
		EngineManufacturer:  optionalText(row.Get(types.FieldEngineManufacturer)),
		EngineDescription:   optionalText(row.Get(types.FieldEngineDescription)),
		VehicleModel:        optionalText(row.Get(types.FieldVehicleModel)),
		DefectDescription:   optionalText(row.Get(types.FieldDefectDescription)),
		ResponsibleMechanic: optionalText(row.Get(types.FieldResponsibleMechanic)),
		PartsTotal:          parts,
		LaborTotal:          labor,
		GrandTotal:          grand,
		OriginalPartsValue:  rawParts,
		CalculationVerified: IsCalculationVerified(parts, labor, grand),
	}
}

// HalveParts applies the parts correction rule.
func HalveParts(raw decimal.Decimal) decimal.Decimal {
	return raw.Div(partsDivisor)
}

// IsCalculationVerified reports whether |parts + labor - grand| < Tolerance.
func IsCalculationVerified(parts, labor, grand decimal.Decimal) bool {
	return parts.Add(labor).Sub(grand).Abs().LessThan(Tolerance)
}

// optionalText returns nil for absent or blank values.
func optionalText(v types.FieldValue) *string {
	if v.IsBlank() {
		return nil
	}
	s := v.Text
	return &s
}

// =============================================================================
// MONETARY COERCION
// =============================================================================

// CoerceMoney converts a raw cell value to a decimal amount.
//
// PARAMETERS:
//   - v: string, Go numeric type, decimal.Decimal or nil.
//
// RETURNS:
//   - The amount, or zero when nothing numeric can be recovered. It never
//     fails.
//
// SEPARATOR RULES:
//   - Both '.' and ',' present: the one appearing last is the decimal
//     separator, the other groups thousands ("1.234,56", "1,234.56").
//   - One kind present once: it is the decimal separator ("12,5", "12.5").
//   - One kind present several times: thousands grouping ("1.234.567").
//   - A '-' before the first digit makes the amount negative.
func CoerceMoney(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case string:
		return parseMoney(val)
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case int32:
		return decimal.NewFromInt(int64(val))
	}
	return parseMoney(fmt.Sprint(v))
}

func fromFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(f)
}

// parseMoney keeps digits, separators and a leading sign, then resolves the
// separator convention.
func parseMoney(s string) decimal.Decimal {
	var (
		b         strings.Builder
		negative  bool
		seenDigit bool
	)

	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			seenDigit = true
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-' && !seenDigit:
			negative = true
		}
	}

	if !seenDigit {
		return decimal.Zero
	}

	normalized := normalizeSeparators(b.String())
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		return d.Neg()
	}
	return d
}

// normalizeSeparators rewrites s (digits, '.' and ',' only) into a plain
// decimal literal with at most one '.'.
func normalizeSeparators(s string) string {
	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	var decimalSep rune
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			decimalSep = ','
		} else {
			decimalSep = '.'
		}
	case commas == 1:
		decimalSep = ','
	case dots == 1:
		decimalSep = '.'
	}

	lastSep := -1
	if decimalSep != 0 {
		lastSep = strings.LastIndexByte(s, byte(decimalSep))
	}

	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '.' || r == ',':
			if i == lastSep {
				b.WriteByte('.')
			}
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimSuffix(b.String(), ".")
	if strings.HasPrefix(out, ".") {
		out = "0" + out
	}
	if out == "" {
		return "0"
	}
	return out
}
