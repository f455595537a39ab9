// =============================================================================
// Warranty Orders - Field Extractor
// =============================================================================
//
// Projects a raw source row onto the fixed logical schema. Extraction is a
// pure function; the only failure mode is structural (a mapped column that
// the sheet does not have), and that is checked once per batch through
// ValidateMapping before any row is touched.
//
// =============================================================================

package extractor

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// ErrMissingColumn is returned when the mapping references a column that is
// not present in the source header.
var ErrMissingColumn = errors.New("missing source column")

// ErrIncompleteMapping is returned when a logical field has no source column.
var ErrIncompleteMapping = errors.New("incomplete field mapping")

// ValidateMapping checks the mapping against the sheet header.
//
// PARAMETERS:
//   - headers: The column names of the source sheet.
//   - mapping: Logical field -> source column name.
//
// RETURNS:
//   - nil when every logical field maps to an existing column.
//   - ErrIncompleteMapping or ErrMissingColumn (wrapped, naming every
//     offending field) otherwise.
func ValidateMapping(headers []string, mapping types.FieldMapping) error {
	var unmapped []string
	for _, field := range types.LogicalFields {
		if strings.TrimSpace(mapping[field]) == "" {
			unmapped = append(unmapped, string(field))
		}
	}
	if len(unmapped) > 0 {
		return fmt.Errorf("%w: no source column for %s", ErrIncompleteMapping, strings.Join(unmapped, ", "))
	}

	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = struct{}{}
	}

	var missing []string
	for _, field := range types.LogicalFields {
		column := mapping[field]
		if _, ok := present[column]; !ok {
			missing = append(missing, fmt.Sprintf("%s (%s)", column, field))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}

	return nil
}

// Extract maps one raw row onto the logical schema.
// Every logical field gets an entry; a nil or missing cell yields a value
// with Present=false.
func Extract(row types.RawRow, mapping types.FieldMapping) types.ExtractedRow {
	out := types.ExtractedRow{
		RowNumber: row.Number,
		Fields:    make(map[types.LogicalField]types.FieldValue, len(types.LogicalFields)),
	}

	for _, field := range types.LogicalFields {
		raw, ok := row.Values[mapping[field]]
		if !ok || raw == nil {
			out.Fields[field] = types.FieldValue{}
			continue
		}
		out.Fields[field] = types.FieldValue{
			Raw:     raw,
			Text:    strings.TrimSpace(Stringify(raw)),
			Present: true,
		}
	}

	return out
}

// Stringify renders a raw cell value as text.
// Whole numbers drop the decimal point so an order number read as 12345.0
// becomes "12345".
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}
