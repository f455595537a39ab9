// =============================================================================
// Warranty Orders - Date Normalizer
// =============================================================================
//
// This module turns a raw cell value of unknown shape into a calendar date.
// It is the only date parser in the pipeline; every stage that needs a date
// goes through Normalize.
//
// RESOLUTION ORDER (first applicable step wins):
//   1. Structured time.Time            -> returned unchanged
//   2. Number in [MinSerial, MaxSerial] -> spreadsheet serial from SerialEpoch
//   3. String                          -> trimmed, then
//        a. leading YYYY-M-D            -> year-first, month-first (ISO)
//        b. anything else               -> day-first (DD/MM/YYYY and friends)
//   4. Generic parse without day-first bias, or unparseable
//
// An ISO-looking string is never parsed day-first. Doing so swaps month and
// day for every date with day < 13.
//
// =============================================================================

package dates

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// MinSerial and MaxSerial bound the numeric values treated as serial
	// day counts.
	MinSerial = 1
	MaxSerial = 50000
)

// SerialEpoch is day 0 of the spreadsheet serial calendar. Using 1899-12-30
// (instead of 1900-01-01) absorbs the 1900 leap-year miscount of the format.
var SerialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// isoPrefix detects strings that must be parsed year-first.
var isoPrefix = regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}`)

// =============================================================================
// LAYOUTS
// =============================================================================

// isoLayouts are tried for strings with an ISO prefix. The "1" and "2"
// directives accept one or two digits, covering 2025-1-8 and 2025-01-08.
var isoLayouts = []string{
	"2006-1-2",
	"2006-1-2 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04:05.999999999",
	"2006-1-2T15:04",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04:05.999999999",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-1-2 15:04:05Z07:00",
	"2006-1-2 15:04:05 -0700",
}

// dayFirstLayouts cover the pt-BR export formats.
var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
	"2-1-2006",
	"2-1-2006 15:04",
	"2-1-2006 15:04:05",
	"2.1.2006",
	"2.1.2006 15:04",
	"2.1.2006 15:04:05",
	"2/1/06",
	"2/1/06 15:04",
	"2/1/06 15:04:05",
	"2-1-06",
	"2.1.06",
}

// genericLayouts carry no day-first bias.
var genericLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/06",
	"2006/1/2",
	"2006/1/2 15:04:05",
	"2006.1.2",
	"20060102",
	"20060102150405",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"Mon Jan 2 15:04:05 2006",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
}

// =============================================================================
// NORMALIZE
// =============================================================================

// Normalize resolves a raw value to a date.
//
// PARAMETERS:
//   - v: string, any Go numeric type, time.Time, *time.Time or nil.
//
// RETURNS:
//   - The resolved date and true, or the zero time and false when the value
//     is unparseable. Parsing never partially succeeds.
func Normalize(v any) (time.Time, bool) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false

	case time.Time:
		return val, true

	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return *val, true

	case string:
		return normalizeString(val)
	}

	if n, ok := toFloat(v); ok {
		if n >= MinSerial && n <= MaxSerial {
			return FromSerial(n), true
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return time.Time{}, false
		}
		return parseLayouts(strconv.FormatFloat(math.Trunc(n), 'f', -1, 64), genericLayouts)
	}

	return time.Time{}, false
}

// FromSerial converts a spreadsheet serial day count to a time.
// The integer part counts days from SerialEpoch and the fraction is the
// time of day, so FromSerial(1) is 1899-12-31.
func FromSerial(serial float64) time.Time {
	days := math.Floor(serial)
	fraction := serial - days
	t := SerialEpoch.AddDate(0, 0, int(days))
	if fraction > 0 {
		t = t.Add(time.Duration(math.Round(fraction * float64(24*time.Hour))))
	}
	return t
}

// IsISO reports whether s (already trimmed) takes the year-first branch.
func IsISO(s string) bool {
	return isoPrefix.MatchString(s)
}

// normalizeString applies steps 3 and 4 to a string value.
func normalizeString(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if IsISO(s) {
		if t, ok := parseLayouts(s, isoLayouts); ok {
			return t, true
		}
	} else if t, ok := parseLayouts(s, dayFirstLayouts); ok {
		return t, true
	}

	return parseLayouts(s, genericLayouts)
}

// parseLayouts returns the first successful parse of s.
// time.Parse rejects out-of-range months and days, so 2025-14-40 fails every
// layout rather than rolling over into a later date.
func parseLayouts(s string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toFloat widens the numeric kinds a reader may hand us.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
