// =============================================================================
// Warranty Orders - Row Validator
// =============================================================================
//
// This module decides, for one extracted row, whether it is accepted or
// rejected. The checks run as an ordered chain and the first failure ends
// the chain, so a row is never counted under two causes:
//
//   start
//     -> required fields present and non-blank   (missing_required_field)
//     -> status in the whitelist                 (invalid_status)
//     -> date parses                             (unparseable_date)
//     -> year within [MinYear, MaxYear]          (year_out_of_range)
//     -> not an impossible future date           (impossible_future_date)
//     -> accepted
//
// Cheap structural checks run before the date cascade. The future-date guard
// only makes sense inside the valid year range, so it runs last.
//
// ERROR HANDLING:
//   - Row outcomes are values, never errors
//   - Each rejection names the row, the order number (when known), the cause
//     tag and a human-readable detail
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ginjaninja78/warranty-orders/internal/dates"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// =============================================================================
// BUSINESS CONSTANTS
// =============================================================================

const (
	// MinYear and MaxYear bound the accepted order years (inclusive).
	MinYear = 2019
	MaxYear = 2025

	// DefaultFutureToleranceMonths is how far past the reference month an
	// order date may fall within the reference year.
	DefaultFutureToleranceMonths = 1
)

// StatusWhitelist holds the accepted order statuses (uppercase).
var StatusWhitelist = map[string]struct{}{
	"G":  {},
	"GO": {},
	"GU": {},
}

// NormalizeStatus trims and uppercases a status value.
func NormalizeStatus(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsAllowedStatus reports whether s, once normalized, is whitelisted.
func IsAllowedStatus(s string) bool {
	_, ok := StatusWhitelist[NormalizeStatus(s)]
	return ok
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options configures the validator.
type Options struct {
	// ReferenceDate is "today" for the future-date guard. The validator never
	// reads the wall clock; callers inject it.
	ReferenceDate time.Time

	// FutureToleranceMonths is how many months past the reference month are
	// still accepted in the reference year.
	// Default: 1
	FutureToleranceMonths int
}

// DefaultOptions returns options anchored at the given reference date.
func DefaultOptions(reference time.Time) Options {
	return Options{
		ReferenceDate:         reference,
		FutureToleranceMonths: DefaultFutureToleranceMonths,
	}
}

// Validator applies the acceptance chain to extracted rows.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	options Options
}

// NewValidator creates a validator with the default tolerance.
func NewValidator(reference time.Time) *Validator {
	return NewValidatorWithOptions(DefaultOptions(reference))
}

// NewValidatorWithOptions creates a validator with custom options.
// A negative tolerance is treated as zero.
func NewValidatorWithOptions(options Options) *Validator {
	if options.FutureToleranceMonths < 0 {
		options.FutureToleranceMonths = 0
	}
	return &Validator{options: options}
}

// Options returns the validator configuration.
func (v *Validator) Options() Options {
	return v.options
}

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome is the result of validating one row.
type Outcome struct {
	// Accepted is true when every check passed.
	Accepted bool

	// Status is the normalized status (set whenever the status is non-blank).
	Status string

	// Date is the parsed order date (set once the date check passed).
	Date time.Time

	// Rejection is set when Accepted is false.
	Rejection *types.RejectionEntry
}

// Cause returns the rejection cause, or "" for accepted rows.
func (o Outcome) Cause() types.Cause {
	if o.Rejection == nil {
		return ""
	}
	return o.Rejection.Cause
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate runs the acceptance chain on one row.
//
// PARAMETERS:
//   - row: The extracted row.
//
// RETURNS:
//   - An Outcome. Exactly one of Accepted or Rejection is set.
func (v *Validator) Validate(row types.ExtractedRow) Outcome {
	orderNumber := row.Get(types.FieldOrderNumber).Text
	statusField := row.Get(types.FieldOrderStatus)

	out := Outcome{}
	if !statusField.IsBlank() {
		out.Status = NormalizeStatus(statusField.Text)
	}

	reject := func(cause types.Cause, detail string) Outcome {
		out.Rejection = &types.RejectionEntry{
			RowNumber:   row.RowNumber,
			OrderNumber: orderNumber,
			Cause:       cause,
			Detail:      detail,
		}
		return out
	}

	// Required fields.
	if missing := missingRequired(row); len(missing) > 0 {
		return reject(types.CauseMissingRequiredField,
			fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")))
	}

	// Status whitelist.
	if _, ok := StatusWhitelist[out.Status]; !ok {
		return reject(types.CauseInvalidStatus,
			fmt.Sprintf("status %q is not one of %s", statusField.Text, whitelistString()))
	}

	// Date parse.
	dateField := row.Get(types.FieldOrderDate)
	date, ok := dates.Normalize(dateField.Raw)
	if !ok {
		return reject(types.CauseUnparseableDate,
			fmt.Sprintf("cannot parse date %q", dateField.Text))
	}
	out.Date = date

	// Year range.
	if date.Year() < MinYear || date.Year() > MaxYear {
		return reject(types.CauseYearOutOfRange,
			fmt.Sprintf("year %d outside [%d, %d]", date.Year(), MinYear, MaxYear))
	}

	// Future-date guard.
	if v.isImpossibleFuture(date) {
		ref := v.options.ReferenceDate
		return reject(types.CauseImpossibleFutureDate,
			fmt.Sprintf("date %s is more than %d month(s) past %s",
				date.Format("2006-01-02"), v.options.FutureToleranceMonths, ref.Format("2006-01")))
	}

	out.Accepted = true
	return out
}

// isImpossibleFuture rejects dates in the reference year whose month lies
// beyond the reference month plus the tolerance. Dates in later years are
// handled by the year-range check.
func (v *Validator) isImpossibleFuture(date time.Time) bool {
	ref := v.options.ReferenceDate
	if ref.IsZero() {
		return false
	}
	return date.Year() == ref.Year() &&
		int(date.Month()) > int(ref.Month())+v.options.FutureToleranceMonths
}

// missingRequired lists the required fields that are absent or blank.
func missingRequired(row types.ExtractedRow) []string {
	var missing []string
	for _, field := range types.RequiredFields {
		if row.Get(field).IsBlank() {
			missing = append(missing, string(field))
		}
	}
	return missing
}

func whitelistString() string {
	values := make([]string, 0, len(StatusWhitelist))
	for s := range StatusWhitelist {
		values = append(values, s)
	}
	sort.Strings(values)
	return "{" + strings.Join(values, ", ") + "}"
}

// =============================================================================
// FORMATTING
// =============================================================================

// FormatRejections renders rejections as one line each, for console output.
func FormatRejections(rejections []types.RejectionEntry) string {
	if len(rejections) == 0 {
		return "No rejected rows."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d rejected row(s):\n", len(rejections)))
	for _, r := range rejections {
		order := r.OrderNumber
		if order == "" {
			order = "-"
		}
		sb.WriteString(fmt.Sprintf("  row %d [%s] order %s: %s\n", r.RowNumber, r.Cause, order, r.Detail))
	}
	return sb.String()
}
