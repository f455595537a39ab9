package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/warranty-orders/internal/extractor"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

var reference = time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

func row(orderNumber, date, status any) types.ExtractedRow {
	m := types.DefaultFieldMapping()
	return extractor.Extract(types.RawRow{
		Number: 2,
		Values: map[string]any{
			m[types.FieldOrderNumber]: orderNumber,
			m[types.FieldOrderDate]:   date,
			m[types.FieldOrderStatus]: status,
		},
	}, m)
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator(reference)

	tests := []struct {
		name       string
		row        types.ExtractedRow
		wantCause  types.Cause
		wantStatus string
		wantDetail string
	}{
		{name: "accepted iso", row: row("OS100", "2025-01-08", "g"), wantStatus: "G"},
		{name: "accepted serial", row: row(1001.0, 45678.0, "GO"), wantStatus: "GO"},
		{name: "accepted day first", row: row("OS2", "25/12/2024", " gu "), wantStatus: "GU"},
		{name: "status with spaces", row: row("OS3", "2024-01-01", " g "), wantStatus: "G"},
		{name: "status mixed case", row: row("OS4", "2024-01-01", "Go"), wantStatus: "GO"},

		{name: "missing order number", row: row(nil, "2025-01-08", "G"), wantCause: types.CauseMissingRequiredField, wantDetail: "order_number"},
		{name: "blank order number", row: row("   ", "2025-01-08", "G"), wantCause: types.CauseMissingRequiredField},
		{name: "missing date", row: row("OS5", nil, "G"), wantCause: types.CauseMissingRequiredField, wantDetail: "order_date"},
		{name: "missing status", row: row("OS6", "2025-01-08", ""), wantCause: types.CauseMissingRequiredField, wantDetail: "order_status"},
		{name: "presence checked before status", row: row(nil, "garbage", "X"), wantCause: types.CauseMissingRequiredField},

		{name: "invalid status", row: row("OS7", "2025-01-08", "X"), wantCause: types.CauseInvalidStatus, wantStatus: "X"},
		{name: "near miss status", row: row("OS8", "2025-01-08", "GG"), wantCause: types.CauseInvalidStatus, wantStatus: "GG"},
		{name: "status checked before date", row: row("OS9", "garbage", "X"), wantCause: types.CauseInvalidStatus},

		{name: "unparseable date", row: row("OS10", "2025-14-40", "G"), wantCause: types.CauseUnparseableDate, wantDetail: "2025-14-40"},
		{name: "year before range", row: row("OS11", "2018-12-31", "G"), wantCause: types.CauseYearOutOfRange},
		{name: "year after range", row: row("OS12", "2030-01-01", "G"), wantCause: types.CauseYearOutOfRange, wantDetail: "2030"},
		{name: "range boundaries accepted", row: row("OS13", "2019-01-01", "G"), wantStatus: "G"},

		{name: "within tolerance", row: row("OS14", "2025-04-30", "G"), wantStatus: "G"},
		{name: "beyond tolerance", row: row("OS15", "2025-05-01", "G"), wantCause: types.CauseImpossibleFutureDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.row)

			if tt.wantCause == "" {
				require.True(t, got.Accepted, "unexpected rejection: %+v", got.Rejection)
				assert.Nil(t, got.Rejection)
				assert.False(t, got.Date.IsZero())
			} else {
				require.False(t, got.Accepted)
				require.NotNil(t, got.Rejection)
				assert.Equal(t, tt.wantCause, got.Cause())
				assert.Equal(t, 2, got.Rejection.RowNumber)
				assert.Contains(t, got.Rejection.Detail, tt.wantDetail)
			}
			if tt.wantStatus != "" {
				assert.Equal(t, tt.wantStatus, got.Status)
			}
		})
	}
}

func TestValidator_FutureGuardUsesInjectedReference(t *testing.T) {
	r := row("OS1", "2025-12-01", "G")

	december := NewValidator(time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, december.Validate(r).Accepted)

	march := NewValidator(time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, types.CauseImpossibleFutureDate, march.Validate(r).Cause())

	// A later reference year disables the guard for 2025 dates.
	nextYear := NewValidator(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, nextYear.Validate(r).Accepted)
}

func TestValidator_ToleranceIsConfigurable(t *testing.T) {
	r := row("OS1", "2025-05-10", "G")

	strict := NewValidatorWithOptions(Options{ReferenceDate: reference, FutureToleranceMonths: 0})
	assert.Equal(t, types.CauseImpossibleFutureDate, strict.Validate(r).Cause())

	lenient := NewValidatorWithOptions(Options{ReferenceDate: reference, FutureToleranceMonths: 3})
	assert.True(t, lenient.Validate(r).Accepted)

	negative := NewValidatorWithOptions(Options{ReferenceDate: reference, FutureToleranceMonths: -2})
	assert.Equal(t, 0, negative.Options().FutureToleranceMonths)
}

func TestIsAllowedStatus(t *testing.T) {
	for _, s := range []string{" g ", "Go", "GU", "gu", "G"} {
		assert.True(t, IsAllowedStatus(s), s)
	}
	for _, s := range []string{"GG", "X", "", "G O"} {
		assert.False(t, IsAllowedStatus(s), s)
	}
}

func TestFormatRejections(t *testing.T) {
	assert.Equal(t, "No rejected rows.", FormatRejections(nil))

	out := FormatRejections([]types.RejectionEntry{
		{RowNumber: 3, OrderNumber: "OS1", Cause: types.CauseInvalidStatus, Detail: "bad"},
		{RowNumber: 4, Cause: types.CauseMissingRequiredField, Detail: "missing"},
	})
	assert.Contains(t, out, "Found 2 rejected row(s)")
	assert.Contains(t, out, "row 3 [invalid_status] order OS1: bad")
	assert.Contains(t, out, "row 4 [missing_required_field] order -: missing")
}
