package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	structured := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	tests := []struct {
		name   string
		input  any
		want   time.Time
		wantOK bool
	}{
		{name: "structured time returned unchanged", input: structured, want: structured, wantOK: true},
		{name: "pointer to time", input: &structured, want: structured, wantOK: true},
		{name: "nil", input: nil, wantOK: false},
		{name: "nil pointer", input: (*time.Time)(nil), wantOK: false},

		{name: "serial 1", input: 1.0, want: day(1899, time.December, 31), wantOK: true},
		{name: "serial int", input: 2, want: day(1900, time.January, 1), wantOK: true},
		{name: "serial 45678", input: 45678.0, want: day(2025, time.January, 21), wantOK: true},
		{name: "serial upper bound", input: 50000, want: SerialEpoch.AddDate(0, 0, 50000), wantOK: true},
		{name: "serial with time fraction", input: 45678.5, want: day(2025, time.January, 21).Add(12 * time.Hour), wantOK: true},
		{name: "zero is not a serial", input: 0.0, wantOK: false},
		{name: "negative number", input: -5, wantOK: false},
		{name: "compact number falls back to generic parse", input: 20250108, want: day(2025, time.January, 8), wantOK: true},

		{name: "iso date", input: "2025-01-08", want: day(2025, time.January, 8), wantOK: true},
		{name: "iso with time", input: "2025-01-08 00:00:00", want: day(2025, time.January, 8), wantOK: true},
		{name: "iso with T time", input: "2025-02-12T10:15:00", want: time.Date(2025, time.February, 12, 10, 15, 0, 0, time.UTC), wantOK: true},
		{name: "iso single digit month and day", input: "2025-2-3", want: day(2025, time.February, 3), wantOK: true},
		{name: "iso is never day first", input: "2024-05-06", want: day(2024, time.May, 6), wantOK: true},
		{name: "iso padded with spaces", input: "  2024-12-25  ", want: day(2024, time.December, 25), wantOK: true},
		{name: "iso impossible month", input: "2025-14-40", wantOK: false},
		{name: "iso impossible day", input: "2025-02-30", wantOK: false},

		{name: "day first slash", input: "25/12/2024", want: day(2024, time.December, 25), wantOK: true},
		{name: "day first ambiguous", input: "08/01/2025", want: day(2025, time.January, 8), wantOK: true},
		{name: "day first dash", input: "10-02-2025", want: day(2025, time.February, 10), wantOK: true},
		{name: "day first dot", input: "03.04.2023", want: day(2023, time.April, 3), wantOK: true},
		{name: "day first two digit year", input: "25/12/24", want: day(2024, time.December, 25), wantOK: true},
		{name: "day first with time", input: "01/02/2022 08:30", want: time.Date(2022, time.February, 1, 8, 30, 0, 0, time.UTC), wantOK: true},
		{name: "month first falls through to generic parse", input: "12/25/2024", want: day(2024, time.December, 25), wantOK: true},

		{name: "textual month", input: "Jan 8, 2025", want: day(2025, time.January, 8), wantOK: true},
		{name: "empty string", input: "", wantOK: false},
		{name: "blank string", input: "   ", wantOK: false},
		{name: "garbage", input: "not a date", wantOK: false},
		{name: "unsupported type", input: true, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.input)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNormalize_ISORoundTrip(t *testing.T) {
	start := day(2019, time.January, 1)
	end := day(2025, time.December, 31)

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		got, ok := Normalize(d.Format("2006-01-02"))
		require.True(t, ok, "failed to parse %s", d.Format("2006-01-02"))
		require.Equal(t, d.Year(), got.Year())
		require.Equal(t, d.Month(), got.Month())
		require.Equal(t, d.Day(), got.Day())
	}
}

func TestFromSerial(t *testing.T) {
	assert.Equal(t, day(1899, time.December, 31), FromSerial(1))
	assert.Equal(t, 2025, FromSerial(45678).Year())
	assert.Equal(t, day(2024, time.January, 1), FromSerial(45292))
}

func TestIsISO(t *testing.T) {
	assert.True(t, IsISO("2025-01-08"))
	assert.True(t, IsISO("2025-1-8 10:00"))
	assert.False(t, IsISO("08-01-2025"))
	assert.False(t, IsISO("25/12/2024"))
}
