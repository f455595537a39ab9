package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

func strPtr(s string) *string { return &s }

func record(order string, date time.Time, status, manufacturer string, grand int64, defect bool) types.NormalizedRecord {
	rec := types.NormalizedRecord{
		OrderNumber: order,
		OrderDate:   date,
		Status:      status,
		PartsTotal:  decimal.NewFromInt(grand / 2),
		LaborTotal:  decimal.NewFromInt(grand / 2),
		GrandTotal:  decimal.NewFromInt(grand),
	}
	if manufacturer != "" {
		rec.EngineManufacturer = strPtr(manufacturer)
	}
	if defect {
		rec.DefectDescription = strPtr("ruído no motor")
	}
	return rec
}

func TestByYear(t *testing.T) {
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

	records := []types.NormalizedRecord{
		record("A", d(2024, time.March, 10), "G", "MWM", 100, true),
		record("B", d(2024, time.January, 5), "GO", "mwm", 200, false),
		record("C", d(2024, time.March, 20), "G", "Cummins", 300, true),
		record("D", d(2024, time.December, 1), "GU", "", 401, false),
		record("E", d(2023, time.July, 7), "G", "Perkins", 50, false),
	}

	reports := ByYear(records)
	require.Len(t, reports, 2)

	assert.Equal(t, 2023, reports[0].Year)
	y := reports[1]
	assert.Equal(t, 2024, y.Year)
	assert.Equal(t, 4, y.OrderCount)
	assert.Equal(t, map[int]int{1: 1, 3: 2, 12: 1}, y.MonthDistribution)
	assert.Equal(t, d(2024, time.January, 5), y.FirstDate)
	assert.Equal(t, d(2024, time.December, 1), y.LastDate)
	assert.Equal(t, 2, y.WithDefect)
	assert.InDelta(t, 50.0, y.DefectRate, 0.001)
	assert.Equal(t, map[string]int{"G": 2, "GO": 1, "GU": 1}, y.Statuses)

	assert.True(t, decimal.NewFromInt(1001).Equal(y.Financials.GrandTotal))
	assert.Equal(t, "250.25", y.Financials.AveragePerOrder.StringFixed(2))

	assert.Equal(t, []NameCount{{Name: "MWM", Count: 2}, {Name: "CUMMINS", Count: 1}}, y.TopManufacturers)

	require.Len(t, y.Samples, 3)
	assert.Equal(t, "A", y.Samples[0].OrderNumber)
	assert.Equal(t, "C", y.Samples[2].OrderNumber)
}

func TestByYear_TopManufacturersCapped(t *testing.T) {
	var records []types.NormalizedRecord
	for i := 0; i < 8; i++ {
		for j := 0; j <= i; j++ {
			records = append(records, record(fmt.Sprintf("%d-%d", i, j),
				time.Date(2022, time.June, 1, 0, 0, 0, 0, time.UTC), "G", fmt.Sprintf("M%d", i), 10, false))
		}
	}

	reports := ByYear(records)
	require.Len(t, reports, 1)
	top := reports[0].TopManufacturers
	require.Len(t, top, 5)
	assert.Equal(t, "M7", top[0].Name)
	assert.Equal(t, 8, top[0].Count)
	assert.Equal(t, "M3", top[4].Name)
}

func TestByYear_Empty(t *testing.T) {
	assert.Empty(t, ByYear(nil))
}
