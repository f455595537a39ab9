// Package analysis builds per-year breakdowns of accepted service orders.
package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

const (
	topManufacturers = 5
	samplesPerYear   = 3
)

// NameCount is one entry of a ranked distribution.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Financials sums the monetary figures of a year.
type Financials struct {
	PartsTotal      decimal.Decimal `json:"parts_total"`
	LaborTotal      decimal.Decimal `json:"labor_total"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	AveragePerOrder decimal.Decimal `json:"average_per_order"`
}

// YearReport describes the accepted orders of one calendar year.
type YearReport struct {
	Year              int                      `json:"year"`
	OrderCount        int                      `json:"order_count"`
	MonthDistribution map[int]int              `json:"month_distribution"`
	FirstDate         time.Time                `json:"first_date"`
	LastDate          time.Time                `json:"last_date"`
	WithDefect        int                      `json:"with_defect_description"`
	DefectRate        float64                  `json:"defect_description_rate"`
	Financials        Financials               `json:"financials"`
	Statuses          map[string]int           `json:"status_distribution"`
	TopManufacturers  []NameCount              `json:"top_manufacturers"`
	Samples           []types.NormalizedRecord `json:"samples"`
}

// ByYear groups records by order year and returns one report per year,
// sorted by year. Samples are the first records of each year in input order.
func ByYear(records []types.NormalizedRecord) []YearReport {
	byYear := make(map[int]*YearReport)
	manufacturers := make(map[int]map[string]int)

	for _, rec := range records {
		year := rec.OrderDate.Year()
		rep, ok := byYear[year]
		if !ok {
			rep = &YearReport{
				Year:              year,
				MonthDistribution: make(map[int]int),
				Statuses:          make(map[string]int),
				FirstDate:         rec.OrderDate,
				LastDate:          rec.OrderDate,
			}
			byYear[year] = rep
			manufacturers[year] = make(map[string]int)
		}

		rep.OrderCount++
		rep.MonthDistribution[int(rec.OrderDate.Month())]++
		rep.Statuses[rec.Status]++
		if rec.OrderDate.Before(rep.FirstDate) {
			rep.FirstDate = rec.OrderDate
		}
		if rec.OrderDate.After(rep.LastDate) {
			rep.LastDate = rec.OrderDate
		}
		if rec.DefectDescription != nil {
			rep.WithDefect++
		}
		if rec.EngineManufacturer != nil {
			manufacturers[year][strings.ToUpper(*rec.EngineManufacturer)]++
		}

		rep.Financials.PartsTotal = rep.Financials.PartsTotal.Add(rec.PartsTotal)
		rep.Financials.LaborTotal = rep.Financials.LaborTotal.Add(rec.LaborTotal)
		rep.Financials.GrandTotal = rep.Financials.GrandTotal.Add(rec.GrandTotal)

		if len(rep.Samples) < samplesPerYear {
			rep.Samples = append(rep.Samples, rec)
		}
	}

	out := make([]YearReport, 0, len(byYear))
	for year, rep := range byYear {
		rep.DefectRate = float64(rep.WithDefect) * 100 / float64(rep.OrderCount)
		rep.Financials.AveragePerOrder = rep.Financials.GrandTotal.
			Div(decimal.NewFromInt(int64(rep.OrderCount))).
			Round(2)
		rep.TopManufacturers = rank(manufacturers[year], topManufacturers)
		out = append(out, *rep)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// rank orders counts descending, ties by name, keeping at most n entries.
func rank(counts map[string]int, n int) []NameCount {
	ranked := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		ranked = append(ranked, NameCount{Name: name, Count: c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
