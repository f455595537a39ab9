package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/warranty-orders/internal/extractor"
	"github.com/ginjaninja78/warranty-orders/internal/types"
	"github.com/ginjaninja78/warranty-orders/internal/validation"
)

var reference = time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)

func headers() []string {
	m := types.DefaultFieldMapping()
	out := make([]string, 0, len(types.LogicalFields))
	for _, f := range types.LogicalFields {
		out = append(out, m[f])
	}
	return out
}

type rowSpec struct {
	order, date, status any
	parts, labor, grand any
}

func buildSheet(specs ...rowSpec) *types.Sheet {
	m := types.DefaultFieldMapping()
	sheet := &types.Sheet{Source: "test.xlsx", Name: "Tabela", Headers: headers()}
	for i, s := range specs {
		sheet.Rows = append(sheet.Rows, types.RawRow{
			Number: i + 2,
			Values: map[string]any{
				m[types.FieldOrderNumber]: s.order,
				m[types.FieldOrderDate]:   s.date,
				m[types.FieldOrderStatus]: s.status,
				m[types.FieldPartsTotal]:  s.parts,
				m[types.FieldLaborTotal]:  s.labor,
				m[types.FieldGrandTotal]:  s.grand,
			},
		})
	}
	return sheet
}

func newProcessor() *Processor {
	return NewProcessor(types.DefaultFieldMapping(), validation.NewValidator(reference))
}

func TestProcessor_EndToEndScenarios(t *testing.T) {
	sheet := buildSheet(
		rowSpec{order: "OS100", date: "2025-01-08", status: "g", parts: 200, labor: 50, grand: 150},
		rowSpec{order: "OS101", date: "2025-01-08", status: "X", parts: 10, labor: 10, grand: 10},
		rowSpec{order: "OS102", date: "2025-14-40", status: "G"},
		rowSpec{order: "OS103", date: "2030-06-01", status: "GU"},
	)

	res, err := newProcessor().Process(context.Background(), sheet)
	require.NoError(t, err)

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "OS100", rec.OrderNumber)
	assert.True(t, decimal.NewFromInt(100).Equal(rec.PartsTotal))
	assert.True(t, rec.CalculationVerified)

	require.Len(t, res.Rejections, 3)
	assert.Equal(t, types.CauseInvalidStatus, res.Rejections[0].Cause)
	assert.Equal(t, "OS101", res.Rejections[0].OrderNumber)
	assert.Equal(t, types.CauseUnparseableDate, res.Rejections[1].Cause)
	assert.Equal(t, types.CauseYearOutOfRange, res.Rejections[2].Cause)

	sum := res.Summary
	assert.Equal(t, 4, sum.TotalRows)
	assert.Equal(t, 1, sum.ValidRows)
	assert.Equal(t, 1, sum.Rejections[types.CauseInvalidStatus])
	assert.Equal(t, 1, sum.Rejections[types.CauseUnparseableDate])
	assert.Equal(t, 1, sum.Rejections[types.CauseYearOutOfRange])
	assert.Equal(t, 0, sum.Rejections[types.CauseImpossibleFutureDate])
	assert.Equal(t, map[int]int{2025: 1}, sum.YearDistribution)
	assert.Equal(t, 1, sum.VerifiedCalculations)
	assert.NoError(t, sum.Check())
}

func TestProcessor_StatusDistributionCoversAllRowsWithStatus(t *testing.T) {
	sheet := buildSheet(
		rowSpec{order: "A", date: "2024-01-01", status: " g "},
		rowSpec{order: "B", date: "2024-01-01", status: "GG"},
		rowSpec{order: nil, date: "2024-01-01", status: "go"},
		rowSpec{order: "D", date: "bad", status: "G"},
		rowSpec{order: "E", date: "2024-01-01", status: ""},
	)

	res, err := newProcessor().Process(context.Background(), sheet)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"G": 2, "GG": 1, "GO": 1}, res.Summary.StatusDistribution)
	assert.Equal(t, []string{"G", "GG", "GO"}, res.Summary.Statuses())
	assert.Equal(t, map[int]int{2024: 1}, res.Summary.YearDistribution, "years count accepted rows only")
}

func TestProcessor_BlankRowsAreCountedSeparately(t *testing.T) {
	sheet := buildSheet(
		rowSpec{order: "A", date: "2024-01-01", status: "G"},
		rowSpec{},
		rowSpec{order: "  ", date: "", status: " "},
		rowSpec{order: "B", date: "2024-01-02", status: "G"},
	)

	res, err := newProcessor().Process(context.Background(), sheet)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Summary.BlankRows)
	assert.Equal(t, 2, res.Summary.TotalRows)
	assert.Equal(t, 2, res.Summary.ValidRows)
	assert.Equal(t, 0, res.Summary.RejectedRows())
}

func TestProcessor_PreservesSourceOrder(t *testing.T) {
	var specs []rowSpec
	for i := 0; i < 20; i++ {
		status := "G"
		if i%3 == 0 {
			status = "Z"
		}
		specs = append(specs, rowSpec{order: fmt.Sprintf("OS%02d", i), date: "2024-02-10", status: status})
	}

	res, err := newProcessor().Process(context.Background(), buildSheet(specs...))
	require.NoError(t, err)

	for i := 1; i < len(res.Records); i++ {
		assert.Less(t, res.Records[i-1].SourceRow, res.Records[i].SourceRow)
	}
	for i := 1; i < len(res.Rejections); i++ {
		assert.Less(t, res.Rejections[i-1].RowNumber, res.Rejections[i].RowNumber)
	}
}

func TestProcessor_MissingColumnIsBatchFatal(t *testing.T) {
	sheet := buildSheet(rowSpec{order: "A", date: "2024-01-01", status: "G"})
	sheet.Headers = sheet.Headers[1:]

	res, err := newProcessor().Process(context.Background(), sheet)
	require.ErrorIs(t, err, extractor.ErrMissingColumn)
	assert.Nil(t, res)
}

func TestProcessor_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newProcessor().Process(ctx, buildSheet(rowSpec{order: "A", date: "2024-01-01", status: "G"}))
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestProcessor_Progress(t *testing.T) {
	var calls []int
	p := newProcessor().WithProgress(func(done, total int) {
		assert.Equal(t, 3, total)
		calls = append(calls, done)
	})

	_, err := p.Process(context.Background(), buildSheet(
		rowSpec{order: "A", date: "2024-01-01", status: "G"},
		rowSpec{},
		rowSpec{order: "C", date: "2024-01-01", status: "X"},
	))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestProcessor_ParallelMatchesSequential(t *testing.T) {
	statuses := []string{"G", "go", "GU", "X", ""}
	dates := []any{"2024-05-06", 45292.0, "25/12/2024", "2031-01-01", "nope", "2025-12-01"}

	var specs []rowSpec
	for i := 0; i < 103; i++ {
		specs = append(specs, rowSpec{
			order:  fmt.Sprintf("OS%03d", i),
			date:   dates[i%len(dates)],
			status: statuses[i%len(statuses)],
			parts:  fmt.Sprintf("%d,00", i*2),
			labor:  i,
			grand:  i * 2,
		})
	}
	sheet := buildSheet(specs...)

	seq, err := newProcessor().Process(context.Background(), sheet)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			par, err := newProcessor().ProcessParallel(context.Background(), sheet, workers)
			require.NoError(t, err)

			assert.Equal(t, seq.Summary, par.Summary)
			assert.Equal(t, seq.Rejections, par.Rejections)
			require.Len(t, par.Records, len(seq.Records))
			for i := range seq.Records {
				assert.Equal(t, seq.Records[i].OrderNumber, par.Records[i].OrderNumber)
			}
		})
	}
}

func TestSummary_MergeAndCheck(t *testing.T) {
	a := NewSummary()
	a.TotalRows, a.ValidRows = 3, 2
	a.Rejections[types.CauseInvalidStatus] = 1
	a.StatusDistribution["G"] = 2
	a.YearDistribution[2024] = 2

	b := NewSummary()
	b.TotalRows, b.ValidRows, b.BlankRows = 2, 1, 4
	b.Rejections[types.CauseUnparseableDate] = 1
	b.StatusDistribution["G"] = 1
	b.YearDistribution[2025] = 1

	ab := NewSummary()
	ab.Merge(a)
	ab.Merge(b)
	ba := NewSummary()
	ba.Merge(b)
	ba.Merge(a)

	assert.Equal(t, ab, ba, "merge is commutative")
	assert.Equal(t, 5, ab.TotalRows)
	assert.Equal(t, 4, ab.BlankRows)
	assert.Equal(t, 3, ab.StatusDistribution["G"])
	assert.Equal(t, []int{2024, 2025}, ab.Years())
	assert.NoError(t, ab.Check())
	assert.InDelta(t, 60.0, ab.ValidRate(), 0.001)

	ab.TotalRows++
	assert.ErrorIs(t, ab.Check(), ErrInconsistentCounts)

	bad := NewSummary()
	bad.Rejections["made_up"] = 0
	assert.ErrorIs(t, bad.Check(), ErrInconsistentCounts)
}
