package batch

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// ErrInconsistentCounts signals that total rows differ from valid rows plus
// rejections. It means the validator dropped or double counted a row.
var ErrInconsistentCounts = errors.New("inconsistent batch counts")

// Summary aggregates the outcome of one batch (or one chunk of a batch).
// Summaries combine by addition, so chunk summaries can be merged in any
// order.
type Summary struct {
	// TotalRows counts every non-blank row that entered validation.
	TotalRows int `json:"total_rows"`

	// ValidRows counts accepted rows.
	ValidRows int `json:"valid_rows"`

	// BlankRows counts fully blank rows dropped before validation.
	// They are outside the TotalRows invariant.
	BlankRows int `json:"blank_rows"`

	// Rejections counts rejected rows per cause.
	Rejections map[types.Cause]int `json:"rejections"`

	// StatusDistribution counts normalized status values over every row
	// with a non-blank status, before whitelist filtering.
	StatusDistribution map[string]int `json:"status_distribution"`

	// YearDistribution counts accepted rows per order year.
	YearDistribution map[int]int `json:"year_distribution"`

	// VerifiedCalculations counts accepted rows whose totals reconcile.
	VerifiedCalculations int `json:"verified_calculations"`
}

// NewSummary returns an empty summary with every cause present.
func NewSummary() *Summary {
	s := &Summary{
		Rejections:         make(map[types.Cause]int, len(types.Causes)),
		StatusDistribution: make(map[string]int),
		YearDistribution:   make(map[int]int),
	}
	for _, c := range types.Causes {
		s.Rejections[c] = 0
	}
	return s
}

// RejectedRows is the sum of all rejection counts.
func (s *Summary) RejectedRows() int {
	total := 0
	for _, n := range s.Rejections {
		total += n
	}
	return total
}

// Merge adds other into s.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}
	s.TotalRows += other.TotalRows
	s.ValidRows += other.ValidRows
	s.BlankRows += other.BlankRows
	s.VerifiedCalculations += other.VerifiedCalculations
	for k, v := range other.Rejections {
		s.Rejections[k] += v
	}
	for k, v := range other.StatusDistribution {
		s.StatusDistribution[k] += v
	}
	for k, v := range other.YearDistribution {
		s.YearDistribution[k] += v
	}
}

// Check verifies total == valid + Σ rejections and that every cause is known.
func (s *Summary) Check() error {
	for cause := range s.Rejections {
		if !cause.Valid() {
			return fmt.Errorf("%w: unknown rejection cause %q", ErrInconsistentCounts, cause)
		}
	}
	if rejected := s.RejectedRows(); s.TotalRows != s.ValidRows+rejected {
		return fmt.Errorf("%w: total %d != valid %d + rejected %d",
			ErrInconsistentCounts, s.TotalRows, s.ValidRows, rejected)
	}
	return nil
}

// ValidRate is the share of accepted rows, in percent.
func (s *Summary) ValidRate() float64 {
	if s.TotalRows == 0 {
		return 0
	}
	return float64(s.ValidRows) * 100 / float64(s.TotalRows)
}

// Years returns the years of the distribution in ascending order.
func (s *Summary) Years() []int {
	years := make([]int, 0, len(s.YearDistribution))
	for y := range s.YearDistribution {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Statuses returns the distribution keys ordered by count (desc), then name.
func (s *Summary) Statuses() []string {
	keys := make([]string, 0, len(s.StatusDistribution))
	for k := range s.StatusDistribution {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := s.StatusDistribution[keys[i]], s.StatusDistribution[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	return keys
}
