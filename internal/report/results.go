// =============================================================================
// Warranty Orders - Report Writers
// =============================================================================
//
// This package writes the per-file artifacts of a processing run:
//
//   | Kind        | Format | Content                                        |
//   |-------------|--------|------------------------------------------------|
//   | results     | JSON   | run id, summary, rejections, yearly analysis   |
//   | processed   | CSV    | normalized records (backup of what was loaded) |
//   | rejections  | XLSX   | one row per rejected source row                |
//
// The console summary (RenderSummary) is also here.
//
// =============================================================================

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ginjaninja78/warranty-orders/internal/analysis"
	"github.com/ginjaninja78/warranty-orders/internal/batch"
	"github.com/ginjaninja78/warranty-orders/internal/types"
)

// Results is the document written to the results JSON file.
type Results struct {
	RunID       string                 `json:"run_id"`
	SourceFile  string                 `json:"source_file"`
	SheetName   string                 `json:"sheet_name,omitempty"`
	ProcessedAt time.Time              `json:"processed_at"`
	Summary     *batch.Summary         `json:"summary"`
	ValidRate   float64                `json:"valid_rate"`
	Rejections  []types.RejectionEntry `json:"rejections"`
	Yearly      []analysis.YearReport  `json:"yearly_analysis"`
	Load        *LoadSection           `json:"load,omitempty"`
}

// LoadSection describes the database load of the accepted records.
type LoadSection struct {
	Driver        string `json:"driver"`
	Inserted      int64  `json:"inserted"`
	FailedBatches int    `json:"failed_batches"`
	ExpectedCount int64  `json:"expected_count"`
	ActualCount   int64  `json:"actual_count"`
	Verified      bool   `json:"verified"`
}

// WriteResultsJSON writes results as indented JSON.
//
// PARAMETERS:
//   - path: The destination file.
//   - results: The run results. Nil slices are written as empty arrays.
func WriteResultsJSON(path string, results *Results) error {
	if results.Rejections == nil {
		results.Rejections = []types.RejectionEntry{}
	}
	if results.Yearly == nil {
		results.Yearly = []analysis.YearReport{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	return nil
}
