// =============================================================================
// Warranty Orders - Batch Processor
// =============================================================================
//
// This module drives every row of a sheet through the pipeline:
//
//   raw row -> (blank? counted, skipped)
//           -> extractor.Extract
//           -> validation.Validate ---- rejected -> RejectionEntry
//           -> transform.Transform ---- accepted -> NormalizedRecord
//
// and accumulates the counters in an explicit Summary owned by the pass.
// Nothing is global. Rows keep their source order in both output slices.
//
// FAILURE TIERS:
//   - Batch-fatal: incomplete mapping, missing column, cancelled context,
//     inconsistent counts. Returned as errors; no partial result.
//   - Row-local: rejections. Never errors.
//
// =============================================================================

package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/ginjaninja78/warranty-orders/internal/extractor"
	"github.com/ginjaninja78/warranty-orders/internal/transform"
	"github.com/ginjaninja78/warranty-orders/internal/types"
	"github.com/ginjaninja78/warranty-orders/internal/validation"
)

// =============================================================================
// RESULT
// =============================================================================

// Result holds the three outputs of one pass.
type Result struct {
	Records    []types.NormalizedRecord
	Rejections []types.RejectionEntry
	Summary    *Summary
}

// ProgressFunc is called after each row with the rows done so far and the
// total row count of the sheet. It may be called from several goroutines
// when processing in parallel.
type ProgressFunc func(done, total int)

// =============================================================================
// PROCESSOR
// =============================================================================

// Processor runs the pipeline over sheets.
type Processor struct {
	mapping     types.FieldMapping
	validator   *validation.Validator
	transformer *transform.Transformer
	progress    ProgressFunc
}

// NewProcessor creates a processor.
//
// PARAMETERS:
//   - mapping: Logical field -> source column. Validated per sheet.
//   - validator: The row validator (carries the reference date).
func NewProcessor(mapping types.FieldMapping, validator *validation.Validator) *Processor {
	return &Processor{
		mapping:     mapping,
		validator:   validator,
		transformer: transform.NewTransformer(),
	}
}

// WithProgress registers a progress observer.
func (p *Processor) WithProgress(fn ProgressFunc) *Processor {
	p.progress = fn
	return p
}

// Process runs every row of the sheet sequentially.
//
// RETURNS:
//   - The result, or a batch-fatal error.
func (p *Processor) Process(ctx context.Context, sheet *types.Sheet) (*Result, error) {
	if err := extractor.ValidateMapping(sheet.Headers, p.mapping); err != nil {
		return nil, err
	}

	var done int
	res, err := p.processRows(ctx, sheet.Rows, func() {
		done++
		if p.progress != nil {
			p.progress(done, len(sheet.Rows))
		}
	})
	if err != nil {
		return nil, err
	}

	if err := res.Summary.Check(); err != nil {
		return nil, err
	}
	return res, nil
}

// ProcessParallel splits the rows into contiguous chunks, processes the
// chunks concurrently and merges them. The result is identical to Process.
//
// PARAMETERS:
//   - workers: Number of chunks. Values below 2 fall back to Process.
func (p *Processor) ProcessParallel(ctx context.Context, sheet *types.Sheet, workers int) (*Result, error) {
	if workers < 2 || len(sheet.Rows) < workers {
		return p.Process(ctx, sheet)
	}

	if err := extractor.ValidateMapping(sheet.Headers, p.mapping); err != nil {
		return nil, err
	}

	chunkSize := (len(sheet.Rows) + workers - 1) / workers
	chunks := make([]*Result, workers)
	errs := make([]error, workers)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	tick := func() {
		if p.progress == nil {
			return
		}
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		p.progress(n, len(sheet.Rows))
	}

	for i := 0; i < workers; i++ {
		start := i * chunkSize
		if start >= len(sheet.Rows) {
			chunks[i] = &Result{Summary: NewSummary()}
			continue
		}
		end := start + chunkSize
		if end > len(sheet.Rows) {
			end = len(sheet.Rows)
		}

		wg.Add(1)
		go func(idx int, rows []types.RawRow) {
			defer wg.Done()
			chunks[idx], errs[idx] = p.processRows(ctx, rows, tick)
		}(i, sheet.Rows[start:end])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	merged := &Result{Summary: NewSummary()}
	for _, c := range chunks {
		merged.Records = append(merged.Records, c.Records...)
		merged.Rejections = append(merged.Rejections, c.Rejections...)
		merged.Summary.Merge(c.Summary)
	}

	if err := merged.Summary.Check(); err != nil {
		return nil, err
	}
	return merged, nil
}

// processRows is the per-row loop shared by both entry points.
// The mapping must already be validated.
func (p *Processor) processRows(ctx context.Context, rows []types.RawRow, tick func()) (*Result, error) {
	res := &Result{Summary: NewSummary()}
	sum := res.Summary

	for _, raw := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch abandoned at row %d: %w", raw.Number, err)
		}

		if raw.IsBlank() {
			sum.BlankRows++
			tick()
			continue
		}

		sum.TotalRows++
		row := extractor.Extract(raw, p.mapping)
		outcome := p.validator.Validate(row)

		// Counted over every row with a status, before the whitelist.
		if outcome.Status != "" {
			sum.StatusDistribution[outcome.Status]++
		}

		if !outcome.Accepted {
			sum.Rejections[outcome.Cause()]++
			res.Rejections = append(res.Rejections, *outcome.Rejection)
			tick()
			continue
		}

		rec := p.transformer.Transform(row, outcome)
		sum.ValidRows++
		sum.YearDistribution[rec.OrderDate.Year()]++
		if rec.CalculationVerified {
			sum.VerifiedCalculations++
		}
		res.Records = append(res.Records, rec)
		tick()
	}

	return res, nil
}
