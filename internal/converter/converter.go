// =============================================================================
// Warranty Orders - Converter Module
// =============================================================================
//
// This module orchestrates the pipeline for a single input file, from reading
// the source to archiving it.
//
// PIPELINE:
//   1. Read the source (xlsx via excelize, csv via encoding/csv)
//   2. Run every row through the batch processor (extract, validate,
//      transform) against the configured reference date
//   3. Build the yearly analysis of the accepted records
//   4. Load the records into the store and verify the count (optional)
//   5. Write the reports (results JSON, processed CSV, rejections XLSX,
//      rejection log, XML export)
//   6. Archive the input file (optional)
//   7. Record the file in file_processing_logs (when a store is attached)
//
// CONCURRENCY:
//   A Converter processes one file. The CLI runs several converters at once;
//   they share only the Loader, whose store is safe for concurrent use.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ginjaninja78/warranty-orders/internal/analysis"
	"github.com/ginjaninja78/warranty-orders/internal/batch"
	"github.com/ginjaninja78/warranty-orders/internal/config"
	"github.com/ginjaninja78/warranty-orders/internal/csvparser"
	"github.com/ginjaninja78/warranty-orders/internal/logging"
	"github.com/ginjaninja78/warranty-orders/internal/report"
	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/internal/types"
	"github.com/ginjaninja78/warranty-orders/internal/validation"
	"github.com/ginjaninja78/warranty-orders/internal/xlsxparser"
	"github.com/ginjaninja78/warranty-orders/internal/xmlwriter"
	"github.com/ginjaninja78/warranty-orders/pkg/utils"
)

// ErrUnsupportedInput is returned for files that are neither xlsx nor csv.
var ErrUnsupportedInput = errors.New("unsupported input file type")

// Report kinds, used in output file names.
const (
	KindResults      = "results"
	KindProcessed    = "processed"
	KindRejections   = "rejections"
	KindRejectionLog = "rejection_log"
	KindXML          = "orders"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// RunID identifies this processing of the file.
	RunID string

	// SheetName is the worksheet that was read (empty for CSV).
	SheetName string

	// Outputs lists the report files written.
	Outputs []string

	// ArchivePath is where the input was moved, if archiving is enabled.
	ArchivePath string

	// Success indicates whether the file was processed end to end.
	// Rejected rows do not make a file unsuccessful.
	Success bool

	// Error contains the batch-fatal error, if any.
	Error error

	// Batch holds the records, rejections and summary of the pass.
	Batch *batch.Result

	// Yearly is the per-year analysis of the accepted records.
	Yearly []analysis.YearReport

	// Load and Verification are set when a store is attached.
	Load         *store.LoadResult
	Verification *store.Verification

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	TotalRows      int
	ValidRows      int
	RejectedRows   int
	BlankRows      int
	Inserted       int64
	ProcessingTime time.Duration
}

// Status maps the result to a file_processing_logs status.
func (r *Result) Status() string {
	switch {
	case !r.Success:
		return store.StatusFailed
	case r.Stats.RejectedRows > 0:
		return store.StatusCompletedWithErrors
	case r.Load != nil && r.Load.FailedBatches > 0:
		return store.StatusCompletedWithErrors
	default:
		return store.StatusCompleted
	}
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs the pipeline for one input file.
type Converter struct {
	inputPath string
	cfg       *config.MainConfig
	logger    *zap.Logger
	progress  batch.ProgressFunc
	loader    *store.Loader
	now       func() time.Time
	runID     string
	dryRun    bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) { c.logger = logging.OrNop(logger) }
}

// WithProgress registers a per-row progress observer.
func WithProgress(fn batch.ProgressFunc) Option {
	return func(c *Converter) { c.progress = fn }
}

// WithLoader attaches a store loader. Without one nothing is loaded.
func WithLoader(loader *store.Loader) Option {
	return func(c *Converter) { c.loader = loader }
}

// WithNow replaces the clock used for the reference date and timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(c *Converter) { c.runID = id }
}

// WithDryRun skips reports, loading and archiving.
func WithDryRun() Option {
	return func(c *Converter) { c.dryRun = true }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - inputPath: The xlsx or csv file to process.
//   - cfg: The application configuration.
//   - opts: Optional collaborators (logger, loader, progress, clock).
func New(inputPath string, cfg *config.MainConfig, opts ...Option) *Converter {
	c := &Converter{
		inputPath: inputPath,
		cfg:       cfg,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = uuid.New().String()
	}
	return c
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for the file.
//
// RETURNS:
//   - A Result describing the outcome. Errors are reported in Result.Error.
func (c *Converter) Run(ctx context.Context) *Result {
	start := c.now()
	result := &Result{FilePath: c.inputPath, RunID: c.runID}
	log := c.logger.With(zap.String("file", filepath.Base(c.inputPath)), zap.String("run_id", c.runID))

	log.Info("processing file")

	if err := c.run(ctx, result, log); err != nil {
		result.Error = err
		log.Error("file failed", zap.Error(err))
	} else {
		result.Success = true
	}
	result.Stats.ProcessingTime = c.now().Sub(start)

	if c.loader != nil && !c.dryRun {
		if err := c.logFile(ctx, result); err != nil {
			log.Warn("failed to record file processing log", zap.Error(err))
		}
	}

	if result.Success {
		log.Info("file processed",
			zap.Int("total_rows", result.Stats.TotalRows),
			zap.Int("valid_rows", result.Stats.ValidRows),
			zap.Int("rejected_rows", result.Stats.RejectedRows),
			zap.Duration("elapsed", result.Stats.ProcessingTime))
	}
	return result
}

func (c *Converter) run(ctx context.Context, result *Result, log *zap.Logger) error {
	// Step 1: read the source.
	sheet, err := ReadSource(c.inputPath, c.cfg)
	if err != nil {
		return err
	}
	result.SheetName = sheet.Name
	log.Debug("source read", zap.String("sheet", sheet.Name), zap.Int("rows", len(sheet.Rows)))

	// Step 2: validate and transform.
	res, err := c.ProcessSheet(ctx, sheet)
	if err != nil {
		return err
	}
	result.Batch = res
	result.Stats.TotalRows = res.Summary.TotalRows
	result.Stats.ValidRows = res.Summary.ValidRows
	result.Stats.RejectedRows = res.Summary.RejectedRows()
	result.Stats.BlankRows = res.Summary.BlankRows

	// Step 3: yearly analysis.
	result.Yearly = analysis.ByYear(res.Records)

	if c.dryRun {
		return nil
	}

	// Step 4: load and verify.
	if c.loader != nil {
		if err := c.load(ctx, result, log); err != nil {
			return err
		}
	}

	// Step 5: reports.
	outputs, err := c.writeReports(sheet, result)
	result.Outputs = outputs
	if err != nil {
		return err
	}

	// Step 6: archive.
	if c.cfg.Processing.ArchiveInputs {
		fm := utils.NewFileManager(c.cfg.InputDir, c.cfg.OutputDir, c.cfg.InputArchiveDir)
		archived, err := fm.ArchiveInputFile(c.inputPath)
		if err != nil {
			return fmt.Errorf("failed to archive input: %w", err)
		}
		result.ArchivePath = archived
		log.Debug("input archived", zap.String("archive", archived))
	}

	return nil
}

// ProcessSheet runs the batch processor over an already read sheet using
// the configured mapping, reference date and tolerance.
func (c *Converter) ProcessSheet(ctx context.Context, sheet *types.Sheet) (*batch.Result, error) {
	mapping, err := c.cfg.FieldMapping()
	if err != nil {
		return nil, err
	}
	reference, err := c.cfg.ReferenceDate(c.now())
	if err != nil {
		return nil, err
	}

	validator := validation.NewValidatorWithOptions(validation.Options{
		ReferenceDate:         reference,
		FutureToleranceMonths: c.cfg.FutureTolerance(),
	})
	processor := batch.NewProcessor(mapping, validator)
	if c.progress != nil {
		processor.WithProgress(c.progress)
	}

	return processor.ProcessParallel(ctx, sheet, c.cfg.Processing.Workers)
}

// ReadSource reads an input file into a sheet, choosing the reader by
// extension.
func ReadSource(path string, cfg *config.MainConfig) (*types.Sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return xlsxparser.ReadWorkbook(path, cfg.Source.SheetName)
	case ".csv":
		return csvparser.Parse(path, cfg.Source.CSV)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, filepath.Base(path))
	}
}

// ReadSourceFrom reads an uploaded stream. name supplies the extension and
// the sheet's Source.
func ReadSourceFrom(r io.Reader, name string, cfg *config.MainConfig) (*types.Sheet, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return xlsxparser.ReadWorkbookFrom(r, name, cfg.Source.SheetName)
	case ".csv":
		return csvparser.ParseReader(r, name, cfg.Source.CSV)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, filepath.Base(name))
	}
}

// =============================================================================
// LOADING
// =============================================================================

func (c *Converter) load(ctx context.Context, result *Result, log *zap.Logger) error {
	loaded, err := c.loader.Load(ctx, result.Batch.Records)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}
	result.Load = loaded
	result.Stats.Inserted = loaded.Inserted

	verification, err := c.loader.Verify(ctx, loaded)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	result.Verification = verification

	if !verification.Match {
		log.Warn("stored order count does not match the load",
			zap.Int64("expected", verification.ExpectedCount),
			zap.Int64("actual", verification.ActualCount),
			zap.Int("failed_batches", loaded.FailedBatches))
	}
	return nil
}

func (c *Converter) logFile(ctx context.Context, result *Result) error {
	details := map[string]any{}
	if result.Batch != nil {
		for cause, n := range result.Batch.Summary.Rejections {
			if n > 0 {
				details[string(cause)] = n
			}
		}
	}
	if result.Load != nil && len(result.Load.Errors) > 0 {
		details["load_errors"] = result.Load.Errors
	}
	if result.Error != nil {
		details["error"] = result.Error.Error()
	}

	return c.loader.LogFile(ctx, store.FileLog{
		RunID:        result.RunID,
		FileName:     filepath.Base(result.FilePath),
		ProcessedAt:  c.now(),
		TotalRows:    result.Stats.TotalRows,
		ValidRows:    result.Stats.ValidRows,
		RejectedRows: result.Stats.RejectedRows,
		InsertedRows: result.Stats.Inserted,
		Status:       result.Status(),
		ErrorDetails: details,
	})
}

// =============================================================================
// REPORTS
// =============================================================================

func (c *Converter) writeReports(sheet *types.Sheet, result *Result) ([]string, error) {
	out := c.cfg.Output
	res := result.Batch
	original := utils.BaseName(c.inputPath)

	outputPath := func(kind, ext string) string {
		name := utils.GenerateOutputFileName(out.NameFormat,
			map[string]string{"original": original, "kind": kind}, ext)
		return filepath.Join(c.cfg.OutputDir, name)
	}

	var written []string

	if out.ResultsJSON {
		path := outputPath(KindResults, ".json")
		doc := &report.Results{
			RunID:       result.RunID,
			SourceFile:  filepath.Base(c.inputPath),
			SheetName:   sheet.Name,
			ProcessedAt: c.now(),
			Summary:     res.Summary,
			ValidRate:   res.Summary.ValidRate(),
			Rejections:  res.Rejections,
			Yearly:      result.Yearly,
			Load:        c.loadSection(result),
		}
		if err := report.WriteResultsJSON(path, doc); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if out.ProcessedCSV {
		path := outputPath(KindProcessed, ".csv")
		if err := report.WriteProcessedCSV(path, res.Records); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if len(res.Rejections) > 0 {
		if out.RejectionsXLSX {
			path := outputPath(KindRejections, ".xlsx")
			if err := report.WriteRejectionsWorkbook(path, res.Rejections); err != nil {
				return written, err
			}
			written = append(written, path)
		}
		if out.RejectionLog {
			path := outputPath(KindRejectionLog, ".txt")
			if err := utils.WriteRejectionLog(path, filepath.Base(c.inputPath), res.Rejections); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}

	if out.XMLExport {
		path := outputPath(KindXML, ".xml")
		opts := xmlwriter.DefaultGenerateOptions()
		opts.Source = filepath.Base(c.inputPath)
		if err := xmlwriter.WriteFile(path, res.Records, opts); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}

func (c *Converter) loadSection(result *Result) *report.LoadSection {
	if result.Load == nil {
		return nil
	}
	section := &report.LoadSection{
		Driver:        c.cfg.Store.Driver,
		Inserted:      result.Load.Inserted,
		FailedBatches: result.Load.FailedBatches,
	}
	if v := result.Verification; v != nil {
		section.ExpectedCount = v.ExpectedCount
		section.ActualCount = v.ActualCount
		section.Verified = v.Match
	}
	return section
}
