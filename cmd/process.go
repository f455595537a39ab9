// =============================================================================
// Warranty Orders - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command of the tool. It
// runs the pipeline over every input file.
//
// COMMAND USAGE:
//   warranty process [flags]
//
// FLAGS:
//   --file         : Process only this file instead of scanning input_dir
//   --dry-run      : Validate without writing reports, loading or archiving
//   --no-progress  : Do not draw progress bars
//
// PROCESSING PIPELINE:
//   1. Discover *.xlsx and *.csv files in the input directory
//   2. Open the store when a driver is configured
//   3. For each file (concurrently, up to max_concurrency):
//      a. Read the sheet
//      b. Validate and transform every row
//      c. Load the accepted orders and verify the count
//      d. Write the reports
//      e. Archive the input
//   4. Print a summary per file and write the processing summary log
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/warranty-orders/internal/batch"
	"github.com/ginjaninja78/warranty-orders/internal/config"
	"github.com/ginjaninja78/warranty-orders/internal/converter"
	"github.com/ginjaninja78/warranty-orders/internal/report"
	"github.com/ginjaninja78/warranty-orders/internal/store"
	"github.com/ginjaninja78/warranty-orders/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// filePath is a single file to process instead of scanning input_dir.
var filePath string

// dryRun validates without writing outputs.
var dryRun bool

// noProgress disables progress bars.
var noProgress bool

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate, normalize and load service-order spreadsheets",
	Long: `The process command scans the input directory for xlsx and csv exports
and runs every row through validation and normalization.

Files are processed concurrently. Each file is independent, and an error in
one file does not affect the others unless continue_on_error is false.

On successful processing:
  - Reports are written to the output directory
  - Accepted orders are loaded when a store is configured
  - The input is moved to the input archive (archive_inputs)

On error:
  - The error is reported in the processing summary
  - The input remains in the input directory`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(
		&filePath,
		"file",
		"",
		"Path to a specific file to process",
	)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Validate without writing reports, loading or archiving",
	)

	processCmd.Flags().BoolVar(
		&noProgress,
		"no-progress",
		false,
		"Do not draw progress bars",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	cfg := appConfig
	startTime := time.Now()
	runID := uuid.New().String()
	log := logger.With(zap.String("run", runID))

	// =========================================================================
	// STEP 1: DISCOVER INPUT FILES
	// =========================================================================

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir)

	inputFiles := []string{filePath}
	if filePath == "" {
		var err error
		inputFiles, err = fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Printf("No xlsx or csv files found in %s\n", cfg.InputDir)
		return nil
	}

	log.Info("files discovered", zap.Int("count", len(inputFiles)))

	// =========================================================================
	// STEP 2: OPEN THE STORE
	// =========================================================================

	var loader *store.Loader
	if !dryRun {
		// clear_existing empties the table once per run, never between files.
		perFileClear := cfg.Store.ClearExisting && len(inputFiles) == 1

		var closeStore func()
		var err error
		loader, closeStore, err = openLoader(ctx, cfg, log, perFileClear)
		if err != nil {
			return err
		}
		defer closeStore()

		if loader != nil && cfg.Store.ClearExisting && !perFileClear {
			if err := loader.Store().Clear(ctx); err != nil {
				return fmt.Errorf("failed to clear existing orders: %w", err)
			}
			log.Info("existing orders cleared")
		}
	}

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	results := processFiles(ctx, cfg, inputFiles, runID, loader, log)

	// =========================================================================
	// STEP 4: SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{
		RunID:      runID,
		StartTime:  startTime,
		TotalFiles: len(inputFiles),
	}

	fmt.Println()
	for _, result := range results {
		name := filepath.Base(result.FilePath)
		if !result.Success {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
				InputFile:    name,
				ErrorMessage: result.Error.Error(),
			})
			fmt.Printf("  ✗ %s: %v\n", name, result.Error)
			continue
		}

		summary.SuccessfulFiles++
		summary.TotalRows += result.Stats.TotalRows
		summary.ValidRows += result.Stats.ValidRows
		summary.RejectedRows += result.Stats.RejectedRows
		summary.InsertedRows += result.Stats.Inserted
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:    name,
			Outputs:      result.Outputs,
			ArchivePath:  result.ArchivePath,
			TotalRows:    result.Stats.TotalRows,
			ValidRows:    result.Stats.ValidRows,
			RejectedRows: result.Stats.RejectedRows,
			ProcessTime:  result.Stats.ProcessingTime,
		})

		fmt.Printf("  ✓ %s\n", name)
		if err := report.RenderSummary(os.Stdout, name, result.Batch.Summary); err != nil {
			return err
		}
		if v := result.Verification; v != nil && !v.Match {
			fmt.Printf("  ! stored orders: expected %d, found %d\n", v.ExpectedCount, v.ActualCount)
		}
	}
	summary.EndTime = time.Now()

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", summary.FailedFiles)
	fmt.Printf("Rows:            %d (valid %d, rejected %d)\n", summary.TotalRows, summary.ValidRows, summary.RejectedRows)
	if loader != nil {
		fmt.Printf("Loaded:          %d\n", summary.InsertedRows)
	}
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))

	if !dryRun {
		path, err := utils.WriteSummaryLog(summary, cfg.OutputDir)
		if err != nil {
			log.Warn("failed to write summary log", zap.Error(err))
		} else {
			fmt.Printf("Summary log:     %s\n", path)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// processFiles runs one converter per file, at most max_concurrency at a
// time, and returns the results sorted by file path. When continue_on_error
// is false the first failure cancels the files still running or waiting.
func processFiles(ctx context.Context, cfg *config.MainConfig, files []string, runID string, loader *store.Loader, log *zap.Logger) []*converter.Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	concurrency := min(cfg.Processing.MaxConcurrency, len(files))
	sequential := concurrency <= 1
	showProgress := !noProgress

	var fileBar func()
	if showProgress && !sequential {
		bar := newProgressBar(os.Stderr, len(files), "[cyan][bold]Processing files...[reset]")
		var mu sync.Mutex
		fileBar = func() {
			mu.Lock()
			defer mu.Unlock()
			_ = bar.Add(1)
		}
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, max(concurrency, 1))
	results := make(chan *converter.Result, len(files))

	for _, file := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results <- &converter.Result{FilePath: path, Error: fmt.Errorf("skipped: %w", err)}
				return
			}

			opts := []converter.Option{
				converter.WithLogger(log),
				converter.WithRunID(runID),
				converter.WithLoader(loader),
			}
			if dryRun {
				opts = append(opts, converter.WithDryRun())
			}

			finish := func() {}
			if showProgress && sequential {
				var progress batch.ProgressFunc
				progress, finish = rowProgress(os.Stderr, fmt.Sprintf("[cyan]%s[reset]", filepath.Base(path)))
				opts = append(opts, converter.WithProgress(progress))
			}

			result := converter.New(path, cfg, opts...).Run(ctx)
			finish()
			if fileBar != nil {
				fileBar()
			}

			if !result.Success && !cfg.ContinueOnError() {
				cancel()
			}
			results <- result
		}(file)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var collected []*converter.Result
	for result := range results {
		collected = append(collected, result)
	}
	sort.Slice(collected, func(i, j int) bool {
		return collected[i].FilePath < collected[j].FilePath
	})
	return collected
}
