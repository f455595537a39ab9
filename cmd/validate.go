package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/warranty-orders/internal/converter"
	"github.com/ginjaninja78/warranty-orders/internal/report"
	"github.com/ginjaninja78/warranty-orders/internal/validation"
	"github.com/ginjaninja78/warranty-orders/pkg/utils"
)

// showRejections prints every rejected row after the summary.
var showRejections bool

// validateCmd runs the pipeline without side effects.
var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate input files without writing outputs",
	Long: `Validate runs every row of the given files (or of every file in the input
directory) through validation and prints the summary. Nothing is written,
loaded or archived.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		files := args
		if len(files) == 0 {
			fm := utils.NewFileManager(appConfig.InputDir, appConfig.OutputDir, appConfig.InputArchiveDir)
			var err error
			if files, err = fm.DiscoverInputFiles(); err != nil {
				return err
			}
		}
		if len(files) == 0 {
			fmt.Printf("No xlsx or csv files found in %s\n", appConfig.InputDir)
			return nil
		}

		var failed int
		for _, path := range files {
			name := filepath.Base(path)
			result := converter.New(path, appConfig,
				converter.WithDryRun(),
				converter.WithLogger(logger),
			).Run(cmd.Context())

			if !result.Success {
				failed++
				fmt.Printf("  ✗ %s: %v\n", name, result.Error)
				continue
			}

			if err := report.RenderSummary(os.Stdout, name, result.Batch.Summary); err != nil {
				return err
			}
			if showRejections {
				fmt.Println(validation.FormatRejections(result.Batch.Rejections))
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) could not be validated", failed, len(files))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&showRejections, "show-rejections", false, "Print every rejected row")
}
