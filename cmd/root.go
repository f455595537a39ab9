// =============================================================================
// Warranty Orders - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (warranty)
//   ├── processCmd  (warranty process)
//   ├── validateCmd (warranty validate)
//   ├── migrateCmd  (warranty migrate)
//   ├── verifyCmd   (warranty verify)
//   ├── serveCmd    (warranty serve)
//   └── versionCmd  (warranty version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Reads the YAML configuration (config.yaml unless --config is given;
//      a missing default file means built-in defaults)
//   2. Lays flags and WARRANTY_* environment variables over it via viper
//   3. Builds the zap logger
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ginjaninja78/warranty-orders/internal/config"
	"github.com/ginjaninja78/warranty-orders/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// defaultConfigFile is read when --config is not given.
const defaultConfigFile = "config.yaml"

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// appConfig and logger are set by initConfig before any subcommand runs.
var (
	appConfig *config.MainConfig
	logger    = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "warranty",
	Short: "Warranty Orders - Validate and normalize service-order spreadsheets",
	Long: `Warranty Orders reads service-order exports (xlsx or csv) from a dealer
management system, validates every row against the business rules, normalizes
dates and money, and writes the accepted orders to reports and, optionally,
to a relational store.

Key Features:
  - Status whitelist, date normalization and year range checks
  - Parts halving and totals reconciliation with exact decimals
  - Per-file reports (JSON, CSV, XLSX, XML) and rejection logs
  - PostgreSQL or SQLite loading with count verification
  - HTTP upload API

Example Usage:
  warranty process                      # Process all files in the input directory
  warranty process --file orders.xlsx   # Process a single file
  warranty validate orders.xlsx         # Dry run, print the summary only
  warranty serve                        # Start the upload API`,

	PersistentPreRunE: initConfig,

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync(logger)
	},

	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
// This is called by main.main().
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the main configuration file (default is config.yaml)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)

	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig loads the configuration and builds the logger.
func initConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	viper.SetEnvPrefix("WARRANTY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.ApplyOverrides(viper.GetViper()); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	l, err := logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	appConfig = cfg
	logger = l
	return nil
}

// loadConfig reads --config, or config.yaml when present. Only a missing
// default file falls back to built-in defaults.
func loadConfig() (*config.MainConfig, error) {
	path := cfgFile
	if path == "" {
		path = defaultConfigFile
	}

	cfg, err := config.LoadMainConfig(path)
	if err == nil {
		return cfg, nil
	}
	if cfgFile == "" && errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	return nil, fmt.Errorf("failed to load main config: %w", err)
}
