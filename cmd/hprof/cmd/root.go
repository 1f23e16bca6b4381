// Package cmd implements the hprof command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/SagenKoder/hprof-parser/pkg/config"
	"github.com/SagenKoder/hprof-parser/pkg/telemetry"
	"github.com/SagenKoder/hprof-parser/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string

	logger            utils.Logger
	cfg               *config.Config
	telemetryShutdown telemetry.ShutdownFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hprof",
	Short: "A streaming decoder for Java HPROF heap dumps",
	Long: `hprof decodes Java HPROF heap dumps in a single forward pass.

Records can be written to a relational database (SQLite, PostgreSQL or
MySQL) or printed one per line. Dumps may be read from the local
filesystem or Tencent COS, and gzip or zstd compressed dumps are
decompressed on the fly.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		logLevel := utils.ParseLogLevel(cfg.Log.Level)
		if verbose {
			logLevel = utils.LevelDebug
		}
		if cfg.Log.OutputPath != "" {
			fileLogger, err := utils.NewFileLogger(logLevel, cfg.Log.OutputPath)
			if err != nil {
				return fmt.Errorf("failed to open log file: %w", err)
			}
			logger = fileLogger
		} else {
			// stdout carries printed records
			logger = utils.NewDefaultLogger(logLevel, os.Stderr)
		}

		shutdown, err := telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("Failed to initialize telemetry: %v", err)
			shutdown = nil
		}
		telemetryShutdown = shutdown
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if telemetryShutdown != nil {
			if err := telemetryShutdown(context.Background()); err != nil {
				logger.Warn("Failed to flush telemetry: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	binName := BinName()
	rootCmd.Example = `  # Decode a heap dump into the configured database
  ` + binName + ` decode -i ./heap.hprof

  # Decode a compressed dump into a specific SQLite file
  ` + binName + ` decode -i ./heap.hprof.gz --db ./heap.db

  # Print every record of a dump stored in COS
  ` + binName + ` print --storage cos --key dumps/heap.hprof -c ./config.yaml

  # Print records as JSON lines into a gzip file
  ` + binName + ` print -i ./heap.hprof --format json -o records.jsonl.gz`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	if logger == nil {
		return &utils.NullLogger{}
	}
	return logger
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	if cfg == nil {
		return config.Default()
	}
	return cfg
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
