// Package main implements plan_agent, the command line front end for
// training-plan completion audits.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/plan-auditor/internal/config"
	"github.com/jonathan/plan-auditor/internal/observability"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand shares once the root command has run.
type app struct {
	configPath string
	verbose    bool
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "plan_agent",
		Short: "Training plan completion auditor",
		Long: `plan_agent decodes the 培养方案完成情况 page of the Tsinghua registrar,
reports credit completion per course group and category, and ranks what is
left to take.

Settings come from --config (YAML or JSON), PLAN_* environment variables and
a .env file, in increasing priority; flags override all of them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML or JSON config file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Print boxed summaries and debug logs")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newAnalyzeCmd(a),
		newFetchCmd(a),
		newRunCmd(a),
		newExportCmd(a),
		newCrawlReviewsCmd(a),
		newServeCmd(a),
		newValidateCmd(a),
	)
	return root
}

// setup loads configuration, applies global flags and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = a.verbose
	}
	switch {
	case a.logLevel != "":
		cfg.Log.Level = a.logLevel
	case cfg.Verbose:
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := observability.NewLogger(observability.LogOptions{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}
