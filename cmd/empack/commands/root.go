package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/empack/empack/pkg/config"
	"github.com/empack/empack/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "empack",
		Short: "empack - energy-system datapackage builder",
		Long: `empack turns declarative scenario blueprints into tabular datapackages
and merges external override data into packages already on disk.

Features:
  - Component-type definitions validated via CUE
  - Region fan-out and sequence foreign-key synthesis
  - Frictionless-style datapackage rendering
  - WIDE, LONG and ROWWISE override merging`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newComponentsCommand())

	return rootCmd
}

// runtime bundles the loaded settings with the telemetry stack the
// subcommands share.
type runtime struct {
	settings config.Settings
	log      *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
}

func newRuntime() (*runtime, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := settings.Telemetry.Logging
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err := telemetry.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("setting up logging: %w", err)
	}

	metrics, err := telemetry.NewMetrics(settings.Telemetry.Metrics)
	if err != nil {
		return nil, fmt.Errorf("setting up metrics: %w", err)
	}

	tracer, err := telemetry.NewTracer(settings.Telemetry.Tracing,
		settings.Telemetry.ServiceName, settings.Telemetry.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	return &runtime{settings: settings, log: logger, metrics: metrics, tracer: tracer}, nil
}

func (r *runtime) shutdown(ctx context.Context) {
	if err := r.tracer.Shutdown(ctx); err != nil {
		r.log.WithError(err).Warn("trace exporter shutdown failed")
	}
}
