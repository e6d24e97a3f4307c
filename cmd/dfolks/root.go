package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dfolks/internal/catalog"
	"dfolks/internal/component"
	"dfolks/internal/config"
	"dfolks/internal/infrastructure"
	"dfolks/internal/registry"
	"dfolks/internal/resolver"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           config.AppName,
	Short:         "Config-driven tabular ingestion.",
	Long:          "Resolve, validate and run ingestion and extraction pipelines described in YAML.",
	Version:       config.AppVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", config.AppName, err)
		os.Exit(1)
	}
}

// app holds everything a subcommand needs once configuration is loaded
type app struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	providers *infrastructure.OTelProviders
	registry  *registry.Registry
	resolver  *resolver.Resolver
}

// setup loads configuration and wires logging, telemetry and the component registry
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(getString(cmd, "config"))
	if err != nil {
		return nil, err
	}
	if level := getString(cmd, "log-level"); level != "" {
		cfg.Logging.Level = level
	}

	paths, err := config.GetPaths(cfg)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	paths.LogPathResolution()

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, err
	}
	metrics, err := infrastructure.CreatePipelineMetrics(providers.Meter)
	if err != nil {
		logger.Warn("pipeline metrics disabled", slog.String("error", err.Error()))
		metrics = infrastructure.NoopPipelineMetrics()
	}

	reg, err := catalog.NewRegistry(registry.Options{AllowOverwrite: cfg.Registry.AllowOverwrite})
	if err != nil {
		return nil, err
	}

	rt := &component.Runtime{
		Logger:      logger,
		HiveRoot:    paths.HiveRoot,
		ProjectRoot: paths.ProjectRoot,
		Tracer:      providers.Tracer,
		Metrics:     metrics,
	}

	return &app{
		cfg:       cfg,
		paths:     paths,
		logger:    logger,
		providers: providers,
		registry:  reg,
		resolver:  resolver.New(reg, rt),
	}, nil
}

// close flushes telemetry and closes the process log file
func (a *app) close(ctx context.Context) {
	if err := a.providers.ExportMetrics(ctx); err != nil {
		a.logger.WarnContext(ctx, "metrics export failed", slog.String("error", err.Error()))
	}
	if err := a.providers.Shutdown(ctx); err != nil {
		a.logger.WarnContext(ctx, "telemetry shutdown failed", slog.String("error", err.Error()))
	}
	if err := infrastructure.CloseLogger(); err != nil {
		a.logger.WarnContext(ctx, "log file close failed", slog.String("error", err.Error()))
	}
}

// resolveFile reads a pipeline file and resolves it into a component
func (a *app) resolveFile(ctx context.Context, path string) (component.Component, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("no pipeline file given, use -f")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline: %w", err)
	}
	return a.resolver.Resolve(ctx, data)
}

// getString reads a local or inherited string flag
func getString(cmd *cobra.Command, name string) string {
	value, err := cmd.Flags().GetString(name)
	if err != nil {
		return ""
	}
	return value
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "configuration file (defaults to dfolks.yaml or configs/dfolks.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override the configured log level (debug, info, warn, error)")
}
