package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/perfwatch/analyzer/pkg/api"
	"github.com/perfwatch/analyzer/pkg/config"
	"github.com/perfwatch/analyzer/pkg/engine"
	"github.com/perfwatch/analyzer/pkg/monitoring"
	"github.com/perfwatch/analyzer/pkg/optimizer"
	"github.com/perfwatch/analyzer/pkg/storage"
)

var (
	// Global flags
	configFile string
	logLevel   string
	logFormat  string
	httpAddr   string
	autoOpt    bool

	// Build info (set by build system)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "perf-analyzerd",
		Short: "Adaptive performance analysis daemon",
		Long: `perf-analyzerd runs the adaptive performance analysis engine: it
ingests metric samples, scores subsystem health, detects bottlenecks,
generates ranked remediation recommendations, runs calibration
benchmarks and can execute low-risk optimizations automatically.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE:    runDaemon,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "f", "", "log format (json, console)")
	rootCmd.PersistentFlags().StringVar(&httpAddr, "http", "", "listen address for the read-only HTTP API")
	rootCmd.PersistentFlags().BoolVar(&autoOpt, "auto-optimize", false, "enable automatic execution of low-risk recommendations")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if httpAddr != "" {
		cfg.HTTP.Address = httpAddr
	}
	if autoOpt {
		cfg.Optimization.AutoOptimization = true
	}

	logger, err := setupLogging(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("build_date", date).
		Msg("Starting performance analyzer daemon")

	if err := cfg.CreateDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := cfg.ApplyThresholdOverrides(); err != nil {
		return fmt.Errorf("failed to apply threshold overrides: %w", err)
	}

	tracing, err := monitoring.SetupTracing(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to setup tracing: %w", err)
	}
	defer func() {
		if err := tracing.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("Tracing shutdown failed")
		}
	}()

	opts := engine.Options{Registry: optimizer.NewRegistry()}

	if cfg.Storage.DatabasePath != "" {
		archive, err := storage.NewArchive(cfg.Storage.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer archive.Close()
		opts.Archive = archive
	}

	for _, path := range cfg.Optimization.PlaybookPaths {
		pb, err := optimizer.LoadPlaybook(path)
		if err != nil {
			return fmt.Errorf("failed to load playbook %s: %w", path, err)
		}
		pb.RegisterSteps(opts.Registry)
	}

	eng := engine.New(cfg, opts)
	if err := eng.Restore(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("State restore failed, starting fresh")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.Start(ctx)

	errCh := make(chan error, 1)
	var httpServer *api.Server
	if cfg.HTTP.Address != "" {
		httpServer = api.NewServer(eng, cfg.HTTP.Address)
		go func() {
			errCh <- httpServer.Start()
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP shutdown failed")
		}
	}

	eng.Shutdown(context.Background())
	logger.Info().Msg("Daemon shutdown complete")
	return nil
}

func setupLogging(cfg config.LoggingConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output *os.File
	if cfg.OutputFile != "" {
		logDir := filepath.Dir(cfg.OutputFile)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
	} else {
		output = os.Stderr
	}

	var logger zerolog.Logger
	switch cfg.Format {
	case "console":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	default:
		logger = zerolog.New(output).With().Timestamp().Logger()
	}
	return logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "perf-analyzerd %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "perf-analyzerd.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.DefaultConfig().SaveConfig(path); err != nil {
				return err
			}
			fmt.Printf("Wrote default configuration to %s\n", path)
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("Configuration is valid")
			return nil
		},
	}

	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(validateCmd)
	return configCmd
}
