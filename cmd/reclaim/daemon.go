package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fenilsonani/reclaim/internal/app"
	"github.com/fenilsonani/reclaim/internal/daemon"
	"github.com/fenilsonani/reclaim/internal/logging"
)

var testConfig bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled trash sweeps and growth monitoring",
	Long: `Runs in the foreground until interrupted. The daemon sweeps expired trash
hourly, prunes old growth history daily and, when monitoring is enabled,
scans periodically and logs an alert for categories about to fill the disk.

Logs go to logging.file; --verbose mirrors them to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.ResolvePaths(); err != nil {
			return err
		}

		level := cfg.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logger, err := logging.NewFile(cfg.Logging.File, level)
		if err != nil {
			return fmt.Errorf("failed to open daemon log: %w", err)
		}
		if verbose {
			console, err := logging.New(level, logging.FormatConsole)
			if err != nil {
				return err
			}
			logger = zap.New(zapcore.NewTee(logger.Core(), console.Core()))
		}
		defer logger.Sync() //nolint:errcheck

		engine, err := app.New(cmd.Context(), app.Options{
			Config:    cfg,
			Ephemeral: ephemeral,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer engine.Close()

		d, err := engine.Daemon(daemon.NewLogNotifier(logger), logger)
		if err != nil {
			return fmt.Errorf("error creating daemon: %w", err)
		}

		if testConfig {
			fmt.Println("Configuration is valid")
			fmt.Printf("Lock file: %s\n", engine.LockPath())
			fmt.Printf("Log file: %s\n", cfg.Logging.File)
			fmt.Println("Jobs:")
			for _, job := range d.Jobs() {
				fmt.Printf("  - %s: %s\n", job.Name, job.Schedule)
			}
			return nil
		}

		fmt.Printf("Starting reclaim daemon (log: %s)\n", cfg.Logging.File)
		return d.Run(cmd.Context())
	},
}

func init() {
	daemonCmd.Flags().BoolVar(&testConfig, "test-config", false, "validate configuration, list jobs and exit")
}
