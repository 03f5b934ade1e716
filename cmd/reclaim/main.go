package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fenilsonani/reclaim/internal/app"
	"github.com/fenilsonani/reclaim/internal/config"
	"github.com/fenilsonani/reclaim/internal/logging"
)

var (
	Version   = "0.5.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	verbose    bool
	logLevel   string
	ephemeral  bool
	outputFmt  string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Safe, reversible disk space recovery",
	Long: `Reclaim finds caches, orphaned packages, stale logs, broken symlinks and
duplicate files, then removes what you select through a recoverable trash.

Every path is checked against a protected-path policy before it is listed
and again immediately before it is touched.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep trash ledger and history in memory")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(growthCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(daemonCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}

	cfgPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}

	return config.Load(cfgPath)
}

// cliLogger keeps interactive commands quiet unless asked otherwise.
func cliLogger(cfg *config.Config) (*zap.Logger, error) {
	level := "warn"
	switch {
	case logLevel != "":
		level = logLevel
	case verbose:
		level = "debug"
	}
	return logging.New(level, cfg.Logging.Format)
}

// openEngine loads the configuration and builds an engine with the CLI logger.
func openEngine(cmd *cobra.Command) (*app.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := cliLogger(cfg)
	if err != nil {
		return nil, err
	}
	engine, err := app.New(cmd.Context(), app.Options{
		Config:    cfg,
		Ephemeral: ephemeral,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return engine, nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s (y/N): ", prompt)
	line, _ := bufio.NewReader(in).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
