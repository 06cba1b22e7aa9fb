package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-cost-reports/internal/common"
)

var (
	noColor  bool
	logLevel string
)

// errRunFailed is returned when a run could not list its source.
var errRunFailed = errors.New("run failed")

var rootCmd = &cobra.Command{
	Use:   "cost-reports",
	Short: "Extract cost reports from PDF documents",
	Long: `cost-reports lists PDFs in Google Drive (or a local directory), sends new
ones to a language model for cost extraction, and stores one JSON report
plus an HTML page per document.

Configuration comes from the environment (and .env), optionally layered
over the YAML file named by CONFIG_FILE.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError("%v", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if errors.Is(err, common.ErrMissingCredentials) {
		return 2
	}
	return 1
}

// loadConfig reads configuration and installs the JSON logger on stderr so
// stdout stays free for command output.
func loadConfig() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger := common.NewLogger(os.Stderr, cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
