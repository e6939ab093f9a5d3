package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "etl ingests program, crosswalk and wage data for ROI rankings.",
	Long: `etl harvests institutions and programs from the education catalog, loads the
CIP to SOC crosswalk, and fetches occupational wages per state. Every stage is
idempotent and safe to re-run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json, pretty or auto (overrides LOG_FORMAT)")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		kind := etlerr.KindOf(err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if kind != etlerr.KindInternal {
			fmt.Fprintf(os.Stderr, "       %s\n", etlerr.Describe(kind))
		}
		return etlerr.ExitCode(err)
	}
	return 0
}
