package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"bcstcp/internal/logger"
	"bcstcp/pkg/connection"
)

var (
	waitMax      int
	waitInterval time.Duration
)

var waitCmd = &cobra.Command{
	Use:   "wait-scan",
	Short: "Poll RunningScan until the current scan finishes",
	Long: `wait-scan polls RunningScan until the reply contains "None". It exits
with an error when the iteration budget runs out first. A budget below 1
means 1000000.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("max") {
			cfg.MaxIterations = waitMax
		}
		if cmd.Flags().Changed("interval") {
			cfg.PollInterval = waitInterval
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		conn, err := openConnection(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		budget := connection.EffectiveMaxIterations(cfg.MaxIterations)
		logger.Debug().Int("budget", budget).Dur("interval", cfg.PollInterval).Msg("waiting for scan")

		start := time.Now()
		done, err := conn.WaitForScan(ctx, budget)
		if err != nil {
			return err
		}
		if !done {
			logger.Warn().Int("budget", budget).Bool("finished", done).Msg("giving up on scan")
			return fmt.Errorf("scan still running after %d polls", budget)
		}

		logger.Info().Dur("elapsed", time.Since(start)).Msg("scan finished")
		fmt.Fprintln(cmd.OutOrStdout(), "scan finished")
		return nil
	},
}

func init() {
	waitCmd.Flags().IntVar(&waitMax, "max", connection.DefaultMaxIterations, "maximum number of polls")
	waitCmd.Flags().DurationVar(&waitInterval, "interval", connection.DefaultPollInterval, "pause between polls")

	rootCmd.AddCommand(waitCmd)
}
