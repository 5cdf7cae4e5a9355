package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replayLimit int

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay dead-lettered candidate URLs",
	Long:  "Re-runs due dead letter queue entries through the single-product path. Recovered and definitively rejected entries retire; transient failures re-queue with backoff.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "scrape")
		if err != nil {
			return err
		}
		defer env.Close()

		outcome, err := env.Pipeline.ReplayDLQ(ctx, replayLimit)
		if err != nil {
			return eris.Wrap(err, "replay dlq")
		}

		zap.L().Info("replay complete",
			zap.Int("replayed", outcome.Replayed),
			zap.Int("recovered", outcome.Recovered),
			zap.Int("rejected", outcome.Rejected),
			zap.Int("requeued", outcome.Requeued),
			zap.Int("dropped", outcome.Dropped),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	},
}

func init() {
	replayCmd.Flags().IntVar(&replayLimit, "limit", 50, "max number of dead letters to replay")
	rootCmd.AddCommand(replayCmd)
}
