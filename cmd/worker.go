package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/queue"
	"github.com/campusdata/enrich-cli/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the enrichment job worker",
	Long:  "Drains the job queue, enriching each job's institutions concurrently. With --continuous the worker polls for new jobs instead of exiting when the queue is empty.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stack, err := initEnrichmentStack(st)
		if err != nil {
			return err
		}

		q, err := queue.New(ctx, st)
		if err != nil {
			return err
		}

		continuous, _ := cmd.Flags().GetBool("continuous")
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		if pollInterval <= 0 {
			pollInterval = time.Duration(cfg.Worker.PollIntervalSecs) * time.Second
		}

		w := worker.New(st, q, stack.orchestrator, pollInterval)
		zap.L().Info("worker starting",
			zap.Bool("continuous", continuous),
			zap.Duration("poll_interval", pollInterval))

		if err := w.Run(ctx, continuous); err != nil {
			return eris.Wrap(err, "worker run")
		}
		zap.L().Info("worker stopped")
		return nil
	},
}

func init() {
	workerCmd.Flags().Bool("continuous", false, "keep polling for new jobs instead of exiting when the queue drains")
	workerCmd.Flags().Duration("poll-interval", 0, "how often to poll for new jobs in continuous mode (default from config)")
	rootCmd.AddCommand(workerCmd)
}
