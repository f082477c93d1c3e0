package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/campusdata/enrich-cli/internal/monitoring"
	"github.com/campusdata/enrich-cli/internal/queue"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a system health snapshot",
	Long:  "Prints job counts, catalog completeness, cache counters, and per-source circuit breaker states as JSON.",
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

		collector := monitoring.NewCollector(st, q, stack.cache, stack.breakers)
		snap, err := collector.Collect(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
