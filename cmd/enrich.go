package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/campusdata/enrich-cli/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <university-id>",
	Short: "Enrich a single institution synchronously",
	Long:  "Runs one enrichment pass for the given institution without going through the job queue. Useful for spot checks and debugging source behavior.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid university id %q", args[0])
		}

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

		u, err := st.GetUniversity(ctx, id)
		if err != nil {
			return eris.Wrapf(err, "enrich %d", id)
		}

		missing := u.MissingFields()
		if len(missing) == 0 {
			fmt.Printf("%s: all fields populated, nothing to do\n", u.Name)
			return nil
		}
		fmt.Printf("Enriching %s (%d missing fields)\n", u.Name, len(missing))

		filled, n, err := stack.orchestrator.Enrich(ctx, u)
		if err != nil {
			return eris.Wrapf(err, "enrich %d", id)
		}
		if n == 0 {
			fmt.Println("No fields could be filled.")
			return nil
		}

		fields := make([]model.Field, 0, len(filled))
		for f := range filled {
			fields = append(fields, f)
		}
		sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
		for _, f := range fields {
			fmt.Printf("  %s = %v\n", f, filled[f])
		}
		fmt.Printf("Filled %d of %d missing fields\n", n, len(missing))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
