package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/campusdata/enrich-cli/internal/cache"
	"github.com/campusdata/enrich-cli/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the enrichment field cache",
}

// -- cache invalidate --

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop cached values for a university or a field",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		uniFlag, _ := cmd.Flags().GetString("university")
		fieldFlag, _ := cmd.Flags().GetString("field")
		if (uniFlag == "") == (fieldFlag == "") {
			return eris.New("exactly one of --university or --field is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		fc := cache.New(st)

		if uniFlag != "" {
			id, err := strconv.ParseInt(uniFlag, 10, 64)
			if err != nil {
				return eris.Errorf("invalid university id %q", uniFlag)
			}
			n, err := fc.InvalidateUniversity(ctx, id)
			if err != nil {
				return eris.Wrap(err, "cache invalidate")
			}
			fmt.Printf("Dropped %d cached values for university %d\n", n, id)
			return nil
		}

		f := model.Field(fieldFlag)
		if _, known := model.MetaFor(f); !known {
			return eris.Errorf("unknown field %q", fieldFlag)
		}
		n, err := fc.InvalidateField(ctx, f)
		if err != nil {
			return eris.Wrap(err, "cache invalidate")
		}
		fmt.Printf("Dropped %d cached values for field %s\n", n, f)
		return nil
	},
}

// -- cache purge --

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
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

		n, err := cache.New(st).PurgeExpired(ctx)
		if err != nil {
			return eris.Wrap(err, "cache purge")
		}
		fmt.Printf("Purged %d expired cache entries\n", n)
		return nil
	},
}

func init() {
	cacheInvalidateCmd.Flags().String("university", "", "university id whose cached values to drop")
	cacheInvalidateCmd.Flags().String("field", "", "field name whose cached values to drop across all universities")

	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
