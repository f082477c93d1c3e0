package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/campusdata/enrich-cli/internal/model"
	"github.com/campusdata/enrich-cli/internal/queue"
	"github.com/campusdata/enrich-cli/internal/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage enrichment jobs",
	Long:  "Commands for creating, inspecting, cancelling, and cleaning up enrichment jobs.",
}

// -- jobs create --

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new enrichment job",
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

		q, err := queue.New(ctx, st)
		if err != nil {
			return err
		}

		idsFlag, _ := cmd.Flags().GetString("ids")
		limit, _ := cmd.Flags().GetInt("limit")
		concurrent, _ := cmd.Flags().GetInt("max-concurrent")
		if concurrent == 0 {
			concurrent = cfg.Worker.MaxConcurrent
		}

		ids, err := parseIDList(idsFlag)
		if err != nil {
			return err
		}

		job, err := q.CreateJob(ctx, queue.CreateOptions{
			UniversityIDs: ids,
			Limit:         limit,
			MaxConcurrent: concurrent,
		})
		if err != nil {
			return eris.Wrap(err, "jobs create")
		}

		fmt.Printf("Created job %s (%d universities, max concurrent %d)\n",
			job.ID, len(ids), job.MaxConcurrent)
		return nil
	},
}

// -- jobs show --

var jobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show full details of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		job, err := st.GetJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

// -- jobs list --

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrichment jobs",
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

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		jobs, err := st.ListJobs(ctx, store.JobFilter{
			Status: model.JobStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "jobs list")
		}

		if len(jobs) == 0 {
			fmt.Fprintln(os.Stderr, "No jobs found.")
			return nil
		}

		formatJobsList(os.Stdout, jobs)
		return nil
	},
}

// -- jobs cancel --

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		q, err := queue.New(ctx, st)
		if err != nil {
			return err
		}

		job, err := q.CancelJob(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "jobs cancel")
		}

		fmt.Printf("Cancelled job %s\n", job.ID)
		return nil
	},
}

// -- jobs stats --

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
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

		q, err := queue.New(ctx, st)
		if err != nil {
			return err
		}

		stats, err := q.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "jobs stats")
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, s := range []model.JobStatus{
			model.JobStatusPending,
			model.JobStatusRunning,
			model.JobStatusCompleted,
			model.JobStatusFailed,
			model.JobStatusCancelled,
		} {
			_, _ = fmt.Fprintf(w, "%s:\t%d\n", s, stats.ByStatus[s])
		}
		_, _ = fmt.Fprintf(w, "Queue depth:\t%d\n", stats.QueueDepth)
		return w.Flush()
	},
}

// -- jobs cleanup --

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old finished jobs",
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

		q, err := queue.New(ctx, st)
		if err != nil {
			return err
		}

		retention, _ := cmd.Flags().GetDuration("retention")
		if retention <= 0 {
			retention = time.Duration(cfg.Jobs.RetentionDays) * 24 * time.Hour
		}

		n, err := q.CleanupOldJobs(ctx, retention)
		if err != nil {
			return eris.Wrap(err, "jobs cleanup")
		}

		zap.L().Info("cleanup complete", zap.Int("deleted", n))
		fmt.Printf("Deleted %d jobs older than %s\n", n, retention)
		return nil
	},
}

func init() {
	jobsCreateCmd.Flags().String("ids", "", "comma-separated university IDs (empty = most incomplete records)")
	jobsCreateCmd.Flags().Int("limit", 50, "max universities when no explicit IDs are given")
	jobsCreateCmd.Flags().Int("max-concurrent", 0, "concurrent enrichments within the job (default from config)")

	jobsListCmd.Flags().String("status", "", "filter by job status (pending, running, completed, failed, cancelled)")
	jobsListCmd.Flags().Int("limit", 50, "max number of jobs to display")

	jobsCleanupCmd.Flags().Duration("retention", 0, "age past which finished jobs are deleted (default from config)")

	jobsCmd.AddCommand(jobsCreateCmd)
	jobsCmd.AddCommand(jobsShowCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsStatsCmd)
	jobsCmd.AddCommand(jobsCleanupCmd)
	rootCmd.AddCommand(jobsCmd)
}

// parseIDList splits a comma-separated id list into int64s.
func parseIDList(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, eris.Errorf("invalid university id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// formatJobsList writes a tabular list of jobs to w.
func formatJobsList(out io.Writer, jobs []model.EnrichmentJob) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tPROGRESS\tUPDATED\tFIELDS\tERRORS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t--------\t-------\t------\t------\t-------")

	for _, j := range jobs {
		progress := fmt.Sprintf("%d/%d", j.Processed, j.TotalUniversities)
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			truncateID(j.ID),
			j.Status,
			progress,
			j.SuccessfulUpdates,
			j.TotalFieldsFilled,
			j.ErrorsCount,
			j.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
