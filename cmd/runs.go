package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect scrape run history",
	Long:  "Commands for listing, viewing, and querying scrape runs and the skip ledger.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scrape runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		roaster, _ := cmd.Flags().GetString("roaster")
		site, _ := cmd.Flags().GetString("site")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.RunFilter{
			Status:    model.RunStatus(status),
			RoasterID: roaster,
			SiteURL:   site,
			Limit:     limit,
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs rejections --

var runsRejectionsCmd = &cobra.Command{
	Use:   "rejections",
	Short: "List skip-ledger entries",
	Long:  "Shows candidates rejected by validation, with the stage and reasons that sank them.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		roaster, _ := cmd.Flags().GetString("roaster")
		stage, _ := cmd.Flags().GetString("stage")
		limit, _ := cmd.Flags().GetInt("limit")

		rejections, err := st.ListRejections(ctx, store.RejectionFilter{
			RoasterID: roaster,
			Stage:     stage,
			Limit:     limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs rejections")
		}

		if len(rejections) == 0 {
			fmt.Fprintln(os.Stderr, "No rejections found.")
			return nil
		}

		formatRejections(os.Stdout, rejections)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (queued, running, complete, failed)")
	runsListCmd.Flags().String("roaster", "", "filter by roaster ID")
	runsListCmd.Flags().String("site", "", "filter by site URL")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsRejectionsCmd.Flags().String("roaster", "", "filter by roaster ID")
	runsRejectionsCmd.Flags().String("stage", "", "filter by validation stage (phase1, phase2)")
	runsRejectionsCmd.Flags().Int("limit", 50, "max number of entries to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsRejectionsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.ScrapeRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSITE\tSTATUS\tPATH\tACCEPTED\tREJECTED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t----\t--------\t--------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		site := r.Site.URL
		if r.Site.Name != "" {
			site = r.Site.Name
		}
		if len(site) > 30 {
			site = site[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			site,
			r.Status,
			r.Path,
			r.Accepted,
			r.Rejected,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatRejections writes a tabular skip-ledger listing to w.
func formatRejections(out io.Writer, rejections []store.Rejection) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROASTER\tURL\tSTAGE\tREASONS\tRECORDED")
	_, _ = fmt.Fprintln(w, "-------\t---\t-----\t-------\t--------")

	for _, r := range rejections {
		url := r.URL
		if len(url) > 40 {
			url = url[:37] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.RoasterID,
			url,
			r.Stage,
			strings.Join(r.Reasons, ", "),
			r.CreatedAt.Format("2006-01-02 15:04"),
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
