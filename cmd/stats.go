package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/store"
)

var statsSince time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate scrape statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var since time.Time
		if statsSince > 0 {
			since = time.Now().Add(-statsSince)
		}

		summary, err := st.SummarizeRuns(ctx, since)
		if err != nil {
			return eris.Wrap(err, "summarize runs")
		}
		dlqDepth, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "count dlq")
		}

		formatStats(os.Stdout, summary, dlqDepth, statsSince)
		return nil
	},
}

func init() {
	statsCmd.Flags().DurationVar(&statsSince, "since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h; 0 for all)")
	rootCmd.AddCommand(statsCmd)
}

// formatStats writes the run ledger summary and DLQ depth to w.
func formatStats(out io.Writer, s *store.RunSummary, dlqDepth int, window time.Duration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if window > 0 {
		_, _ = fmt.Fprintf(w, "Window:\t%s\n", window)
	} else {
		_, _ = fmt.Fprintf(w, "Window:\tall\n")
	}
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.ByStatus[string(model.RunStatusComplete)])
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.ByStatus[string(model.RunStatusFailed)])
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.ByStatus[string(model.RunStatusRunning)])
	_, _ = fmt.Fprintln(w, "By path:")
	_, _ = fmt.Fprintf(w, "  Structured:\t%d\n", s.ByPath[string(model.PathStructured)])
	_, _ = fmt.Fprintf(w, "  Discovery:\t%d\n", s.ByPath[string(model.PathDiscovery)])
	_, _ = fmt.Fprintf(w, "  Cache:\t%d\n", s.ByPath[string(model.PathCache)])
	_, _ = fmt.Fprintf(w, "Products accepted:\t%d\n", s.Accepted)
	_, _ = fmt.Fprintf(w, "Candidates rejected:\t%d\n", s.Rejected)
	_, _ = fmt.Fprintf(w, "Candidate errors:\t%d\n", s.Errors)
	_, _ = fmt.Fprintf(w, "Enrichment calls:\t%d\n", s.EnrichmentCalls)
	_, _ = fmt.Fprintf(w, "Pages fetched:\t%d\n", s.PagesFetched)
	_, _ = fmt.Fprintf(w, "Dead letters:\t%d\n", dlqDepth)
	_ = w.Flush()
}
