package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tierd/internal/monitor"
	"github.com/fyrsmithlabs/tierd/pkg/client"
)

var statsJSON bool

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsResetCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output statistics as JSON")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show query statistics from a running daemon",
	Long: `Show cumulative query statistics: totals, token savings, per-type
breakdown and the most recent queries.

Examples:
  # Show statistics
  tierd stats

  # Raw statistics as JSON
  tierd stats --json`,
	RunE: runStats,
}

var statsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset query statistics",
	Long: `Reset all query statistics on a running daemon. Counters, per-type
aggregates and the recent query history start over; stored documents are
not touched.

Examples:
  tierd stats reset`,
	RunE: runStatsReset,
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	c, err := client.New(serverURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dash, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("fetch stats from %s: %w", serverURL, err)
	}

	if statsJSON {
		return outputJSON(dash)
	}

	printStats(dash)
	return nil
}

// runStatsReset handles the stats reset command
func runStatsReset(cmd *cobra.Command, args []string) error {
	c, err := client.New(serverURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.ResetStats(ctx); err != nil {
		return fmt.Errorf("reset stats on %s: %w", serverURL, err)
	}

	fmt.Println("Statistics reset.")
	return nil
}

func printStats(d *client.Dashboard) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Queries\t%d\t\n", d.TotalQueries)
	fmt.Fprintf(w, "Avg saving\t%s\t\n", monitor.FormatPercentage(d.AverageSavingRate))
	fmt.Fprintf(w, "Tokens saved\t%s\t(baseline %s, returned %s)\n",
		monitor.FormatTokens(d.TotalTokensSaved),
		monitor.FormatTokens(d.TotalBaselineTokens),
		monitor.FormatTokens(d.TotalTokensReturned))
	fmt.Fprintf(w, "Cost saved\t%s\t\n", monitor.FormatCost(d.EstimatedCostSavedUSD))
	fmt.Fprintf(w, "Uptime\t%s\t\n", monitor.FormatUptime(d.UptimeSeconds))
	_ = w.Flush()

	if len(d.QueryTypes) > 0 {
		type row struct {
			name  string
			stats client.TypeStats
		}
		rows := make([]row, 0, len(d.QueryTypes))
		for name, ts := range d.QueryTypes {
			rows = append(rows, row{name, ts})
		}
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].stats.Count != rows[j].stats.Count {
				return rows[i].stats.Count > rows[j].stats.Count
			}
			return rows[i].name < rows[j].name
		})

		fmt.Println("\nBy type:")
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, r := range rows {
			fmt.Fprintf(tw, "  %s\t%d\t%s avg saving\n",
				r.name, r.stats.Count, monitor.FormatPercentage(r.stats.AverageSavingRate))
		}
		_ = tw.Flush()
	}

	if len(d.Recent) > 0 {
		fmt.Println("\nRecent:")
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		// Newest first.
		for i := len(d.Recent) - 1; i >= 0; i-- {
			q := d.Recent[i]
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
				q.QueryType,
				monitor.FormatLatency(q.LatencyMS),
				monitor.FormatPercentage(q.SavingRate),
				truncate(q.Query, 48))
		}
		_ = tw.Flush()
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
