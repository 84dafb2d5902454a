package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tierd/pkg/client"
)

var (
	// query command flags
	queryKey  string
	queryJSON bool
)

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryKey, "key", "", "Document key to answer from (required)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output the full answer as JSON")
	_ = queryCmd.MarkFlagRequired("key")
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from a running daemon",
	Long: `Send a question to a running tierd daemon and print the answer content.

The daemon classifies the question, loads the cheapest tier set for its
type, and the token saving is reported on stderr.

Examples:
  # Ask about a document
  tierd query "when is the next release?" --key release-plan

  # Full answer and metrics as JSON
  tierd query "why did latency regress?" --key perf-report --json

  # Use a different server
  tierd query --server http://localhost:8080 "current status?" --key weekly`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

// runQuery handles the query command
func runQuery(cmd *cobra.Command, args []string) error {
	c, err := client.New(serverURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ans, err := c.Answer(ctx, args[0], queryKey)
	if err != nil {
		return fmt.Errorf("query %s: %w", serverURL, err)
	}

	if queryJSON {
		return outputJSON(ans)
	}

	fmt.Println(ans.Content)

	m := ans.Metrics
	fmt.Fprintf(os.Stderr, "\n[tierd] %s (%.2f) via %s, saved %.1f%% (%.1fms)\n",
		m.QueryType, m.Confidence, strings.Join(m.TiersLoaded, "+"),
		m.SavingRate*100, m.LatencyMS)
	return nil
}
