package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tierd/pkg/client"
)

var summarizeJSON bool

func init() {
	rootCmd.AddCommand(summarizeCmd)
	summarizeCmd.Flags().BoolVar(&summarizeJSON, "json", false, "Output the digest as JSON")
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [file]",
	Short: "Summarize a file or stdin into reduced tiers",
	Long: `Generate the summary and overview tiers for a document without storing
them, using a running tierd daemon.

Examples:
  # Summarize a file
  tierd summarize meeting-notes.md

  # Summarize from stdin
  git log --oneline -20 | tierd summarize -

  # Full digest with metadata as JSON
  tierd summarize meeting-notes.md --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

// runSummarize handles the summarize command
func runSummarize(cmd *cobra.Command, args []string) error {
	var content []byte
	var err error

	// Read input from file or stdin
	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	if len(content) == 0 {
		return fmt.Errorf("no content to summarize")
	}

	c, err := client.New(serverURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := c.Summarize(ctx, string(content))
	if err != nil {
		return fmt.Errorf("summarize via %s: %w", serverURL, err)
	}

	if summarizeJSON {
		return outputJSON(d)
	}

	fmt.Printf("--- L0 ---\n%s\n\n--- L1 ---\n%s\n", d.Summary, d.Overview)
	fmt.Fprintf(os.Stderr, "\n[tierd] %d bytes in, summary %.1f%%, overview %.1f%%\n",
		d.Metadata.OriginalSize, d.Metadata.SummaryRatio*100, d.Metadata.OverviewRatio*100)
	return nil
}
