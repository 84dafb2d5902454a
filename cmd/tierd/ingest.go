package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tierd/internal/config"
	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/ingest"
	"github.com/fyrsmithlabs/tierd/internal/logging"
	"github.com/fyrsmithlabs/tierd/internal/store"
)

var (
	// ingest command flags
	ingestManifest string
	ingestLink     bool
	ingestJSON     bool
	ingestExclude  []string
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestManifest, "manifest", "", "TOML corpus manifest instead of a source directory")
	ingestCmd.Flags().BoolVar(&ingestLink, "link", false, "Link the full tier to source files instead of copying")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "Output the report as JSON")
	ingestCmd.Flags().StringArrayVar(&ingestExclude, "exclude", nil, "Gitignore-style pattern to skip (repeatable)")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Build the tier store from source documents",
	Long: `Digest source documents into summary and overview tiers and write all
tiers into the configured store. Works directly on the filesystem; the
daemon does not need to be running.

Examples:
  # Ingest every markdown file under ./notes
  tierd ingest ./notes

  # Link full tiers to the source files instead of copying
  tierd ingest ./notes --link

  # Ingest the documents listed in a corpus manifest
  tierd ingest --manifest ./corpus.toml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

// runIngest handles the ingest command
func runIngest(cmd *cobra.Command, args []string) error {
	if ingestManifest == "" && len(args) == 0 {
		return fmt.Errorf("a source directory or --manifest is required")
	}
	if ingestManifest != "" && len(args) > 0 {
		return fmt.Errorf("use either a source directory or --manifest, not both")
	}

	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() {
		_ = logging.Sync(logger)
	}()

	st, err := store.NewFSStore(cfg.Store.Root)
	if err != nil {
		return fmt.Errorf("init store at %s: %w", cfg.Store.Root, err)
	}

	gen := digest.NewGenerator(digest.Config{
		Tier0Max: cfg.Digest.Tier0MaxChars,
		Tier1Max: cfg.Digest.Tier1MaxChars,
	})

	in, err := ingest.New(st, gen, logger, ingest.Options{
		LinkFull:        ingestLink,
		ExcludePatterns: ingestExclude,
	})
	if err != nil {
		return fmt.Errorf("init ingestor: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	var report *ingest.Report
	if ingestManifest != "" {
		report, err = in.FromManifest(ctx, ingestManifest)
	} else {
		report, err = in.Directory(ctx, args[0])
	}
	if err != nil {
		return err
	}

	if ingestJSON {
		return outputJSON(report)
	}

	printIngestReport(report, cfg.Store.Root)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", report.Failed, report.TotalFiles)
	}
	return nil
}

func printIngestReport(r *ingest.Report, root string) {
	fmt.Printf("Ingested %d/%d files into %s\n", r.Ingested, r.TotalFiles, root)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "  original\t%s\t\n", formatBytes(r.OriginalBytes))
	fmt.Fprintf(w, "  summary\t%s\t(%.1f%% of original)\n", formatBytes(r.SummaryBytes), r.SummaryRatio*100)
	fmt.Fprintf(w, "  overview\t%s\t(%.1f%% of original)\n", formatBytes(r.OverviewBytes), r.OverviewRatio*100)
	fmt.Fprintf(w, "  token saving\t%.1f%%\t\n", r.TokenSavingRate*100)
	_ = w.Flush()

	for _, f := range r.Files {
		if f.Error != "" {
			fmt.Fprintf(os.Stderr, "  failed: %s: %s\n", f.Path, f.Error)
		}
	}
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
