package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/config"
	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/logging"
	"github.com/fyrsmithlabs/tierd/internal/store"
	"github.com/fyrsmithlabs/tierd/internal/tier"
)

var (
	regenDryRun bool
	regenJSON   bool
)

func init() {
	rootCmd.AddCommand(regenCmd)
	regenCmd.Flags().BoolVar(&regenDryRun, "dry-run", false, "Report what would change without writing")
	regenCmd.Flags().BoolVar(&regenJSON, "json", false, "Output the report as JSON")
}

var regenCmd = &cobra.Command{
	Use:   "regen",
	Short: "Regenerate reduced tiers from stored full content",
	Long: `Rebuild the summary and overview tiers of every stored document from
its full tier using the current digest configuration. Run after changing
tier size limits so the stored reductions match the configuration again.

Documents without a full tier are left untouched.

Examples:
  # See what would change
  tierd regen --dry-run

  # Rewrite stale tiers
  tierd regen`,
	RunE: runRegen,
}

// regenResult describes the outcome for one document.
type regenResult struct {
	Key    string `json:"key"`
	Action string `json:"action"` // updated, unchanged, skipped
	Error  string `json:"error,omitempty"`
}

// regenReport aggregates a regeneration run.
type regenReport struct {
	Total     int           `json:"total"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	DryRun    bool          `json:"dry_run"`
	Documents []regenResult `json:"documents"`
}

// runRegen handles the regen command
func runRegen(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := signalContext()
	defer cancel()

	report, err := regenerate(ctx, st, gen, logger, regenDryRun)
	if err != nil {
		return err
	}

	if regenJSON {
		return outputJSON(report)
	}

	printRegenReport(report, cfg.Store.Root)
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed, report.Total)
	}
	return nil
}

// regenerate rebuilds reduced tiers for every document in the store.
func regenerate(ctx context.Context, st *store.FSStore, gen *digest.Generator, logger *zap.Logger, dryRun bool) (*regenReport, error) {
	keys, err := st.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	report := &regenReport{
		Total:     len(keys),
		DryRun:    dryRun,
		Documents: make([]regenResult, 0, len(keys)),
	}

	for _, key := range keys {
		result := regenResult{Key: key}

		full, ok, err := st.GetTierContent(ctx, key, tier.Tier2)
		switch {
		case err != nil:
			result.Action = "failed"
			result.Error = err.Error()
			report.Failed++
		case !ok || full == "":
			result.Action = "skipped"
			report.Skipped++
		default:
			result, err = regenOne(ctx, st, gen, key, full, dryRun)
			switch result.Action {
			case "updated":
				report.Updated++
			case "unchanged":
				report.Unchanged++
			default:
				report.Failed++
			}
			if err != nil {
				logger.Warn("regenerate failed", zap.String("key", key), zap.Error(err))
			}
		}

		report.Documents = append(report.Documents, result)
		logger.Debug("regenerated document",
			zap.String("key", key),
			zap.String("action", result.Action))
	}

	return report, nil
}

// regenOne rebuilds one document's reduced tiers and writes them if they
// drifted from the current digest output.
func regenOne(ctx context.Context, st *store.FSStore, gen *digest.Generator, key, full string, dryRun bool) (regenResult, error) {
	result := regenResult{Key: key}

	d := gen.Generate(full)

	summary, _, err := st.GetTierContent(ctx, key, tier.Tier0)
	if err != nil {
		result.Action = "failed"
		result.Error = err.Error()
		return result, err
	}
	overview, _, err := st.GetTierContent(ctx, key, tier.Tier1)
	if err != nil {
		result.Action = "failed"
		result.Error = err.Error()
		return result, err
	}

	if d.Summary == summary && d.Overview == overview {
		result.Action = "unchanged"
		return result, nil
	}

	result.Action = "updated"
	if dryRun {
		return result, nil
	}

	if err := st.PutTierContent(ctx, key, tier.Tier0, d.Summary); err != nil {
		result.Action = "failed"
		result.Error = err.Error()
		return result, err
	}
	if err := st.PutTierContent(ctx, key, tier.Tier1, d.Overview); err != nil {
		result.Action = "failed"
		result.Error = err.Error()
		return result, err
	}
	return result, nil
}

func printRegenReport(r *regenReport, root string) {
	verb := "Regenerated"
	if r.DryRun {
		verb = "Would regenerate"
	}
	fmt.Printf("%s %d of %d documents in %s\n", verb, r.Updated, r.Total, root)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "  updated\t%d\t\n", r.Updated)
	fmt.Fprintf(w, "  unchanged\t%d\t\n", r.Unchanged)
	fmt.Fprintf(w, "  skipped\t%d\t(no full tier)\n", r.Skipped)
	if r.Failed > 0 {
		fmt.Fprintf(w, "  failed\t%d\t\n", r.Failed)
	}
	_ = w.Flush()

	for _, doc := range r.Documents {
		if doc.Error != "" {
			fmt.Fprintf(os.Stderr, "  failed: %s: %s\n", doc.Key, doc.Error)
		}
	}
}
