package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tierd/internal/config"
	"github.com/fyrsmithlabs/tierd/internal/digest"
	"github.com/fyrsmithlabs/tierd/internal/engine"
	"github.com/fyrsmithlabs/tierd/internal/logging"
	"github.com/fyrsmithlabs/tierd/internal/mcp"
	"github.com/fyrsmithlabs/tierd/internal/stats"
	"github.com/fyrsmithlabs/tierd/internal/store"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Run tierd as an MCP server over stdio, for embedding in agent hosts.

The server exposes the memory_answer, memory_summarize, and memory_stats
tools over the configured tier store. Protocol messages use stdout, so
all logs go to stderr.

Examples:
  # Run against the default store
  tierd mcp

  # Run with an explicit config file
  tierd mcp --config ./tierd.yaml`,
	RunE: runMCP,
}

// runMCP handles the mcp command
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// The stdio transport owns stdout, so logs go to stderr.
	logger, err := logging.NewStderr(cfg.Logging)
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

	tracker, err := stats.NewTracker(stats.Config{
		Capacity:     cfg.Stats.HistoryCapacity,
		CostPerToken: cfg.Cost.USDPerToken,
		Path:         cfg.Stats.Path,
		FlushEvery:   cfg.Stats.FlushEvery,
	}, logger)
	if err != nil {
		return fmt.Errorf("init stats tracker: %w", err)
	}

	eng, err := engine.New(engine.Config{
		Mode:   cfg.Mode(),
		Policy: cfg.Policy(),
		Digest: digest.Config{
			Tier0Max: cfg.Digest.Tier0MaxChars,
			Tier1Max: cfg.Digest.Tier1MaxChars,
		},
		TokensPerByte: cfg.Cost.TokensPerByte,
	}, st, tracker, logger)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	srv, err := mcp.NewServer(&mcp.Config{Version: version, Logger: logger}, eng)
	if err != nil {
		return fmt.Errorf("init mcp server: %w", err)
	}

	fmt.Fprintf(os.Stderr, "tierd MCP server started (store %s)\n", cfg.Store.Root)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}

	// Persist whatever the session recorded.
	if err := tracker.Flush(); err != nil {
		logger.Warn("final stats flush failed", zap.Error(err))
	}
	return nil
}
