package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type memoryAnswerInput struct {
	Query       string `json:"query" jsonschema:"required,Question to answer from stored memory"`
	DocumentKey string `json:"document_key,omitempty" jsonschema:"Document key to answer from (newest document when empty)"`
}

type memoryAnswerOutput struct {
	Content         string   `json:"content" jsonschema:"Retrieved content"`
	QueryType       string   `json:"query_type" jsonschema:"Classified query intent"`
	Confidence      float64  `json:"confidence" jsonschema:"Classification confidence (0-1)"`
	TiersLoaded     []string `json:"tiers_loaded" jsonschema:"Tiers read for this answer"`
	EstimatedTokens float64  `json:"estimated_tokens" jsonschema:"Token estimate for the returned content"`
	BaselineTokens  float64  `json:"baseline_tokens" jsonschema:"Token estimate for loading the full document"`
	SavingRate      float64  `json:"saving_rate" jsonschema:"Fraction of baseline tokens avoided"`
}

type memorySummarizeInput struct {
	Content string `json:"content" jsonschema:"required,Text to compress into summary and overview tiers"`
}

type memorySummarizeOutput struct {
	Summary       string  `json:"summary" jsonschema:"Tier 0 summary"`
	Overview      string  `json:"overview" jsonschema:"Tier 1 overview"`
	OriginalSize  int     `json:"original_size" jsonschema:"Source size in bytes"`
	SummaryRatio  float64 `json:"summary_ratio" jsonschema:"Summary bytes over source bytes"`
	OverviewRatio float64 `json:"overview_ratio" jsonschema:"Overview bytes over source bytes"`
}

type memoryStatsInput struct{}

type memoryStatsOutput struct {
	TotalQueries          uint64            `json:"total_queries" jsonschema:"Queries answered since start"`
	AverageSavingRate     float64           `json:"average_saving_rate" jsonschema:"Mean saving rate across queries"`
	TotalTokensSaved      float64           `json:"total_tokens_saved" jsonschema:"Estimated tokens avoided"`
	EstimatedCostSavedUSD float64           `json:"estimated_cost_saved_usd" jsonschema:"Estimated cost avoided in USD"`
	UptimeSeconds         float64           `json:"uptime_seconds" jsonschema:"Seconds since the engine started"`
	QueryTypes            map[string]uint64 `json:"query_types" jsonschema:"Query count per intent"`
	Documents             int               `json:"documents" jsonschema:"Documents in the store"`
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	// memory_answer
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_answer",
		Description: "Answer a question from stored memory, loading only the tiers the query needs",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memoryAnswerInput) (*mcp.CallToolResult, memoryAnswerOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "memory_answer")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "memory_answer")
			s.metrics.RecordInvocation(ctx, "memory_answer", time.Since(start), toolErr)
		}()

		if args.Query == "" {
			toolErr = fmt.Errorf("query is required")
			return nil, memoryAnswerOutput{}, toolErr
		}

		ans, err := s.engine.Answer(ctx, args.Query, args.DocumentKey)
		if err != nil {
			toolErr = fmt.Errorf("answer failed: %w", err)
			return nil, memoryAnswerOutput{}, toolErr
		}

		output := memoryAnswerOutput{
			Content:         ans.Content,
			QueryType:       string(ans.Metrics.QueryType),
			Confidence:      ans.Metrics.Confidence,
			TiersLoaded:     ans.Metrics.TiersLoaded,
			EstimatedTokens: ans.Metrics.EstimatedTokens,
			BaselineTokens:  ans.Metrics.BaselineTokens,
			SavingRate:      ans.Metrics.SavingRate,
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: ans.Content},
			},
		}, output, nil
	})

	// memory_summarize
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_summarize",
		Description: "Compress text into the summary and overview tiers without storing it",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memorySummarizeInput) (*mcp.CallToolResult, memorySummarizeOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "memory_summarize")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "memory_summarize")
			s.metrics.RecordInvocation(ctx, "memory_summarize", time.Since(start), toolErr)
		}()

		if args.Content == "" {
			toolErr = fmt.Errorf("content is required")
			return nil, memorySummarizeOutput{}, toolErr
		}

		d := s.engine.Summarize(ctx, args.Content)

		output := memorySummarizeOutput{
			Summary:       d.Summary,
			Overview:      d.Overview,
			OriginalSize:  d.Metadata.OriginalSize,
			SummaryRatio:  d.Metadata.SummaryRatio,
			OverviewRatio: d.Metadata.OverviewRatio,
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: d.Summary},
			},
		}, output, nil
	})

	// memory_stats
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "memory_stats",
		Description: "Report token-saving statistics for queries answered so far",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args memoryStatsInput) (*mcp.CallToolResult, memoryStatsOutput, error) {
		start := time.Now()
		s.metrics.IncrementActive(ctx, "memory_stats")
		var toolErr error
		defer func() {
			s.metrics.DecrementActive(ctx, "memory_stats")
			s.metrics.RecordInvocation(ctx, "memory_stats", time.Since(start), toolErr)
		}()

		dash := s.engine.Dashboard()

		queryTypes := make(map[string]uint64, len(dash.QueryTypes))
		for qt, ts := range dash.QueryTypes {
			queryTypes[qt] = ts.Count
		}

		docs, err := s.engine.ListDocuments(ctx)
		if err != nil {
			toolErr = fmt.Errorf("list documents failed: %w", err)
			return nil, memoryStatsOutput{}, toolErr
		}

		output := memoryStatsOutput{
			TotalQueries:          dash.TotalQueries,
			AverageSavingRate:     dash.AverageSavingRate,
			TotalTokensSaved:      dash.TotalTokensSaved,
			EstimatedCostSavedUSD: dash.EstimatedCostSavedUSD,
			UptimeSeconds:         dash.UptimeSeconds,
			QueryTypes:            queryTypes,
			Documents:             len(docs),
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("%d queries answered, %.0f tokens saved (%.1f%% average saving)",
					output.TotalQueries, output.TotalTokensSaved, output.AverageSavingRate*100)},
			},
		}, output, nil
	})
}
