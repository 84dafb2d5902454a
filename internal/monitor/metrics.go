package monitor

import (
	"context"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fyrsmithlabs/tierd/pkg/client"
)

const fetchTimeout = 5 * time.Second

// StatsSnapshot holds one poll of the tierd stats API, shaped for the view.
type StatsSnapshot struct {
	Status         string
	Mode           string
	Documents      int
	TotalQueries   uint64
	QueryRate      float64
	AvgSavingRate  float64
	AvgLatencyMS   float64
	TokensSaved    float64
	BaselineTokens float64
	ReturnedTokens float64
	CostSavedUSD   float64
	UptimeSeconds  float64

	QueryTypes []TypeCount
	Recent     []client.QueryMetrics

	// Historical data for sparklines (last N points)
	SavingHistory  []float64
	RateHistory    []float64
	LatencyHistory []float64

	// Peak values for progress bars
	QueryRatePeak float64
}

// TypeCount is one row of the query-type breakdown, ordered for display.
type TypeCount struct {
	Type              string
	Count             uint64
	AverageSavingRate float64
}

// fetchStats polls the tierd HTTP API for the stats dashboard and service
// status, returning a statsMsg or errMsg.
func fetchStats(apiURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		c, err := client.New(apiURL)
		if err != nil {
			return errMsg(err)
		}

		dash, err := c.Stats(ctx)
		if err != nil {
			return errMsg(err)
		}

		status, err := c.Status(ctx)
		if err != nil {
			return errMsg(err)
		}

		return statsMsg(buildSnapshot(dash, status))
	}
}

// buildSnapshot shapes API responses into view data. Histories and the
// query rate are filled in by Update, which owns the previous poll.
func buildSnapshot(dash *client.Dashboard, status *client.Status) StatsSnapshot {
	return StatsSnapshot{
		Status:         status.Status,
		Mode:           status.Mode,
		Documents:      status.Documents,
		TotalQueries:   dash.TotalQueries,
		AvgSavingRate:  dash.AverageSavingRate,
		AvgLatencyMS:   averageLatency(dash.Recent),
		TokensSaved:    dash.TotalTokensSaved,
		BaselineTokens: dash.TotalBaselineTokens,
		ReturnedTokens: dash.TotalTokensReturned,
		CostSavedUSD:   dash.EstimatedCostSavedUSD,
		UptimeSeconds:  dash.UptimeSeconds,
		QueryTypes:     typeCounts(dash.QueryTypes),
		Recent:         dash.Recent,
	}
}

// typeCounts flattens the per-type map into rows sorted by count, busiest
// first, with name as the tie break.
func typeCounts(types map[string]client.TypeStats) []TypeCount {
	rows := make([]TypeCount, 0, len(types))
	for name, ts := range types {
		rows = append(rows, TypeCount{
			Type:              name,
			Count:             ts.Count,
			AverageSavingRate: ts.AverageSavingRate,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Type < rows[j].Type
	})
	return rows
}

// averageLatency is the mean latency of the recent-query window.
func averageLatency(recent []client.QueryMetrics) float64 {
	if len(recent) == 0 {
		return 0
	}
	var sum float64
	for _, q := range recent {
		sum += q.LatencyMS
	}
	return sum / float64(len(recent))
}
