package monitor

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/tierd/pkg/client"
)

func TestNewModel(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	assert.Equal(t, "http://localhost:9090", model.apiURL)
	assert.Equal(t, 5*time.Second, model.interval)
	assert.False(t, model.quitting)
	assert.Equal(t, 1.0, model.stats.QueryRatePeak)
}

func TestModel_Init(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	cmd := model.Init()

	// Init should return a tick command to start auto-refresh
	assert.NotNil(t, cmd)
}

func TestModel_Update_QuitKey(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	// Send 'q' key message
	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
	updatedModel, cmd := model.Update(keyMsg)

	// Model should be marked as quitting
	m := updatedModel.(Model)
	assert.True(t, m.quitting)
	assert.NotNil(t, cmd) // Should return tea.Quit
}

func TestModel_Update_RefreshKey(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	// Send 'r' key message
	keyMsg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}}
	updatedModel, cmd := model.Update(keyMsg)

	// Should trigger stats fetch
	m := updatedModel.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd) // Should return fetchStats command
}

func TestModel_Update_TickMsg(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	// Send tick message
	msg := tickMsg(time.Now())
	updatedModel, cmd := model.Update(msg)

	// Should schedule next tick and fetch stats
	m := updatedModel.(Model)
	assert.False(t, m.quitting)
	assert.NotNil(t, cmd) // Should return batch command (tick + fetchStats)
}

func TestModel_Update_StatsMsg(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	// Send stats message
	msg := statsMsg(StatsSnapshot{
		Status:        "ok",
		Mode:          "hybrid",
		TotalQueries:  12,
		AvgSavingRate: 0.952,
		AvgLatencyMS:  12.3,
	})
	updatedModel, cmd := model.Update(msg)

	// Model should update stats and lastUpdate time
	m := updatedModel.(Model)
	assert.Equal(t, uint64(12), m.stats.TotalQueries)
	assert.Equal(t, 0.952, m.stats.AvgSavingRate)
	assert.Equal(t, 12.3, m.stats.AvgLatencyMS)
	assert.False(t, m.lastUpdate.IsZero())
	assert.Nil(t, cmd) // No command needed after stats update

	// Histories should carry one point per poll
	assert.Len(t, m.stats.SavingHistory, 1)
	assert.Len(t, m.stats.RateHistory, 1)
	assert.Len(t, m.stats.LatencyHistory, 1)
	assert.InDelta(t, 95.2, m.stats.SavingHistory[0], 0.001)
}

func TestModel_Update_ErrMsg(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)

	// Send error message
	msg := errMsg(fmt.Errorf("connection refused"))
	updatedModel, cmd := model.Update(msg)

	// Model should store error
	m := updatedModel.(Model)
	assert.NotNil(t, m.err)
	assert.Contains(t, m.err.Error(), "connection refused")
	assert.Nil(t, cmd)
}

func TestQueryRate(t *testing.T) {
	tests := []struct {
		name     string
		prev     uint64
		cur      uint64
		elapsed  time.Duration
		expected float64
	}{
		{"steady_rate", 0, 10, time.Minute, 10.0},
		{"no_new_queries", 10, 10, time.Minute, 0.0},
		{"half_minute", 0, 5, 30 * time.Second, 10.0},
		{"counter_reset", 10, 3, time.Minute, 0.0},
		{"zero_elapsed", 0, 5, 0, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, queryRate(tt.prev, tt.cur, tt.elapsed), 0.001)
		})
	}
}

func TestAppendToHistory(t *testing.T) {
	history := make([]float64, 0, historySize)
	for i := 0; i < historySize+5; i++ {
		history = appendToHistory(history, float64(i))
	}

	assert.Len(t, history, historySize)
	assert.Equal(t, 5.0, history[0]) // Oldest points dropped
	assert.Equal(t, float64(historySize+4), history[len(history)-1])
}

func TestModel_View_WithStats(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	model.stats = StatsSnapshot{
		Status:         "ok",
		Mode:           "hybrid",
		Documents:      3,
		TotalQueries:   12,
		QueryRate:      45.7,
		AvgSavingRate:  0.952,
		AvgLatencyMS:   12.3,
		TokensSaved:    15200.0,
		BaselineTokens: 16000.0,
		CostSavedUSD:   0.0034,
		UptimeSeconds:  8100, // 2h 15m
		QueryTypes: []TypeCount{
			{Type: "factual_date", Count: 8, AverageSavingRate: 0.961},
			{Type: "analytical", Count: 4, AverageSavingRate: 0.42},
		},
		Recent: []client.QueryMetrics{
			{Query: "什么时候上线的", QueryType: "factual_date", SavingRate: 0.95, LatencyMS: 3.2},
		},
		QueryRatePeak: 50.0,
	}
	model.lastUpdate = time.Date(2024, 1, 1, 12, 34, 56, 0, time.UTC)

	view := model.View()

	// Verify view contains expected elements
	assert.Contains(t, view, "tierd Monitor")
	assert.Contains(t, view, "HEALTHY")
	assert.Contains(t, view, "hybrid")
	assert.Contains(t, view, "2h 15m")
	assert.Contains(t, view, "12:34:56")
	assert.Contains(t, view, "Queries")
	assert.Contains(t, view, "45.7 req/min")
	assert.Contains(t, view, "12.3ms")
	assert.Contains(t, view, "Token Economy")
	assert.Contains(t, view, "95.2%")
	assert.Contains(t, view, "15.2K tokens")
	assert.Contains(t, view, "$0.0034")
	assert.Contains(t, view, "Query Types")
	assert.Contains(t, view, "factual_date")
	assert.Contains(t, view, "Recent Queries")
	assert.Contains(t, view, "Corpus")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_WithError(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	model.err = fmt.Errorf("connection refused")

	view := model.View()

	// Verify error message is displayed
	assert.Contains(t, view, "Cannot reach tierd")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "http://localhost:9090")
	assert.Contains(t, view, "[q]")
	assert.Contains(t, view, "[r]")
}

func TestModel_View_NoData(t *testing.T) {
	model := NewModel("http://localhost:9090", 5*time.Second)
	// No stats, no error

	view := model.View()

	// Should show the empty dashboard
	assert.Contains(t, view, "tierd Monitor")
	assert.Contains(t, view, "no queries yet")
	assert.Contains(t, view, "[q]")
}

func TestTruncateQuery(t *testing.T) {
	assert.Equal(t, "short", truncateQuery("short", 10))
	assert.Equal(t, "exactlyten", truncateQuery("exactlyten", 10))
	assert.Equal(t, "truncated…", truncateQuery("truncated query text", 10))
	assert.Equal(t, "什么时候…", truncateQuery("什么时候上线的", 5))
}
