package monitor

import (
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30

	recentRows    = 5
	queryColWidth = 32
)

// Model represents the BubbleTea dashboard model
type Model struct {
	apiURL     string
	interval   time.Duration
	lastUpdate time.Time
	stats      StatsSnapshot
	err        error
	quitting   bool

	// Progress bars
	savingProgress progress.Model
	rateProgress   progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	// Header style - bright cyan background, bold black text
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	// Section title style - bold bright cyan
	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	// Label style - dim cyan
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	// Value style - bright white
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	// Dim style - for units and secondary info
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	// Status styles with unicode symbols
	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// Container style - rounded border with dim gray
	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	// Footer style - bright keys on dim background
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	// Sparkline container
	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a new dashboard model
func NewModel(apiURL string, interval time.Duration) Model {
	// Initialize progress bars with custom gradient
	savingProg := progress.New(
		progress.WithGradient("#00ff00", "#ffff00"),
		progress.WithWidth(40),
	)

	rateProg := progress.New(
		progress.WithGradient("#00ffff", "#ff00ff"),
		progress.WithWidth(40),
	)

	return Model{
		apiURL:         apiURL,
		interval:       interval,
		quitting:       false,
		savingProgress: savingProg,
		rateProgress:   rateProg,
		stats: StatsSnapshot{
			SavingHistory:  make([]float64, 0, historySize),
			RateHistory:    make([]float64, 0, historySize),
			LatencyHistory: make([]float64, 0, historySize),
			QueryRatePeak:  1.0, // Minimum peak to avoid division by zero
		},
	}
}

// getStatusBadge returns the overall service status badge
func getStatusBadge(status string) string {
	switch status {
	case "ok":
		return healthyStyle.Render("✓ HEALTHY")
	case "degraded":
		return warningStyle.Render("⚠ DEGRADED")
	}
	return errorStyle.Render("✗ ERROR")
}

// getSavingBadge returns a colored badge based on the saving rate
func getSavingBadge(rate float64) string {
	if rate >= 0.7 {
		return healthyStyle.Render("[✓]")
	} else if rate >= 0.3 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// getLatencyBadge returns a colored badge based on latency
func getLatencyBadge(latencyMS float64) string {
	if latencyMS < 100 {
		return healthyStyle.Render("[✓]")
	} else if latencyMS < 500 {
		return warningStyle.Render("[⚠]")
	}
	return errorStyle.Render("[✗]")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type statsMsg StatsSnapshot
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchStats(m.apiURL),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchStats(m.apiURL)
		}

	case tickMsg:
		// Auto-refresh triggered
		return m, tea.Batch(
			tick(m.interval),
			fetchStats(m.apiURL),
		)

	case statsMsg:
		// Stats successfully fetched - update with history
		newStats := StatsSnapshot(msg)

		if !m.lastUpdate.IsZero() {
			newStats.QueryRate = queryRate(m.stats.TotalQueries, newStats.TotalQueries, time.Since(m.lastUpdate))
		}

		// Preserve historical data and update ring buffers
		newStats.SavingHistory = appendToHistory(m.stats.SavingHistory, newStats.AvgSavingRate*100)
		newStats.RateHistory = appendToHistory(m.stats.RateHistory, newStats.QueryRate)
		newStats.LatencyHistory = appendToHistory(m.stats.LatencyHistory, newStats.AvgLatencyMS)

		// Update peaks
		newStats.QueryRatePeak = m.stats.QueryRatePeak
		if newStats.QueryRate > newStats.QueryRatePeak {
			newStats.QueryRatePeak = newStats.QueryRate
		}

		m.stats = newStats
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		// Error occurred
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// queryRate converts a query-count delta into queries per minute. A count
// that went backwards means the stats were reset between polls.
func queryRate(prev, cur uint64, elapsed time.Duration) float64 {
	if cur < prev || elapsed <= 0 {
		return 0
	}
	return float64(cur-prev) / elapsed.Minutes()
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	// Display error state if error exists
	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

// renderError renders the error view
func (m Model) renderError() string {
	header := headerStyle.Render("tierd Monitor")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot reach tierd") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.apiURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Please ensure:") + "\n"
	content += dimStyle.Render("  1. tierd serve is running") + "\n"
	content += dimStyle.Render("  2. the HTTP API listens on the address above") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	box := containerStyle.Render(header + "\n" + content)
	return box
}

// renderDashboard renders the main dashboard view with sparklines and progress bars
func (m Model) renderDashboard() string {
	var content string

	// Header with status badge
	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}
	uptimeStr := FormatUptime(m.stats.UptimeSeconds)

	header := headerStyle.Render(" tierd Monitor ")
	statusBadge := getStatusBadge(m.stats.Status)
	headerLine := fmt.Sprintf("%s   %s %s   %s %s   %s",
		statusBadge,
		dimStyle.Render("Mode:"),
		valueStyle.Render(m.stats.Mode),
		dimStyle.Render("Uptime:"),
		valueStyle.Render(uptimeStr),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"

	// Queries section with sparkline and progress
	content += "\n" + sectionStyle.Render("┃ Queries") + "\n"

	// Rate with sparkline
	rateSparkline := createSparkline(m.stats.RateHistory)
	content += labelStyle.Render("  Rate: ") +
		valueStyle.Render(FormatRate(m.stats.QueryRate)) +
		" " + dimStyle.Render(fmt.Sprintf("(%d total)", m.stats.TotalQueries)) +
		"   " + rateSparkline + "\n"

	// Latency with sparkline
	latencySparkline := createSparkline(m.stats.LatencyHistory)
	latencyBadge := getLatencyBadge(m.stats.AvgLatencyMS)
	content += labelStyle.Render("  Latency (avg): ") +
		valueStyle.Render(FormatLatency(m.stats.AvgLatencyMS)) +
		" " + latencyBadge +
		"   " + latencySparkline + "\n"

	// Query rate progress bar
	ratePercent := 0.0
	if m.stats.QueryRatePeak > 0 {
		ratePercent = m.stats.QueryRate / m.stats.QueryRatePeak
		if ratePercent > 1.0 {
			ratePercent = 1.0
		}
	}
	content += labelStyle.Render("  Load: ") +
		m.rateProgress.ViewAs(ratePercent) +
		" " + dimStyle.Render(fmt.Sprintf("%.0f%%", ratePercent*100)) + "\n"

	// Token economy section with sparkline and progress
	content += "\n" + sectionStyle.Render("┃ Token Economy") + "\n"

	savingSparkline := createSparkline(m.stats.SavingHistory)
	savingBadge := getSavingBadge(m.stats.AvgSavingRate)
	content += labelStyle.Render("  Saving: ") +
		valueStyle.Render(FormatPercentage(m.stats.AvgSavingRate)) +
		" " + savingBadge +
		"   " + savingSparkline + "\n"

	savingPercent := m.stats.AvgSavingRate
	if savingPercent > 1.0 {
		savingPercent = 1.0
	}
	if savingPercent < 0 {
		savingPercent = 0
	}
	content += labelStyle.Render("  Progress: ") +
		m.savingProgress.ViewAs(savingPercent) +
		" " + dimStyle.Render(FormatPercentage(m.stats.AvgSavingRate)) + "\n"

	content += labelStyle.Render("  Saved: ") +
		valueStyle.Render(FormatTokens(m.stats.TokensSaved)+" tokens") +
		"  " +
		labelStyle.Render("Baseline: ") +
		valueStyle.Render(FormatTokens(m.stats.BaselineTokens)) +
		"  " +
		labelStyle.Render("Cost: ") +
		valueStyle.Render(FormatCost(m.stats.CostSavedUSD)) + "\n"

	// Query types section
	content += "\n" + sectionStyle.Render("┃ Query Types") + "\n"
	if len(m.stats.QueryTypes) == 0 {
		content += dimStyle.Render("  no queries yet") + "\n"
	}
	for _, tc := range m.stats.QueryTypes {
		content += labelStyle.Render(fmt.Sprintf("  %-16s", tc.Type)) +
			valueStyle.Render(fmt.Sprintf("%d", tc.Count)) +
			"  " + dimStyle.Render(FormatPercentage(tc.AverageSavingRate)+" avg saving") + "\n"
	}

	// Recent queries section
	content += "\n" + sectionStyle.Render("┃ Recent Queries") + "\n"
	if len(m.stats.Recent) == 0 {
		content += dimStyle.Render("  no queries yet") + "\n"
	}
	recent := m.stats.Recent
	if len(recent) > recentRows {
		recent = recent[len(recent)-recentRows:]
	}
	for i := len(recent) - 1; i >= 0; i-- {
		q := recent[i]
		content += labelStyle.Render(fmt.Sprintf("  %-16s", q.QueryType)) +
			valueStyle.Render(fmt.Sprintf("%6s", FormatPercentage(q.SavingRate))) +
			" " + getLatencyBadge(q.LatencyMS) +
			" " + dimStyle.Render(truncateQuery(q.Query, queryColWidth)) + "\n"
	}

	// Corpus section
	content += "\n" + sectionStyle.Render("┃ Corpus") + "\n"
	content += labelStyle.Render("  Documents: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.stats.Documents)) + "\n"

	// Footer with keyboard shortcuts
	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	// Wrap in container
	return containerStyle.Render(content)
}

// truncateQuery shortens a query for single-line display. Queries may be
// multibyte, so the cut is by rune.
func truncateQuery(q string, max int) string {
	r := []rune(q)
	if len(r) <= max {
		return q
	}
	return string(r[:max-1]) + "…"
}
