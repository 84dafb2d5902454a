package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tierd/internal/monitor"
)

var dashboardInterval time.Duration

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().DurationVar(&dashboardInterval, "interval", 2*time.Second, "Refresh interval")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live statistics dashboard",
	Long: `Open a terminal dashboard with live statistics from a running tierd
daemon: query rate, latency, token economy and recent queries.

Examples:
  # Watch the local daemon
  tierd dashboard

  # Refresh every 5 seconds
  tierd dashboard --interval 5s

  # Watch a remote daemon
  tierd dashboard --server http://memory-host:9090`,
	RunE: runDashboard,
}

// runDashboard handles the dashboard command
func runDashboard(cmd *cobra.Command, args []string) error {
	model := monitor.NewModel(serverURL, dashboardInterval)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
