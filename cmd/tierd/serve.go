package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/tierd/internal/service"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tierd daemon",
	Long: `Start the tierd HTTP daemon.

The daemon serves the answer API, watches the configuration file for
changes, persists query statistics, and publishes query events when NATS
is enabled.

Examples:
  # Start with the default config
  tierd serve

  # Start with an explicit config file
  tierd serve --config ./tierd.yaml`,
	RunE: runServe,
}

// runServe handles the serve command
func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	svc, err := service.New(ctx, cfgFile, version)
	if err != nil {
		return err
	}

	return svc.Run(ctx)
}
