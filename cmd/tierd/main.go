// Tierd is a tiered context memory daemon with an HTTP API.
//
// Documents are compressed into summary and overview tiers at ingest time;
// queries are classified and answered from the cheapest tier set that can
// serve them. The daemon tracks token savings per query and exposes them
// over the stats API.
//
// Usage:
//
//	# Start the daemon with defaults
//	tierd serve
//
//	# Build the tier store from a directory of notes
//	tierd ingest ./notes
//
//	# Ask a running daemon a question
//	tierd query "when is the next release?" --key release-plan
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
