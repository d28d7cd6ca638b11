// Command fleetguard analyzes agent fleet topologies for single points of
// failure, suggests fixes and monitors a topology file over time.
//
// Usage:
//
//	fleetguard analyze fleet.yaml
//	fleetguard spofs fleet.yaml --json
//	fleetguard suggest fleet.yaml
//	fleetguard monitor fleet.yaml --config fleetguard.yaml
//	fleetguard serve --config fleetguard.yaml
package main

import (
	"errors"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errThresholds) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
