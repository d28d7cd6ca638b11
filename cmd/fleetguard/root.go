package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-fleetguard/pkg/config"
	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/metrics"
	"github.com/dd0wney/cluso-fleetguard/pkg/resilience"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
)

const version = "0.1.0"

// errThresholds is returned by --strict runs whose result fails thresholds.
var errThresholds = errors.New("resilience thresholds not met")

// --- Global Command Variables ---
var (
	configPath   string
	logLevel     string
	traceEnabled bool
	jsonOutput   bool

	// Set by PersistentPreRunE.
	cfg             config.Config
	logger          logging.Logger = logging.NewNopLogger()
	shutdownTracing                = func(context.Context) error { return nil }

	rootCmd = &cobra.Command{
		Use:     "fleetguard",
		Short:   "Find single points of failure in agent fleet topologies",
		Version: version,
		Long: `fleetguard scores how well an agent fleet's communication graph
survives the loss of any one agent, lists the agents whose loss splits the
fleet, and proposes edits that remove them.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&traceEnabled, "trace", false, "Print OpenTelemetry spans to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Write JSON instead of a styled report")

	rootCmd.AddCommand(analyzeCmd, spofsCmd, suggestCmd, monitorCmd, serveCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
		if err := loaded.Validate(); err != nil {
			return err
		}
	}
	cfg = loaded

	jsonLogger := logging.NewJSONLogger(os.Stderr, cfg.Level())
	logging.SetDefaultLogger(jsonLogger)
	logger = jsonLogger

	shutdown, err := setupTracing(traceEnabled)
	if err != nil {
		return err
	}
	shutdownTracing = shutdown
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	return shutdownTracing(context.Background())
}

// topologyPath picks the positional argument, falling back to the
// configured topology file.
func topologyPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Topology.Path != "" {
		return cfg.Topology.Path, nil
	}
	return "", errors.New("no topology file: pass one as an argument or set topology.path")
}

func loadTopology(args []string) (*topology.Topology, error) {
	path, err := topologyPath(args)
	if err != nil {
		return nil, err
	}
	t, err := topology.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

func newAnalyzer(registry *metrics.Registry) (*resilience.Analyzer, error) {
	opts := []resilience.Option{resilience.WithLogger(logger)}
	if registry != nil {
		opts = append(opts, resilience.WithMetrics(registry))
	}
	return resilience.NewAnalyzer(cfg.Analysis.Config, opts...)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
