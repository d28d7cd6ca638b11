package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-fleetguard/pkg/api"
	"github.com/dd0wney/cluso-fleetguard/pkg/config"
	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
	"github.com/dd0wney/cluso-fleetguard/pkg/metrics"
	"github.com/dd0wney/cluso-fleetguard/pkg/monitor"
	"github.com/dd0wney/cluso-fleetguard/pkg/server"
	"github.com/dd0wney/cluso-fleetguard/pkg/topology"
	"github.com/dd0wney/cluso-fleetguard/pkg/validation"
)

var (
	serveAddr string

	monitorCmd = &cobra.Command{
		Use:   "monitor [topology-file]",
		Short: "Re-analyze a topology file on a schedule and on change, printing events",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonitor,
	}

	serveCmd = &cobra.Command{
		Use:   "serve [topology-file]",
		Short: "Serve the HTTP API, monitoring the topology file when one is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

// watchTopology opens the topology file and starts reloading it on change.
// The caller closes the returned provider.
func watchTopology(ctx context.Context, path string) (*topology.FileProvider, error) {
	provider, err := topology.NewFileProvider(path,
		topology.WithDebounce(cfg.Topology.Debounce),
		topology.WithLogger(logger.With(logging.Component("topology"))),
	)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := provider.Watch(ctx); err != nil {
		provider.Close()
		return nil, err
	}
	return provider, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	path, err := topologyPath(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := watchTopology(ctx, path)
	if err != nil {
		return err
	}
	defer provider.Close()

	analyzer, err := newAnalyzer(nil)
	if err != nil {
		return err
	}
	mon := monitor.New(analyzer, monitor.WithLogger(logger))

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	mon.Subscribe(func(e monitor.Event) {
		if jsonOutput {
			_ = enc.Encode(e)
			return
		}
		fmt.Fprintln(out, renderEvent(e))
	})

	if err := mon.Start(provider, cfg.Analysis); err != nil {
		return err
	}
	defer mon.Stop()

	<-ctx.Done()
	if snap := mon.LastSnapshot(); snap != nil && !jsonOutput {
		fmt.Fprint(out, renderResult(snap.Result))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	registry := metrics.NewRegistry()
	analyzer, err := newAnalyzer(registry)
	if err != nil {
		return err
	}
	mon := monitor.New(analyzer, monitor.WithLogger(logger), monitor.WithMetrics(registry))

	opts := []api.Option{api.WithLogger(logger), api.WithMetrics(registry)}

	path, pathErr := topologyPath(args)
	var provider *topology.FileProvider
	if pathErr == nil {
		provider, err = watchTopology(cmd.Context(), path)
		if err != nil {
			return err
		}
		defer provider.Close()

		if err := mon.Start(provider, cfg.Analysis); err != nil {
			return err
		}
		defer mon.Stop()

		interval := validation.DefaultOrDuration(cfg.Analysis.Interval, monitor.DefaultInterval)
		opts = append(opts, api.WithMonitor(mon), api.WithStaleAfter(3*interval))
	} else {
		logger.Info("no topology file, serving analysis endpoints only")
	}

	srv := api.NewServer(analyzer, cfg.Server, opts...)
	defer srv.Close()

	gs := server.NewGracefulServer(cfg.Server, srv.Handler(), logger)
	if provider != nil {
		gs.SetReloadFunc(func() error {
			next, err := config.Load(configPath)
			if err != nil {
				return err
			}
			mon.Stop()
			return mon.Start(provider, next.Analysis)
		})
	}
	return gs.Run(cmd.Context())
}
