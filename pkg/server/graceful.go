// Package server runs an HTTP handler until its context ends or the process
// receives SIGINT or SIGTERM, and drains connections before returning.
// SIGHUP calls the registered reload function instead.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/cluso-fleetguard/pkg/config"
	"github.com/dd0wney/cluso-fleetguard/pkg/logging"
)

// ReloadFunc is a function that reloads configuration
type ReloadFunc func() error

// GracefulServer wraps an HTTP server with graceful shutdown capabilities
type GracefulServer struct {
	server          *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownErr  error

	reloadMu sync.RWMutex
	reloadFn ReloadFunc
}

// NewGracefulServer creates a graceful HTTP server for handler using the
// address and timeouts of cfg.
func NewGracefulServer(cfg config.ServerConfig, handler http.Handler, logger logging.Logger) *GracefulServer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GracefulServer{
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger:          logger.With(logging.Component("server")),
		shutdownTimeout: cfg.ShutdownTimeout,
		shutdownCh:      make(chan struct{}),
	}
}

// Run listens on the configured address and serves until ctx is done or a
// termination signal arrives.
func (gs *GracefulServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", gs.server.Addr, err)
	}
	return gs.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or a termination
// signal arrives, then shuts down within the configured timeout.
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // Termination signal (systemd, docker, k8s)
		syscall.SIGHUP,  // Reload configuration
	)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gs.server.Serve(ln)
	}()
	gs.logger.Info("http server listening", logging.String("addr", ln.Addr().String()))

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case <-ctx.Done():
			return gs.stop(errCh)

		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				gs.logger.Info("received SIGHUP, reloading configuration")
				if err := gs.Reload(); err != nil {
					gs.logger.Warn("configuration reload failed", logging.Error(err))
				}
				continue
			}
			gs.logger.Info("received signal, starting graceful shutdown", logging.String("signal", sig.String()))
			return gs.stop(errCh)
		}
	}
}

func (gs *GracefulServer) stop(errCh <-chan error) error {
	err := gs.Shutdown(gs.shutdownTimeout)
	<-errCh
	return err
}

// Shutdown initiates a graceful shutdown. Later calls return the first
// call's result.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		gs.logger.Info("initiating graceful shutdown", logging.Duration("timeout", timeout))
		if err := gs.server.Shutdown(ctx); err != nil {
			gs.shutdownErr = fmt.Errorf("shutdown: %w", err)
			gs.logger.Error("error during shutdown", logging.Error(err))
			return
		}
		gs.logger.Info("server shutdown complete")
	})
	return gs.shutdownErr
}

// IsShuttingDown returns true if shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel returns a channel that closes when shutdown is initiated
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}

// SetReloadFunc sets the function to call when a reload is triggered
func (gs *GracefulServer) SetReloadFunc(fn ReloadFunc) {
	gs.reloadMu.Lock()
	defer gs.reloadMu.Unlock()
	gs.reloadFn = fn
}

// Reload runs the reload function. Without one it does nothing.
func (gs *GracefulServer) Reload() error {
	gs.reloadMu.RLock()
	reloadFn := gs.reloadFn
	gs.reloadMu.RUnlock()

	if reloadFn == nil {
		gs.logger.Info("configuration reload requested, but no reload function configured")
		return nil
	}

	if err := reloadFn(); err != nil {
		return err
	}
	gs.logger.Info("configuration reload complete")
	return nil
}
