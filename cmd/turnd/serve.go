package main

import (
	"net"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "/etc/turnd/turnd.toml", "path to the TOML configuration file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	fc, err := loadFileConfig(serveConfigPath)
	if err != nil {
		return err
	}
	cfg := fc.toTurnConfig().WithDefaults()

	// logrusAdapter matches stund's package-level logrus.New() convention
	// (pion-stun/stund/main.go), bridged to the pion/logging.LeveledLogger
	// interface the rest of the server expects.
	logger := newLogrusAdapter()
	cfg.Logger = logger

	addr := cfg.ListenAddr
	if addr == "" {
		addr = "0.0.0.0:3478"
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	reg := prometheus.NewRegistry()
	srv := newServer(cfg, conn, reg, logger)
	defer srv.relay.Close()

	workers := fc.Relay.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error { return srv.serveWorker(gctx, cfg.BufferSize) })
	}
	g.Go(func() error { return srv.runSweeper(gctx) })

	if metricsAddr := fc.Metrics.Addr; metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		httpServer := &http.Server{Addr: metricsAddr, Handler: mux}
		g.Go(func() error {
			<-gctx.Done()
			return httpServer.Close()
		})
		g.Go(func() error {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	logger.Infof("turnd listening on %s with %d workers", addr, workers)

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}

var _ logging.LeveledLogger = logrusAdapter{} //nolint:unused // compile-time interface check, see logger.go
