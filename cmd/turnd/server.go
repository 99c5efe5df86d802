package main

import (
	"context"
	"net"
	"time"

	"github.com/pion/logging"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cydev/turnd/internal/metrics"
	"github.com/cydev/turnd/turn"
)

// sweepInterval bounds how stale expired state can get before a sweep
// observes it.
const sweepInterval = 10 * time.Second

// server ties together the relay state, the demultiplexer, and the
// shared client-facing socket that a pool of workers reads from.
type server struct {
	state   *turn.State
	demux   *turn.Demux
	conn    net.PacketConn
	relay   *relayManager
	metrics *metrics.Collector
	logger  logging.LeveledLogger
}

func newServer(cfg turn.Config, conn net.PacketConn, reg prometheus.Registerer, logger logging.LeveledLogger) *server {
	collector := metrics.NewCollector(reg)

	// relay forwards peer traffic and also feeds collector; it needs a
	// Demux, which needs a State, which needs relay as its Controls
	// collaborator, so relay.demux is wired in after state is built.
	relay := newRelayManager(nil, conn, cfg.ExternalIP, logger, collector)
	cfg.Controls = relay

	state := turn.NewState(cfg)
	demux := turn.NewDemux(state, cfg)
	relay.demux = demux

	return &server{
		state:   state,
		demux:   demux,
		conn:    conn,
		relay:   relay,
		metrics: collector,
		logger:  logger,
	}
}

// serveWorker runs one receive loop against the shared socket. Safe to
// run from multiple goroutines concurrently.
func (s *server) serveWorker(ctx context.Context, bufferSize int) error {
	buf := make([]byte, bufferSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				s.logger.Warnf("serve: read: %v", err)
				continue
			}
		}

		for _, out := range s.demux.HandleClient(ctx, buf[:n], addr) {
			if _, err := s.conn.WriteTo(out.Payload, out.Dest); err != nil {
				s.logger.Warnf("serve: write to %s: %v", out.Dest, err)
				continue
			}
			s.metrics.AddRelayedBytes(len(out.Payload))
		}
	}
}

// runSweeper calls State.Sweep at sweepInterval until ctx is cancelled.
func (s *server) runSweeper(ctx context.Context) error {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.state.Sweep(now)
		}
	}
}
