package main

import (
	"net"
	"sync"

	"github.com/pion/logging"

	"github.com/cydev/turnd/internal/metrics"
	"github.com/cydev/turnd/turn"
)

// relayListener owns the per-allocation UDP socket bound to a relayed
// port, forwarding peer→client traffic back through the shared client
// socket as a Data indication, or as a channel-data frame when the peer
// is channel-bound.
type relayListener struct {
	client net.Addr
	conn   *net.UDPConn
	done   chan struct{}
}

// relayManager opens and closes relayListeners in response to allocation
// lifecycle events, and wraps a metrics.Collector so both fire from the
// same turn.Controls callback.
type relayManager struct {
	demux      *turn.Demux
	clientConn net.PacketConn
	externalIP net.IP
	logger     logging.LeveledLogger
	metrics    *metrics.Collector

	mu        sync.Mutex
	listeners map[string]*relayListener
}

func newRelayManager(demux *turn.Demux, clientConn net.PacketConn, externalIP net.IP, logger logging.LeveledLogger, m *metrics.Collector) *relayManager {
	return &relayManager{
		demux:      demux,
		clientConn: clientConn,
		externalIP: externalIP,
		logger:     logger,
		metrics:    m,
		listeners:  make(map[string]*relayListener),
	}
}

// OnEvent implements turn.Controls.
func (r *relayManager) OnEvent(ev turn.Event) {
	r.metrics.OnEvent(ev)

	switch ev.Kind {
	case turn.EventAllocationCreated:
		r.open(ev.ClientAddr, ev.Port)
	case turn.EventAllocationDeleted:
		r.close(ev.ClientAddr)
	}
}

func (r *relayManager) open(client net.Addr, port uint16) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: r.externalIP, Port: int(port)})
	if err != nil {
		r.logger.Errorf("relay: listen on port %d for %s: %v", port, client, err)
		return
	}

	l := &relayListener{client: client, conn: conn, done: make(chan struct{})}

	r.mu.Lock()
	r.listeners[client.String()] = l
	r.mu.Unlock()

	go r.serve(l)
}

func (r *relayManager) close(client net.Addr) {
	r.mu.Lock()
	l, ok := r.listeners[client.String()]
	if ok {
		delete(r.listeners, client.String())
	}
	r.mu.Unlock()

	if ok {
		close(l.done)
		_ = l.conn.Close()
	}
}

func (r *relayManager) serve(l *relayListener) {
	buf := make([]byte, 2048)
	for {
		n, peer, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				r.logger.Warnf("relay: read from %s: %v", l.client, err)
				return
			}
		}

		out := r.demux.HandlePeerDatagram(l.client, peer.IP, peer.Port, buf[:n])
		if out == nil {
			continue
		}
		if _, err := r.clientConn.WriteTo(out.Payload, out.Dest); err != nil {
			r.logger.Warnf("relay: write to client %s: %v", out.Dest, err)
			continue
		}
		r.metrics.AddRelayedBytes(len(out.Payload))
	}
}

// Close shuts down every open relay listener.
func (r *relayManager) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, l := range r.listeners {
		close(l.done)
		_ = l.conn.Close()
		delete(r.listeners, key)
	}
}
