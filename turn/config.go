// Package turn implements the server-side TURN (RFC 5766) relay state
// machine on top of the stun message codec: allocations, permissions,
// channel bindings, nonces, and the request handlers and demultiplexer
// that drive them.
package turn

import (
	"context"
	"net"
	"os"

	"github.com/pion/logging"
)

// PortRange is an inclusive range of relayed ports handed out to
// allocations.
type PortRange struct {
	Min uint16
	Max uint16
}

// Config is the collaborator contract a Server is built from.
type Config struct {
	ListenAddr      string
	ExternalIP      net.IP
	Realm           string
	BufferSize      int
	Threads         int
	RelayedPorts    PortRange
	DefaultLifetime uint32
	MaxLifetime     uint32
	NonceTTL        uint32
	PermissionTTL   uint32
	ChannelTTL      uint32

	Auth     Auth
	Controls Controls
	Logger   logging.LeveledLogger
}

const (
	defaultLifetimeSeconds = 600
	maxLifetimeSeconds     = 3600
	defaultNonceTTL        = 3600
	defaultPermissionTTL   = 300
	defaultChannelTTL      = 600
	defaultBufferSize      = 2048
)

// WithDefaults returns a copy of c with zero-valued fields replaced by the
// spec's defaults (§3: allocation lifetime 600/3600, nonce TTL 3600,
// permission TTL 300, channel TTL 600). NewState applies it internally;
// callers that need the effective values before building a State (e.g. to
// size a read buffer) may call it directly.
func (c Config) WithDefaults() Config {
	if c.DefaultLifetime == 0 {
		c.DefaultLifetime = defaultLifetimeSeconds
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = maxLifetimeSeconds
	}
	if c.NonceTTL == 0 {
		c.NonceTTL = defaultNonceTTL
	}
	if c.PermissionTTL == 0 {
		c.PermissionTTL = defaultPermissionTTL
	}
	if c.ChannelTTL == 0 {
		c.ChannelTTL = defaultChannelTTL
	}
	if c.BufferSize == 0 {
		c.BufferSize = defaultBufferSize
	}
	if c.Logger == nil {
		c.Logger = logging.NewDefaultLeveledLoggerForScope("turn", logging.LogLevelWarn, os.Stdout)
	}
	return c
}

// Auth resolves a client's long-term-credential password. Lookup failures
// (unknown user) are reported by returning ok=false, not an error: an
// unknown user is routed to a 401 response, not a server fault.
type Auth interface {
	Lookup(ctx context.Context, clientAddr net.Addr, username string) (password string, ok bool)
}

// EventKind enumerates the notifications Controls receives.
type EventKind int

// Event kinds delivered to Controls.OnEvent.
const (
	EventAllocationCreated EventKind = iota
	EventAllocationDeleted
	EventPermissionInstalled
	EventChannelBound
)

func (k EventKind) String() string {
	switch k {
	case EventAllocationCreated:
		return "allocation-created"
	case EventAllocationDeleted:
		return "allocation-deleted"
	case EventPermissionInstalled:
		return "permission-installed"
	case EventChannelBound:
		return "channel-bound"
	default:
		return "unknown"
	}
}

// Event is delivered to Controls for every externally-visible state change.
type Event struct {
	Kind       EventKind
	ClientAddr net.Addr
	Username   string
	PeerIP     net.IP
	Channel    uint16
	Port       uint16
}

// Controls is the external sidechannel collaborator through which an
// operator observes relay state changes. It is never consulted for
// decisions, only notified.
type Controls interface {
	OnEvent(Event)
}

// noopControls discards every event; used when Config.Controls is nil.
type noopControls struct{}

func (noopControls) OnEvent(Event) {}
