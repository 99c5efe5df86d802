package turn

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// quietInterval is the additional hold-off after a channel binding's TTL
// expires during which neither its channel number nor its peer address
// may be rebound to something else.
const quietInterval = 300 * time.Second

// peerAddr is a comparable transport address, used as a map key alongside
// net.Addr values that carry richer (and non-comparable) state.
type peerAddr struct {
	ip   string
	port int
}

func newPeerAddr(ip net.IP, port int) peerAddr {
	return peerAddr{ip: ip.String(), port: port}
}

func (p peerAddr) String() string {
	return net.JoinHostPort(p.ip, fmt.Sprintf("%d", p.port))
}

func (p peerAddr) IP() net.IP {
	return net.ParseIP(p.ip)
}

// permission grants peer-IP-scoped relaying rights within an allocation.
type permission struct {
	expiresAt time.Time
}

// channelBinding pairs a channel number with a peer address inside one
// allocation.
type channelBinding struct {
	peer       peerAddr
	expiresAt  time.Time
	quietUntil time.Time // zero until the binding has expired once
}

func (b channelBinding) blocksRebind(now time.Time) bool {
	return now.Before(b.expiresAt) || now.Before(b.quietUntil)
}

// allocation is one client's leased relay endpoint. All fields are
// guarded by mu; callers hold the allocation's own lock for the duration
// of one state mutation and must not perform network I/O while holding
// it.
type allocation struct {
	mu sync.Mutex

	clientAddr  net.Addr
	username    string
	relayedPort uint16
	expiresAt   time.Time

	permissions map[string]*permission       // keyed by peer IP string
	channels    map[uint16]*channelBinding   // channel -> binding
	byPeer      map[peerAddr]uint16          // peer -> channel, live bindings only
	expired     map[channelKey]channelBinding // recently expired, for quiet-interval checks
}

type channelKey struct {
	channel uint16
	peer    peerAddr
}

func newAllocation(client net.Addr, username string, port uint16, expiresAt time.Time) *allocation {
	return &allocation{
		clientAddr:  client,
		username:    username,
		relayedPort: port,
		expiresAt:   expiresAt,
		permissions: make(map[string]*permission),
		channels:    make(map[uint16]*channelBinding),
		byPeer:      make(map[peerAddr]uint16),
		expired:     make(map[channelKey]channelBinding),
	}
}

func (a *allocation) isExpired(now time.Time) bool {
	return !now.Before(a.expiresAt)
}

// insertPermission installs or refreshes a permission for ip. Idempotent.
func (a *allocation) insertPermission(ip net.IP, now time.Time, ttl time.Duration) {
	key := ip.String()
	p, ok := a.permissions[key]
	if !ok {
		p = &permission{}
		a.permissions[key] = p
	}
	exp := now.Add(ttl)
	if exp.After(p.expiresAt) {
		p.expiresAt = exp
	}
}

func (a *allocation) hasPermission(ip net.IP, now time.Time) bool {
	p, ok := a.permissions[ip.String()]
	return ok && now.Before(p.expiresAt)
}

// rebindBlocked reports whether channel or peer is held by the quiet
// interval from a just-expired, different binding.
func (a *allocation) rebindBlocked(channel uint16, peer peerAddr, now time.Time) bool {
	for k, b := range a.expired {
		if !b.blocksRebind(now) {
			delete(a.expired, k)
			continue
		}
		if k.channel == channel && k.peer != peer {
			return true
		}
		if k.peer == peer && k.channel != channel {
			return true
		}
	}
	return false
}

// insertChannel binds channel to peer, installing/refreshing its
// permission atomically. Returns false on conflict: channel or peer
// already bound to something else and still within its quiet interval.
func (a *allocation) insertChannel(channel uint16, peer peerAddr, now time.Time, channelTTL, permissionTTL time.Duration) bool {
	if existing, ok := a.channels[channel]; ok {
		if existing.peer != peer {
			return false
		}
	} else if existingChannel, ok := a.byPeer[peer]; ok && existingChannel != channel {
		return false
	}
	if a.rebindBlocked(channel, peer, now) {
		return false
	}

	a.channels[channel] = &channelBinding{peer: peer, expiresAt: now.Add(channelTTL)}
	a.byPeer[peer] = channel
	a.insertPermission(peer.IP(), now, permissionTTL)

	return true
}

func (a *allocation) lookupChannel(channel uint16, now time.Time) (peerAddr, bool) {
	b, ok := a.channels[channel]
	if !ok || !now.Before(b.expiresAt) {
		return peerAddr{}, false
	}
	return b.peer, true
}

func (a *allocation) lookupPeerChannel(peer peerAddr, now time.Time) (uint16, bool) {
	c, ok := a.byPeer[peer]
	if !ok {
		return 0, false
	}
	b := a.channels[c]
	if b == nil || !now.Before(b.expiresAt) {
		return 0, false
	}
	return c, true
}

// sweepChannels expires channel bindings whose TTL has passed, moving
// them into the quiet-interval set.
func (a *allocation) sweepChannels(now time.Time) {
	for c, b := range a.channels {
		if now.Before(b.expiresAt) {
			continue
		}
		delete(a.channels, c)
		if a.byPeer[b.peer] == c {
			delete(a.byPeer, b.peer)
		}
		a.expired[channelKey{channel: c, peer: b.peer}] = channelBinding{
			peer:       b.peer,
			expiresAt:  b.expiresAt,
			quietUntil: b.expiresAt.Add(quietInterval),
		}
	}
	for k, b := range a.expired {
		if !b.blocksRebind(now) {
			delete(a.expired, k)
		}
	}
}

func (a *allocation) sweepPermissions(now time.Time) {
	for ip, p := range a.permissions {
		if !now.Before(p.expiresAt) {
			delete(a.permissions, ip)
		}
	}
}

// portPool hands out relayed ports from a contiguous range, one per
// allocation.
type portPool struct {
	mu   sync.Mutex
	free []uint16
	used map[uint16]struct{}
}

func newPortPool(r PortRange) *portPool {
	p := &portPool{used: make(map[uint16]struct{})}
	for port := r.Min; port <= r.Max; port++ {
		p.free = append(p.free, port)
		if port == r.Max {
			break // guards against Max == 0xFFFF wraparound
		}
	}
	return p
}

// acquire reserves and returns a free port, or ok=false if exhausted.
func (p *portPool) acquire() (port uint16, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return 0, false
	}
	port = p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.used[port] = struct{}{}
	return port, true
}

// release returns port to the pool.
func (p *portPool) release(port uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.used[port]; !ok {
		return
	}
	delete(p.used, port)
	p.free = append(p.free, port)
}
