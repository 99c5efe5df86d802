package turn

import (
	"context"
	"hash/fnv"
	"net"
	"sync"
	"time"

	stun "github.com/cydev/turnd"
)

const shardCount = 16 // power of two, see shardFor

type credKey struct {
	client   string
	username string
}

type credEntry struct {
	key []byte
}

// shard holds one slice of the relay state, guarded by its own lock so
// writers never contend across unrelated clients.
type shard struct {
	mu          sync.Mutex
	allocations map[string]*allocation
	credentials map[credKey]credEntry
}

func newShard() *shard {
	return &shard{
		allocations: make(map[string]*allocation),
		credentials: make(map[credKey]credEntry),
	}
}

// State is the single logical relay store: nonces, credentials,
// allocations, permissions, and channel bindings, all indexed and
// TTL-managed. Safe for concurrent use.
type State struct {
	cfg    Config
	shards [shardCount]*shard
	pool   *portPool
	nonces *nonceLedger

	controls Controls
}

// NewState builds a State from cfg, applying spec defaults for any
// unset TTL/lifetime fields.
func NewState(cfg Config) *State {
	cfg = cfg.WithDefaults()
	s := &State{
		cfg:    cfg,
		pool:   newPortPool(cfg.RelayedPorts),
		nonces: newNonceLedger(time.Duration(cfg.NonceTTL) * time.Second),
	}
	for i := range s.shards {
		s.shards[i] = newShard()
	}
	s.controls = cfg.Controls
	if s.controls == nil {
		s.controls = noopControls{}
	}
	return s
}

func shardIndex(client net.Addr) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(client.String()))
	return int(h.Sum32() & (shardCount - 1))
}

func (s *State) shardFor(client net.Addr) *shard {
	return s.shards[shardIndex(client)]
}

// GetNonce returns the client's current unexpired nonce, minting a new
// one if absent or expired.
func (s *State) GetNonce(client net.Addr) string {
	return s.nonces.get(client, time.Now())
}

// CheckNonce reports whether nonce is the unexpired value on file for
// client.
func (s *State) CheckNonce(client net.Addr, nonce string) bool {
	return s.nonces.check(client, nonce, time.Now())
}

// GetPassword returns the long-term credential key for (client, username),
// consulting the configured Auth collaborator and caching the result on
// miss.
func (s *State) GetPassword(ctx context.Context, client net.Addr, username string) ([]byte, bool) {
	sh := s.shardFor(client)
	key := credKey{client: client.String(), username: username}

	sh.mu.Lock()
	entry, ok := sh.credentials[key]
	sh.mu.Unlock()
	if ok {
		return entry.key, true
	}

	if s.cfg.Auth == nil {
		return nil, false
	}
	password, ok := s.cfg.Auth.Lookup(ctx, client, username)
	if !ok {
		return nil, false
	}
	derived := stun.NewLongTermIntegrity(username, s.cfg.Realm, password)
	s.Register(client, username, []byte(derived))

	return []byte(derived), true
}

// Register installs a precomputed long-term credential key for
// (client, username).
func (s *State) Register(client net.Addr, username string, key []byte) {
	sh := s.shardFor(client)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.credentials[credKey{client: client.String(), username: username}] = credEntry{key: key}
}

// AllocateResult reports why CreateAllocation did or did not hand out a
// relayed port, so callers can distinguish a pre-existing allocation from
// port-pool exhaustion.
type AllocateResult int

const (
	// AllocateOK means a new allocation was created and port is valid.
	AllocateOK AllocateResult = iota
	// AllocateExists means client already holds an allocation.
	AllocateExists
	// AllocateCapacityExceeded means the relayed port pool is exhausted.
	AllocateCapacityExceeded
)

// CreateAllocation reserves a relayed port and installs a fresh
// allocation for client. Fails if an allocation already exists for this
// client or the port pool is exhausted; the two cases are reported
// distinctly via the returned AllocateResult.
func (s *State) CreateAllocation(client net.Addr, username string) (uint16, AllocateResult) {
	sh := s.shardFor(client)
	key := client.String()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.allocations[key]; exists {
		return 0, AllocateExists
	}
	port, ok := s.pool.acquire()
	if !ok {
		return 0, AllocateCapacityExceeded
	}
	now := time.Now()
	sh.allocations[key] = newAllocation(client, username, port, now.Add(time.Duration(s.cfg.DefaultLifetime)*time.Second))

	s.controls.OnEvent(Event{Kind: EventAllocationCreated, ClientAddr: client, Username: username, Port: port})

	return port, AllocateOK
}

// desiredLifetime implements the original's documented algorithm
// (original_source/turn_node/remux/refresh.rs): an explicit zero always
// means delete; otherwise clamp the request to max, then round up to the
// configured default if the clamped value falls short of it.
func (s *State) desiredLifetime(requested uint32, hasLifetime bool) uint32 {
	if hasLifetime && requested == 0 {
		return 0
	}
	l := s.cfg.DefaultLifetime
	if hasLifetime {
		l = requested
		if l > s.cfg.MaxLifetime {
			l = s.cfg.MaxLifetime
		}
		if l < s.cfg.DefaultLifetime {
			l = s.cfg.DefaultLifetime
		}
	}
	return l
}

// Refresh applies the "desired lifetime" algorithm for client. Returns
// the lifetime to report back and whether the operation should be
// treated as a success. A non-existent allocation with a non-zero
// requested lifetime is reported as ok=false (mapped to 437 by the
// handler); an absent LIFETIME counts as the default lifetime, so it
// fails the same way. Refreshing an already-absent allocation with an
// explicit zero lifetime is a no-op success, not an error.
func (s *State) Refresh(client net.Addr, requested uint32, hasLifetime bool) (lifetime uint32, ok bool) {
	desired := s.desiredLifetime(requested, hasLifetime)

	sh := s.shardFor(client)
	key := client.String()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	alloc, exists := sh.allocations[key]
	if !exists {
		return 0, desired == 0
	}
	if desired == 0 {
		delete(sh.allocations, key)
		s.pool.release(alloc.relayedPort)
		s.controls.OnEvent(Event{Kind: EventAllocationDeleted, ClientAddr: client, Username: alloc.username})
		return 0, true
	}

	alloc.mu.Lock()
	alloc.expiresAt = time.Now().Add(time.Duration(desired) * time.Second)
	alloc.mu.Unlock()

	return desired, true
}

// InsertPermission installs or refreshes a permission for peerIP under
// client's allocation. Fails if no allocation exists.
func (s *State) InsertPermission(client net.Addr, peerIP net.IP) bool {
	alloc, ok := s.lookupAllocation(client)
	if !ok {
		return false
	}
	alloc.mu.Lock()
	alloc.insertPermission(peerIP, time.Now(), time.Duration(s.cfg.PermissionTTL)*time.Second)
	alloc.mu.Unlock()

	s.controls.OnEvent(Event{Kind: EventPermissionInstalled, ClientAddr: client, Username: alloc.username, PeerIP: peerIP})

	return true
}

// HasPermission reports whether client's allocation has a live
// permission for peerIP.
func (s *State) HasPermission(client net.Addr, peerIP net.IP) bool {
	alloc, ok := s.lookupAllocation(client)
	if !ok {
		return false
	}
	alloc.mu.Lock()
	defer alloc.mu.Unlock()
	return alloc.hasPermission(peerIP, time.Now())
}

// InsertChannel binds channel to (peerIP, peerPort) within client's
// allocation, installing a permission for peerIP atomically. Returns
// false if no allocation exists or the binding conflicts with a live or
// quiesced one.
func (s *State) InsertChannel(client net.Addr, peerIP net.IP, peerPort int, channel uint16) bool {
	alloc, ok := s.lookupAllocation(client)
	if !ok {
		return false
	}
	alloc.mu.Lock()
	defer alloc.mu.Unlock()

	now := time.Now()
	if !alloc.insertChannel(channel, newPeerAddr(peerIP, peerPort), now,
		time.Duration(s.cfg.ChannelTTL)*time.Second,
		time.Duration(s.cfg.PermissionTTL)*time.Second) {
		return false
	}

	s.controls.OnEvent(Event{
		Kind: EventChannelBound, ClientAddr: client, Username: alloc.username,
		PeerIP: peerIP, Channel: channel, Port: uint16(peerPort), //nolint:gosec // G115, port is 16-bit
	})

	return true
}

// LookupChannel returns the peer address bound to channel within
// client's allocation.
func (s *State) LookupChannel(client net.Addr, channel uint16) (net.IP, int, bool) {
	alloc, ok := s.lookupAllocation(client)
	if !ok {
		return nil, 0, false
	}
	alloc.mu.Lock()
	defer alloc.mu.Unlock()
	p, ok := alloc.lookupChannel(channel, time.Now())
	if !ok {
		return nil, 0, false
	}
	return p.IP(), p.port, true
}

// LookupPeerChannel returns the channel number bound to (peerIP,
// peerPort) within client's allocation.
func (s *State) LookupPeerChannel(client net.Addr, peerIP net.IP, peerPort int) (uint16, bool) {
	alloc, ok := s.lookupAllocation(client)
	if !ok {
		return 0, false
	}
	alloc.mu.Lock()
	defer alloc.mu.Unlock()
	return alloc.lookupPeerChannel(newPeerAddr(peerIP, peerPort), time.Now())
}

// RelayedPort returns client's relayed port, if it has a live allocation.
func (s *State) RelayedPort(client net.Addr) (uint16, bool) {
	alloc, ok := s.lookupAllocation(client)
	if !ok {
		return 0, false
	}
	return alloc.relayedPort, true
}

func (s *State) lookupAllocation(client net.Addr) (*allocation, bool) {
	sh := s.shardFor(client)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	alloc, ok := sh.allocations[client.String()]
	if !ok || alloc.isExpired(time.Now()) {
		return nil, false
	}
	return alloc, true
}

// Sweep removes expired allocations (cascading to their permissions and
// channels) and expired channel bindings/permissions within live
// allocations. Call at a cadence <= min(TTL-granularity, 30s).
func (s *State) Sweep(now time.Time) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, alloc := range sh.allocations {
			alloc.mu.Lock()
			if alloc.isExpired(now) {
				alloc.mu.Unlock()
				delete(sh.allocations, key)
				s.pool.release(alloc.relayedPort)
				s.controls.OnEvent(Event{Kind: EventAllocationDeleted, ClientAddr: alloc.clientAddr, Username: alloc.username})
				continue
			}
			alloc.sweepChannels(now)
			alloc.sweepPermissions(now)
			alloc.mu.Unlock()
		}
		sh.mu.Unlock()
	}
	s.nonces.sweep(now)
}
