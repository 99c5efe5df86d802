package turn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Realm:           "example.org",
		RelayedPorts:    PortRange{Min: 50000, Max: 50001},
		DefaultLifetime: 600,
		MaxLifetime:     3600,
		NonceTTL:        3600,
		PermissionTTL:   300,
		ChannelTTL:      600,
		Auth:            StaticAuth{"alice": "password123"},
	}.WithDefaults()
}

func TestState_AllocationUniqueness(t *testing.T) {
	s := NewState(testConfig())
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}

	_, result := s.CreateAllocation(client, "alice")
	require.Equal(t, AllocateOK, result)

	_, result = s.CreateAllocation(client, "alice")
	assert.Equal(t, AllocateExists, result, "a client may hold only one allocation at a time")
}

func TestState_AllocationCollisionVsPoolExhaustionAreDistinct(t *testing.T) {
	cfg := testConfig()
	cfg.RelayedPorts = PortRange{Min: 50000, Max: 50000}
	s := NewState(cfg)

	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}
	other := &net.UDPAddr{IP: net.ParseIP("203.0.113.10"), Port: 4000}

	_, result := s.CreateAllocation(client, "alice")
	require.Equal(t, AllocateOK, result)

	// Same client retrying Allocate: collision, not capacity.
	_, result = s.CreateAllocation(client, "alice")
	assert.Equal(t, AllocateExists, result)

	// A different client: the single port is already taken, so this is
	// capacity exhaustion, not a collision.
	_, result = s.CreateAllocation(other, "alice")
	assert.Equal(t, AllocateCapacityExceeded, result)
}

func TestState_PortPoolExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.RelayedPorts = PortRange{Min: 50000, Max: 50000}
	s := NewState(cfg)

	first := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1}
	second := &net.UDPAddr{IP: net.ParseIP("203.0.113.2"), Port: 2}

	_, result := s.CreateAllocation(first, "alice")
	require.Equal(t, AllocateOK, result)

	_, result = s.CreateAllocation(second, "alice")
	assert.Equal(t, AllocateCapacityExceeded, result, "the relayed port range is exhausted")
}

func TestState_RefreshZeroDeletesAllocation(t *testing.T) {
	s := NewState(testConfig())
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}

	port, result := s.CreateAllocation(client, "alice")
	require.Equal(t, AllocateOK, result)
	require.NotZero(t, port)

	lifetime, ok := s.Refresh(client, 0, true)
	require.True(t, ok)
	assert.Zero(t, lifetime)

	_, ok = s.RelayedPort(client)
	assert.False(t, ok, "allocation must be gone after an explicit LIFETIME=0 refresh")

	// The port must be returned to the pool.
	port2, result := s.CreateAllocation(client, "alice")
	require.Equal(t, AllocateOK, result)
	assert.Equal(t, port, port2)
}

func TestState_RefreshZeroOnAbsentAllocationIsIdempotent(t *testing.T) {
	s := NewState(testConfig())
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}

	// No allocation exists yet. An explicit zero lifetime refresh must
	// still report success, never 437; an absent LIFETIME means the
	// default lifetime, so it fails like any nonzero refresh.
	lifetime, ok := s.Refresh(client, 0, false)
	assert.False(t, ok)
	assert.Zero(t, lifetime)

	lifetime, ok = s.Refresh(client, 0, true)
	assert.True(t, ok)
	assert.Zero(t, lifetime)
}

func TestState_RefreshOnAbsentAllocationWithNonzeroLifetimeFails(t *testing.T) {
	s := NewState(testConfig())
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}

	_, ok := s.Refresh(client, 1200, true)
	assert.False(t, ok)
}

func TestState_DesiredLifetimeClamping(t *testing.T) {
	s := NewState(testConfig())

	assert.Equal(t, s.cfg.DefaultLifetime, s.desiredLifetime(0, false), "absent lifetime uses the default")
	assert.Equal(t, s.cfg.DefaultLifetime, s.desiredLifetime(10, true), "below-default requests clamp up to the default")
	assert.Equal(t, s.cfg.MaxLifetime, s.desiredLifetime(999999, true), "above-max requests clamp down to the max")
	assert.Equal(t, uint32(1800), s.desiredLifetime(1800, true), "in-range requests pass through unchanged")
	assert.Zero(t, s.desiredLifetime(0, true), "an explicit zero always means delete")
}

func TestState_PermissionAndChannelLifecycle(t *testing.T) {
	s := NewState(testConfig())
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}
	peer := net.ParseIP("198.51.100.7")

	_, result := s.CreateAllocation(client, "alice")
	require.Equal(t, AllocateOK, result)

	assert.False(t, s.HasPermission(client, peer))
	assert.True(t, s.InsertPermission(client, peer))
	assert.True(t, s.HasPermission(client, peer))

	assert.True(t, s.InsertChannel(client, peer, 9000, 0x4000))
	gotIP, gotPort, ok := s.LookupChannel(client, 0x4000)
	require.True(t, ok)
	assert.True(t, gotIP.Equal(peer))
	assert.Equal(t, 9000, gotPort)

	channel, ok := s.LookupPeerChannel(client, peer, 9000)
	require.True(t, ok)
	assert.Equal(t, uint16(0x4000), channel)
}

func TestState_PermissionRequiresAllocation(t *testing.T) {
	s := NewState(testConfig())
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}
	assert.False(t, s.InsertPermission(client, net.ParseIP("198.51.100.7")), "no allocation exists yet")
}

func TestState_GetPasswordCachesDerivedKey(t *testing.T) {
	s := NewState(testConfig())
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}

	key1, ok := s.GetPassword(context.Background(), client, "alice")
	require.True(t, ok)

	// Remove the Auth collaborator; a cached lookup must still succeed.
	s.cfg.Auth = nil
	key2, ok := s.GetPassword(context.Background(), client, "alice")
	require.True(t, ok)
	assert.Equal(t, key1, key2)

	_, ok = s.GetPassword(context.Background(), client, "unknown")
	assert.False(t, ok)
}

func TestState_Sweep(t *testing.T) {
	cfg := testConfig()
	cfg.DefaultLifetime = 1
	cfg.MaxLifetime = 1
	s := NewState(cfg)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}

	port, result := s.CreateAllocation(client, "alice")
	require.Equal(t, AllocateOK, result)
	_, ok := s.Refresh(client, 0, false)
	require.True(t, ok)

	s.Sweep(time.Now().Add(2 * time.Second))

	_, ok = s.RelayedPort(client)
	assert.False(t, ok, "sweep must reap expired allocations")

	// The port must have been released back to the pool.
	port2, result := s.CreateAllocation(client, "alice")
	require.Equal(t, AllocateOK, result)
	assert.Equal(t, port, port2)
}
