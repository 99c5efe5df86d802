package turn

import (
	"context"
	"net"
	"testing"

	stun "github.com/cydev/turnd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRealm = "example.org"

func buildRequest(t *testing.T, method stun.Method, setters ...stun.Setter) *stun.Message {
	t.Helper()
	m := new(stun.Message)
	require.NoError(t, m.NewTransactionID())
	m.Type = stun.MessageType{Method: method, Class: stun.ClassRequest}
	require.NoError(t, m.Build(setters...))
	m.WriteHeader()
	return m
}

// signedRequest builds a request carrying USERNAME/REALM/NONCE and a valid
// MESSAGE-INTEGRITY computed over the long-term credential key, the shape
// every authenticated method expects after the common preamble.
func signedRequest(t *testing.T, method stun.Method, username, realm, nonce, password string, setters ...stun.Setter) *stun.Message {
	t.Helper()
	all := append([]stun.Setter{
		stun.NewUsername(username),
		stun.NewRealm(realm),
		stun.NewNonce(nonce),
	}, setters...)
	key := stun.NewLongTermIntegrity(username, realm, password)
	all = append(all, key)
	m := buildRequest(t, method, all...)
	return m
}

func decode(t *testing.T, raw []byte) *stun.Message {
	t.Helper()
	m := &stun.Message{Raw: raw}
	require.NoError(t, m.Decode())
	return m
}

func newTestDemux(t *testing.T) (*Demux, Config) {
	t.Helper()
	cfg := Config{
		Realm:           testRealm,
		ExternalIP:      net.ParseIP("192.0.2.1"),
		RelayedPorts:    PortRange{Min: 50000, Max: 50010},
		DefaultLifetime: 600,
		MaxLifetime:     3600,
		NonceTTL:        3600,
		PermissionTTL:   300,
		ChannelTTL:      600,
		Auth:            StaticAuth{"alice": "password123"},
	}.WithDefaults()
	state := NewState(cfg)
	return NewDemux(state, cfg), cfg
}

// A Binding request always succeeds, with no credentials required.
func TestBindingAlwaysSucceeds(t *testing.T) {
	d, _ := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}

	req := buildRequest(t, stun.MethodBinding)
	out := d.HandleClient(context.Background(), req.Raw, client)
	require.Len(t, out, 1)

	resp := decode(t, out[0].Payload)
	assert.Equal(t, stun.ClassSuccessResponse, resp.Type.Class)
	assert.Equal(t, stun.MethodBinding, resp.Type.Method)

	var mapped stun.XORMappedAddress
	require.NoError(t, mapped.GetFrom(resp))
	assert.True(t, mapped.IP.Equal(client.IP))
	assert.Equal(t, client.Port, mapped.Port)
}

// Allocate without credentials is rejected with 401 and a fresh nonce.
func TestAllocateWithoutCredentialsIsChallenged(t *testing.T) {
	d, _ := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}

	req := buildRequest(t, stun.MethodAllocate, stun.RequestedTransport{Protocol: stun.ProtoUDP})
	out := d.HandleClient(context.Background(), req.Raw, client)
	require.Len(t, out, 1)

	resp := decode(t, out[0].Payload)
	assert.Equal(t, stun.ClassErrorResponse, resp.Type.Class)

	var ec stun.ErrorCodeAttribute
	require.NoError(t, ec.GetFrom(resp))
	assert.Equal(t, stun.CodeUnauthorized, ec.Code)

	var nonce stun.Nonce
	assert.NoError(t, nonce.GetFrom(resp), "a 401 response must carry a NONCE to retry with")
}

// A correctly authenticated Allocate succeeds and reserves a unique
// relayed port, reusing the server-issued nonce from the 401 challenge.
func TestAllocateWithValidCredentialsReservesPort(t *testing.T) {
	d, cfg := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}
	ctx := context.Background()

	challenge := buildRequest(t, stun.MethodAllocate, stun.RequestedTransport{Protocol: stun.ProtoUDP})
	out := d.HandleClient(ctx, challenge.Raw, client)
	require.Len(t, out, 1)
	resp := decode(t, out[0].Payload)
	var nonce stun.Nonce
	require.NoError(t, nonce.GetFrom(resp))

	req := signedRequest(t, stun.MethodAllocate, "alice", cfg.Realm, nonce.String(), "password123",
		stun.RequestedTransport{Protocol: stun.ProtoUDP})
	out = d.HandleClient(ctx, req.Raw, client)
	require.Len(t, out, 1)

	success := decode(t, out[0].Payload)
	assert.Equal(t, stun.ClassSuccessResponse, success.Type.Class)

	var relayed stun.XORRelayedAddress
	require.NoError(t, relayed.GetFrom(success))
	assert.True(t, relayed.IP.Equal(cfg.ExternalIP))

	var lifetime stun.Lifetime
	require.NoError(t, lifetime.GetFrom(success))
	assert.Equal(t, cfg.DefaultLifetime, uint32(lifetime))

	port, ok := d.State.RelayedPort(client)
	require.True(t, ok)
	assert.Equal(t, uint16(relayed.Port), port)
}

// A second Allocate from a client that already holds one is a 437
// Allocation Mismatch, not 508 Insufficient Capacity.
func TestDuplicateAllocateIsMismatchNotCapacity(t *testing.T) {
	d, cfg := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}
	ctx := context.Background()

	nonce := d.State.GetNonce(client)
	req := signedRequest(t, stun.MethodAllocate, "alice", cfg.Realm, nonce, "password123",
		stun.RequestedTransport{Protocol: stun.ProtoUDP})
	out := d.HandleClient(ctx, req.Raw, client)
	require.Len(t, out, 1)
	assert.Equal(t, stun.ClassSuccessResponse, decode(t, out[0].Payload).Type.Class)

	again := signedRequest(t, stun.MethodAllocate, "alice", cfg.Realm, nonce, "password123",
		stun.RequestedTransport{Protocol: stun.ProtoUDP})
	out = d.HandleClient(ctx, again.Raw, client)
	require.Len(t, out, 1)

	resp := decode(t, out[0].Payload)
	assert.Equal(t, stun.ClassErrorResponse, resp.Type.Class)

	var ec stun.ErrorCodeAttribute
	require.NoError(t, ec.GetFrom(resp))
	assert.Equal(t, stun.CodeAllocationMismatch, ec.Code)
}

// Once a channel is bound, datagrams from the peer arrive as
// ChannelData frames, and client-sent ChannelData is forwarded to the peer.
func TestChannelBindForwardsBothDirections(t *testing.T) {
	d, cfg := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}
	peer := &net.UDPAddr{IP: net.ParseIP("198.51.100.9"), Port: 9000}
	ctx := context.Background()

	nonce := d.State.GetNonce(client)
	allocReq := signedRequest(t, stun.MethodAllocate, "alice", cfg.Realm, nonce, "password123",
		stun.RequestedTransport{Protocol: stun.ProtoUDP})
	require.Len(t, d.HandleClient(ctx, allocReq.Raw, client), 1)

	bindReq := signedRequest(t, stun.MethodChannelBind, "alice", cfg.Realm, nonce, "password123",
		stun.ChannelNumberAttr{Number: 0x4000},
		stun.XORPeerAddress{IP: peer.IP, Port: peer.Port})
	out := d.HandleClient(ctx, bindReq.Raw, client)
	require.Len(t, out, 1)
	resp := decode(t, out[0].Payload)
	assert.Equal(t, stun.ClassSuccessResponse, resp.Type.Class)

	// Peer -> client: a datagram arriving on the relayed port is framed as
	// ChannelData addressed back to the client.
	peerPayload := []byte("hello from peer")
	fwd := d.HandlePeerDatagram(client, peer.IP, peer.Port, peerPayload)
	require.NotNil(t, fwd)
	var cd stun.ChannelData
	require.NoError(t, cd.Decode(fwd.Payload))
	assert.Equal(t, uint16(0x4000), cd.ChannelNumber)
	assert.Equal(t, peerPayload, cd.Data)
	assert.Equal(t, client, fwd.Dest)

	// Client -> peer: a ChannelData frame from the client is unwrapped and
	// forwarded to the bound peer.
	clientPayload := []byte("hello from client")
	frame := &stun.ChannelData{ChannelNumber: 0x4000, Data: clientPayload}
	out = d.HandleClient(ctx, frame.Encode(), client)
	require.Len(t, out, 1)
	assert.Equal(t, clientPayload, out[0].Payload)
	assert.Equal(t, &net.UDPAddr{IP: peer.IP, Port: peer.Port}, out[0].Dest)
}

// A request carrying a stale (or absent) nonce is rejected with 438
// and a fresh nonce to retry with.
func TestStaleNonceIsRejectedWithFreshNonce(t *testing.T) {
	d, cfg := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}

	req := signedRequest(t, stun.MethodAllocate, "alice", cfg.Realm, "not-a-real-nonce", "password123",
		stun.RequestedTransport{Protocol: stun.ProtoUDP})
	out := d.HandleClient(context.Background(), req.Raw, client)
	require.Len(t, out, 1)

	resp := decode(t, out[0].Payload)
	var ec stun.ErrorCodeAttribute
	require.NoError(t, ec.GetFrom(resp))
	assert.Equal(t, stun.CodeStaleNonce, ec.Code)

	var nonce stun.Nonce
	require.NoError(t, nonce.GetFrom(resp))
	assert.NotEqual(t, "not-a-real-nonce", nonce.String())
}

// Refreshing an allocation with LIFETIME=0 is idempotent even when
// issued twice in a row, and even when no allocation exists at all.
func TestRefreshZeroIsIdempotent(t *testing.T) {
	d, cfg := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}
	ctx := context.Background()

	nonce := d.State.GetNonce(client)
	allocReq := signedRequest(t, stun.MethodAllocate, "alice", cfg.Realm, nonce, "password123",
		stun.RequestedTransport{Protocol: stun.ProtoUDP})
	require.Len(t, d.HandleClient(ctx, allocReq.Raw, client), 1)

	refreshZero := func() *stun.Message {
		req := signedRequest(t, stun.MethodRefresh, "alice", cfg.Realm, nonce, "password123", stun.NewLifetime(0))
		out := d.HandleClient(ctx, req.Raw, client)
		require.Len(t, out, 1)
		return decode(t, out[0].Payload)
	}

	first := refreshZero()
	assert.Equal(t, stun.ClassSuccessResponse, first.Type.Class)

	_, ok := d.State.RelayedPort(client)
	assert.False(t, ok)

	// A second LIFETIME=0 refresh against the now-deleted allocation must
	// still succeed, not report 437.
	second := refreshZero()
	assert.Equal(t, stun.ClassSuccessResponse, second.Type.Class)
}

func TestCreatePermissionThenSend(t *testing.T) {
	d, cfg := newTestDemux(t)
	client := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4000}
	peer := &net.UDPAddr{IP: net.ParseIP("198.51.100.9"), Port: 9000}
	ctx := context.Background()

	nonce := d.State.GetNonce(client)
	allocReq := signedRequest(t, stun.MethodAllocate, "alice", cfg.Realm, nonce, "password123",
		stun.RequestedTransport{Protocol: stun.ProtoUDP})
	require.Len(t, d.HandleClient(ctx, allocReq.Raw, client), 1)

	permReq := signedRequest(t, stun.MethodCreatePermission, "alice", cfg.Realm, nonce, "password123",
		stun.XORPeerAddress{IP: peer.IP, Port: peer.Port})
	out := d.HandleClient(ctx, permReq.Raw, client)
	require.Len(t, out, 1)
	assert.Equal(t, stun.ClassSuccessResponse, decode(t, out[0].Payload).Type.Class)

	// Send indication: payload forwarded to the permitted peer, no response.
	payload := []byte("ping")
	sendInd := new(stun.Message)
	require.NoError(t, sendInd.NewTransactionID())
	sendInd.Type = stun.MessageType{Method: stun.MethodSend, Class: stun.ClassIndication}
	require.NoError(t, sendInd.Build(stun.XORPeerAddress{IP: peer.IP, Port: peer.Port}, stun.Data{Raw: payload}))
	sendInd.WriteHeader()

	out = d.HandleClient(ctx, sendInd.Raw, client)
	require.Len(t, out, 1)
	assert.Equal(t, payload, out[0].Payload)
	// The decoded XOR-PEER-ADDRESS of an IPv4 peer is a 4-byte IP.
	assert.Equal(t, &net.UDPAddr{IP: peer.IP.To4(), Port: peer.Port}, out[0].Dest)

	// A permitted peer with no channel binding has its datagram wrapped in
	// a Data indication.
	other := net.ParseIP("198.51.100.10")
	require.True(t, d.State.InsertPermission(client, other))
	fwd := d.HandlePeerDatagram(client, other, 9001, []byte("from other peer"))
	require.NotNil(t, fwd)
	dataInd := decode(t, fwd.Payload)
	assert.Equal(t, stun.ClassIndication, dataInd.Type.Class)
	assert.Equal(t, stun.MethodData, dataInd.Type.Method)
}
