package turn

import (
	"net"

	stun "github.com/cydev/turnd"
)

// Outbound is a raw UDP datagram to emit to dest: a STUN response to the
// client, a Send indication's or channel-data frame's payload forwarded
// to a peer, or a channel-data frame or Data indication carrying a peer's
// datagram to the client.
type Outbound struct {
	Payload []byte
	Dest    net.Addr
}

// HandleSend processes a Send indication: no integrity is required, and
// a missing permission or malformed attributes drop the datagram
// silently, never producing an error response.
func HandleSend(turnCtx *Context, ind *stun.Message) *Outbound {
	var peer stun.XORPeerAddress
	if err := peer.GetFrom(ind); err != nil {
		return nil
	}
	var data stun.Data
	if err := data.GetFrom(ind); err != nil {
		return nil
	}
	if !turnCtx.State.HasPermission(turnCtx.Client, peer.IP) {
		return nil
	}

	return &Outbound{Payload: data.Raw, Dest: &net.UDPAddr{IP: peer.IP, Port: peer.Port}}
}

// BuildDataIndication wraps an inbound peer→relay datagram as a Data
// indication addressed to client.
func BuildDataIndication(peerIP net.IP, peerPort int, payload []byte) *stun.Message {
	m := new(stun.Message)
	m.NewTransactionID()
	m.Type = stun.MessageType{Method: stun.MethodData, Class: stun.ClassIndication}

	peer := stun.XORPeerAddress{IP: peerIP, Port: peerPort}
	data := stun.Data{Raw: payload}

	if err := m.Build(peer, data); err != nil {
		return nil
	}
	m.WriteHeader()

	return m
}
