package turn

import (
	"context"
	"net"

	stun "github.com/cydev/turnd"
)

// Demux is the server-side demultiplexer: it classifies inbound
// datagrams by their leading byte and drives the request handlers and
// channel-data forwarding against a shared State.
type Demux struct {
	State *State
	Cfg   Config
}

// NewDemux builds a Demux over state using cfg for responses and logging.
func NewDemux(state *State, cfg Config) *Demux {
	return &Demux{State: state, Cfg: cfg}
}

// HandleClient processes one datagram received from a client on the
// server's main listening socket, returning the (possibly zero) outbound
// datagrams it produces. Decode failures, unsupported kinds, and
// datagrams shorter than 4 bytes are dropped silently.
func (d *Demux) HandleClient(ctx context.Context, data []byte, client net.Addr) []Outbound {
	if len(data) < 4 {
		return nil
	}

	switch lead := data[0]; {
	case lead >= 0x00 && lead <= 0x03:
		return d.handleSTUN(ctx, data, client)
	case lead >= 0x40 && lead <= 0x4F:
		return d.handleChannelData(data, client)
	default:
		return nil
	}
}

func (d *Demux) handleSTUN(ctx context.Context, data []byte, client net.Addr) []Outbound {
	m := &stun.Message{Raw: data}
	if err := m.Decode(); err != nil {
		return nil
	}

	turnCtx := &Context{Client: client, State: d.State, Cfg: d.Cfg}

	var resp *Response
	switch m.Type.Class {
	case stun.ClassRequest:
		switch m.Type.Method {
		case stun.MethodBinding:
			resp = HandleBinding(turnCtx, m)
		case stun.MethodAllocate:
			resp = HandleAllocate(ctx, turnCtx, m)
		case stun.MethodRefresh:
			resp = HandleRefresh(ctx, turnCtx, m)
		case stun.MethodCreatePermission:
			resp = HandleCreatePermission(ctx, turnCtx, m)
		case stun.MethodChannelBind:
			resp = HandleChannelBind(ctx, turnCtx, m)
		default:
			return nil
		}
	case stun.ClassIndication:
		if m.Type.Method != stun.MethodSend {
			return nil
		}
		if out := HandleSend(turnCtx, m); out != nil {
			return []Outbound{*out}
		}
		return nil
	default:
		return nil
	}

	if resp == nil {
		return nil
	}
	return []Outbound{{Payload: resp.Message.Raw, Dest: resp.Dest}}
}

func (d *Demux) handleChannelData(data []byte, client net.Addr) []Outbound {
	var cd stun.ChannelData
	if err := cd.Decode(data); err != nil {
		return nil
	}

	peerIP, peerPort, ok := d.State.LookupChannel(client, cd.ChannelNumber)
	if !ok {
		return nil
	}
	if !d.State.HasPermission(client, peerIP) {
		return nil
	}

	return []Outbound{{
		Payload: append([]byte(nil), cd.Data...),
		Dest:    &net.UDPAddr{IP: peerIP, Port: peerPort},
	}}
}

// HandlePeerDatagram processes one datagram received on client's relayed
// port from a peer. If the peer is channel-bound the payload is
// forwarded as a channel-data frame; else, if a permission
// exists, it is wrapped in a Data indication; otherwise it is dropped.
func (d *Demux) HandlePeerDatagram(client net.Addr, peerIP net.IP, peerPort int, payload []byte) *Outbound {
	if channel, ok := d.State.LookupPeerChannel(client, peerIP, peerPort); ok {
		cd := &stun.ChannelData{ChannelNumber: channel, Data: payload}
		return &Outbound{Payload: cd.Encode(), Dest: client}
	}

	if !d.State.HasPermission(client, peerIP) {
		return nil
	}

	msg := BuildDataIndication(peerIP, peerPort, payload)
	if msg == nil {
		return nil
	}
	return &Outbound{Payload: msg.Raw, Dest: client}
}
