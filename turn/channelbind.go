package turn

import (
	"context"

	stun "github.com/cydev/turnd"
)

// HandleChannelBind processes a ChannelBind request: validates the
// CHANNEL-NUMBER range and the single XOR-PEER-ADDRESS, then binds them
// within the caller's allocation, installing a permission for the peer
// atomically.
func HandleChannelBind(ctx context.Context, turnCtx *Context, req *stun.Message) *Response {
	username, errResp := authenticate(ctx, turnCtx, req, stun.MethodChannelBind)
	if errResp != nil {
		return errResp
	}

	var channel stun.ChannelNumberAttr
	if err := channel.GetFrom(req); err != nil || !stun.IsChannelNumberValid(channel.Number) {
		return reject(turnCtx, req, stun.MethodChannelBind, stun.CodeBadRequest, "")
	}

	peerAttrs := req.Attributes.GetAll(stun.AttrXORPeerAddress)
	if len(peerAttrs) != 1 {
		return reject(turnCtx, req, stun.MethodChannelBind, stun.CodeBadRequest, "")
	}
	var peer stun.XORPeerAddress
	m := &stun.Message{TransactionID: req.TransactionID, Attributes: stun.Attributes{peerAttrs[0]}}
	if err := peer.GetFrom(m); err != nil {
		return reject(turnCtx, req, stun.MethodChannelBind, stun.CodeBadRequest, "")
	}

	if !turnCtx.State.InsertChannel(turnCtx.Client, cloneIP(peer.IP), peer.Port, channel.Number) {
		return reject(turnCtx, req, stun.MethodChannelBind, stun.CodeAllocationMismatch, "")
	}

	key, _ := turnCtx.State.GetPassword(ctx, turnCtx.Client, username)

	return success(turnCtx, req, stun.MethodChannelBind, username, key)
}
