package turn

import (
	"context"
	"net"

	stun "github.com/cydev/turnd"
)

// HandleCreatePermission processes a CreatePermission request: installs a
// permission for every distinct peer IP named by the request's one-or-more
// XOR-PEER-ADDRESS attributes, ignoring their ports — CreatePermission is
// IP-scoped.
func HandleCreatePermission(ctx context.Context, turnCtx *Context, req *stun.Message) *Response {
	username, errResp := authenticate(ctx, turnCtx, req, stun.MethodCreatePermission)
	if errResp != nil {
		return errResp
	}

	raws := req.Attributes.GetAll(stun.AttrXORPeerAddress)
	if len(raws) == 0 {
		return reject(turnCtx, req, stun.MethodCreatePermission, stun.CodeBadRequest, "")
	}

	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		var peer stun.XORPeerAddress
		m := &stun.Message{TransactionID: req.TransactionID, Attributes: stun.Attributes{raw}}
		if err := peer.GetFrom(m); err != nil {
			return reject(turnCtx, req, stun.MethodCreatePermission, stun.CodeBadRequest, "")
		}

		ipKey := peer.IP.String()
		if _, dup := seen[ipKey]; dup {
			continue
		}
		seen[ipKey] = struct{}{}

		if !turnCtx.State.InsertPermission(turnCtx.Client, cloneIP(peer.IP)) {
			return reject(turnCtx, req, stun.MethodCreatePermission, stun.CodeAllocationMismatch, "")
		}
	}

	key, _ := turnCtx.State.GetPassword(ctx, turnCtx.Client, username)

	return success(turnCtx, req, stun.MethodCreatePermission, username, key)
}

func cloneIP(ip net.IP) net.IP {
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}
