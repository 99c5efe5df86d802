package turn

import (
	"context"

	stun "github.com/cydev/turnd"
)

// HandleRefresh processes a Refresh request: applies the desired-lifetime
// algorithm to the caller's allocation, deleting it on an explicit
// LIFETIME=0.
func HandleRefresh(ctx context.Context, turnCtx *Context, req *stun.Message) *Response {
	username, errResp := authenticate(ctx, turnCtx, req, stun.MethodRefresh)
	if errResp != nil {
		return errResp
	}

	var lifetime stun.Lifetime
	hasLifetime := lifetime.GetFrom(req) == nil

	granted, ok := turnCtx.State.Refresh(turnCtx.Client, uint32(lifetime), hasLifetime)
	if !ok {
		return reject(turnCtx, req, stun.MethodRefresh, stun.CodeAllocationMismatch, "")
	}

	key, _ := turnCtx.State.GetPassword(ctx, turnCtx.Client, username)

	return success(turnCtx, req, stun.MethodRefresh, username, key, stun.NewLifetime(granted))
}
