package turn

import (
	"context"

	stun "github.com/cydev/turnd"
)

// HandleAllocate processes an Allocate request: after the common auth
// preamble, REQUESTED-TRANSPORT must name UDP, a relayed port is
// reserved, and the allocation's lifetime follows the desired-lifetime
// algorithm.
func HandleAllocate(ctx context.Context, turnCtx *Context, req *stun.Message) *Response {
	username, errResp := authenticate(ctx, turnCtx, req, stun.MethodAllocate)
	if errResp != nil {
		return errResp
	}

	var transport stun.RequestedTransport
	if err := transport.GetFrom(req); err != nil || transport.Protocol != stun.ProtoUDP {
		return reject(turnCtx, req, stun.MethodAllocate, stun.CodeUnsupportedTransport, "")
	}

	var lifetime stun.Lifetime
	// An explicit LIFETIME=0 is treated as absent here: passed through, it
	// would make Refresh delete the allocation just created.
	hasLifetime := lifetime.GetFrom(req) == nil && lifetime != 0

	port, result := turnCtx.State.CreateAllocation(turnCtx.Client, username)
	switch result {
	case AllocateExists:
		return reject(turnCtx, req, stun.MethodAllocate, stun.CodeAllocationMismatch, "")
	case AllocateCapacityExceeded:
		return reject(turnCtx, req, stun.MethodAllocate, stun.CodeInsufficientCapacity, "")
	}

	granted, ok := turnCtx.State.Refresh(turnCtx.Client, uint32(lifetime), hasLifetime)
	if !ok || granted == 0 {
		// Refresh only fails to grant a nonzero lifetime when the
		// allocation vanished between create and refresh; surface as a
		// server error rather than leaking the race to the client.
		return reject(turnCtx, req, stun.MethodAllocate, stun.CodeServerError, "")
	}

	key, _ := turnCtx.State.GetPassword(ctx, turnCtx.Client, username)

	relayedIP := turnCtx.Cfg.ExternalIP
	mapped := stun.XORMappedAddress{}
	mapped.IP, mapped.Port = addrIPPort(turnCtx.Client)

	relayed := stun.XORRelayedAddress{IP: relayedIP, Port: int(port)}

	return success(turnCtx, req, stun.MethodAllocate, username, key,
		relayed, mapped, stun.NewLifetime(granted))
}
