package turn

import (
	stun "github.com/cydev/turnd"
)

// HandleBinding answers a Binding request with the client's reflexive
// address. Binding never requires credentials, and no
// MESSAGE-INTEGRITY/FINGERPRINT is required on the request, matching a
// classic STUN server.
func HandleBinding(ctx *Context, req *stun.Message) *Response {
	m := new(stun.Message)
	m.TransactionID = req.TransactionID
	m.Type = stun.MessageType{Method: stun.MethodBinding, Class: stun.ClassSuccessResponse}

	var xor stun.XORMappedAddress
	xor.IP, xor.Port = addrIPPort(ctx.Client)

	if err := m.Build(xor, stun.Fingerprint); err != nil {
		ctx.logger().Warnf("binding: build response: %v", err)
		return nil
	}
	m.WriteHeader()

	return &Response{Message: m, Dest: ctx.Client}
}
