package turn

import (
	"context"
	"fmt"
	"net"

	stun "github.com/cydev/turnd"
	"github.com/pion/logging"
)

// Context carries the per-datagram state a handler needs: which client
// sent the request and the collaborators (state store, config, logger)
// it may consult. One Context is built per inbound STUN request; it is
// never retained across datagrams — no per-connection state.
type Context struct {
	Client net.Addr
	State  *State
	Cfg    Config
}

func (c *Context) logger() logging.LeveledLogger {
	return c.Cfg.Logger
}

// Response pairs an encoded message with the address it should be sent
// to. A nil Response means the request is dropped: decode failures,
// unsupported message kinds, and indication processing never produce a
// response.
type Response struct {
	Message *stun.Message
	Dest    net.Addr
}

// errorResponse builds a message of the given method/ErrorResponse class,
// carrying the request's transaction ID, an ERROR-CODE, and (for
// authentication failures) REALM and NONCE.
func errorResponse(req *stun.Message, method stun.Method, code stun.ErrorCode, realm, nonce string) *stun.Message {
	m := new(stun.Message)
	m.TransactionID = req.TransactionID
	m.Type = stun.MessageType{Method: method, Class: stun.ClassErrorResponse}

	setters := []stun.Setter{
		stun.ErrorCodeAttribute{Code: code, Reason: []byte(code.Reason())},
	}
	if realm != "" {
		setters = append(setters, stun.NewRealm(realm))
	}
	if nonce != "" {
		setters = append(setters, stun.NewNonce(nonce))
	}
	if err := m.Build(setters...); err != nil {
		panic(err) // only returns errors for oversized username/nonce/realm values we control
	}
	m.WriteHeader()

	return m
}

// reject is the common path for every authenticated handler's failure
// responses: build the method's Error-class message and address it back
// to the requesting client.
func reject(ctx *Context, req *stun.Message, method stun.Method, code stun.ErrorCode, nonce string) *Response {
	return &Response{Message: errorResponse(req, method, code, ctx.Cfg.Realm, nonce), Dest: ctx.Client}
}

// credentials holds a request's parsed authentication attributes.
type credentials struct {
	username string
	nonce    string
}

// authenticate runs the common preamble required for every method except
// Binding: USERNAME/REALM/NONCE/MESSAGE-INTEGRITY must be present, the
// nonce must be current, the user must be known, and the
// HMAC must verify. On success it returns the caller's username; on
// failure it returns the error Response to send (438/401), never both.
func authenticate(ctx context.Context, turnCtx *Context, req *stun.Message, method stun.Method) (string, *Response) {
	var (
		username stun.Username
		realm    stun.Realm
		nonce    stun.Nonce
	)
	if err := username.GetFrom(req); err != nil {
		return "", reject(turnCtx, req, method, stun.CodeUnauthorized, turnCtx.State.GetNonce(turnCtx.Client))
	}
	if err := realm.GetFrom(req); err != nil {
		return "", reject(turnCtx, req, method, stun.CodeUnauthorized, turnCtx.State.GetNonce(turnCtx.Client))
	}
	if err := nonce.GetFrom(req); err != nil || !turnCtx.State.CheckNonce(turnCtx.Client, nonce.String()) {
		return "", reject(turnCtx, req, method, stun.CodeStaleNonce, turnCtx.State.GetNonce(turnCtx.Client))
	}

	key, ok := turnCtx.State.GetPassword(ctx, turnCtx.Client, username.String())
	if !ok {
		return "", reject(turnCtx, req, method, stun.CodeUnauthorized, nonce.String())
	}
	if err := stun.MessageIntegrity(key).Check(req); err != nil {
		return "", reject(turnCtx, req, method, stun.CodeUnauthorized, nonce.String())
	}

	return username.String(), nil
}

// addrIPPort splits a net.Addr into its IP and port, assuming UDP — the
// only transport this relay handles.
func addrIPPort(addr net.Addr) (net.IP, int) {
	udp, ok := addr.(*net.UDPAddr)
	if !ok {
		host, port, err := net.SplitHostPort(addr.String())
		if err != nil {
			return nil, 0
		}
		p := 0
		_, _ = fmt.Sscanf(port, "%d", &p)
		return net.ParseIP(host), p
	}
	return udp.IP, udp.Port
}

// success builds a success-class response for method, signs it with the
// long-term credential key, and addresses it back to the client.
func success(ctx *Context, req *stun.Message, method stun.Method, username string, key []byte, setters ...stun.Setter) *Response {
	m := new(stun.Message)
	m.TransactionID = req.TransactionID
	m.Type = stun.MessageType{Method: method, Class: stun.ClassSuccessResponse}

	all := append([]stun.Setter{}, setters...)
	all = append(all, stun.MessageIntegrity(key), stun.Fingerprint)
	if err := m.Build(all...); err != nil {
		panic(err)
	}
	m.WriteHeader()

	return &Response{Message: m, Dest: ctx.Client}
}
