// Package stun implements Session Traversal Utilities for NAT (STUN) RFC 5389.
//
// Definitions
//
// STUN Agent: A STUN agent is an entity that implements the STUN
// protocol. The entity can be either a STUN client or a STUN
// server.
//
// STUN Client: A STUN client is an entity that sends STUN requests and
// receives STUN responses. A STUN client can also send indications.
// In this specification, the terms STUN client and client are
// synonymous.
//
// STUN Server: A STUN server is an entity that receives STUN requests
// and sends STUN responses. A STUN server can also send
// indications. In this specification, the terms STUN server and
// server are synonymous.
//
// Transport Address: The combination of an IP address and Port number
// (such as a UDP or TCP Port number).
package stun

import (
	"encoding/binary"
	"io"
)

// bin is shorthand to binary.BigEndian.
var bin = binary.BigEndian

// DefaultPort is IANA assigned Port for "stun" protocol.
const DefaultPort = 3478

// writeOrPanic writes b to w, panicking on error. Used in HMAC/CRC paths
// where the writer is an in-memory hash and a write error is impossible
// in practice; treating it as a bug rather than a propagated error keeps
// the zero-allocation integrity/fingerprint code simple.
func writeOrPanic(w io.Writer, b []byte) {
	if _, err := w.Write(b); err != nil {
		panic(err)
	}
}

// readFullOrPanic reads len(b) bytes from r into b, panicking on error.
func readFullOrPanic(r io.Reader, b []byte) {
	if _, err := io.ReadFull(r, b); err != nil {
		panic(err)
	}
}
