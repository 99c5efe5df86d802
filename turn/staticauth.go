package turn

import (
	"context"
	"net"
)

// StaticAuth resolves passwords from a fixed username→password table,
// the simplest Auth collaborator, and the one cmd/turnd loads from its
// configuration file.
type StaticAuth map[string]string

// Lookup implements Auth.
func (a StaticAuth) Lookup(_ context.Context, _ net.Addr, username string) (string, bool) {
	password, ok := a[username]
	return password, ok
}
