//go:build race

package testutil

// Race is true when the binary was built with the race detector enabled.
const Race = true
