// Package hmac is a fork of crypto/hmac that exposes the concrete *hmac
// type so pool.go can pool and reset instances across calls instead of
// allocating a fresh hash.Hash (and its inner/outer state) per message.
package hmac

import (
	"crypto/subtle"
	"hash"
)

type hmac struct {
	size      int
	blocksize int
	opad      []byte
	ipad      []byte
	outer     hash.Hash
	inner     hash.Hash
}

// New returns a new HMAC hash using the given hash.Hash constructor and key.
func New(h func() hash.Hash, key []byte) hash.Hash {
	hm := new(hmac)
	hm.outer = h()
	hm.inner = h()
	hm.size = hm.inner.Size()
	hm.blocksize = hm.inner.BlockSize()
	hm.ipad = make([]byte, hm.blocksize)
	hm.opad = make([]byte, hm.blocksize)
	hm.resetTo(key)
	return hm
}

func (h *hmac) Sum(in []byte) []byte {
	origLen := len(in)
	in = h.inner.Sum(in)
	h.outer.Reset()
	h.outer.Write(h.opad)      //nolint:errcheck
	h.outer.Write(in[origLen:]) //nolint:errcheck
	return h.outer.Sum(in[:origLen])
}

func (h *hmac) Write(p []byte) (n int, err error) {
	return h.inner.Write(p)
}

func (h *hmac) Size() int { return h.size }

func (h *hmac) BlockSize() int { return h.blocksize }

func (h *hmac) Reset() {
	h.inner.Reset()
	h.inner.Write(h.ipad) //nolint:errcheck
}

// Equal reports whether mac1 and mac2 are equal, in constant time
// regardless of their contents.
func Equal(mac1, mac2 []byte) bool {
	return subtle.ConstantTimeCompare(mac1, mac2) == 1
}
