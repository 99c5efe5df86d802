package stun

import (
	"fmt"
	"hash/crc32"
)

// FingerprintAttr represents the FINGERPRINT attribute used to tell STUN
// traffic apart from other protocols sharing the same socket.
//
// https://tools.ietf.org/html/rfc5389#section-15.5
type FingerprintAttr byte

// CRCMismatch is returned by FingerprintAttr.Check when the computed
// CRC-32 doesn't match the value carried in the message: the packet was
// mangled in flight or was never a real STUN message to begin with.
// turn/demux.go does not run this check; it classifies datagrams by
// their first byte.
type CRCMismatch struct {
	Expected uint32
	Actual   uint32
}

func (m CRCMismatch) Error() string {
	return fmt.Sprintf("CRC mismatch: %x (expected) != %x (actual)",
		m.Expected,
		m.Actual,
	)
}

// Fingerprint is the FingerprintAttr Setter/Checker. turn/binding.go
// appends it last when building a Binding response, and turn/handlers.go
// appends it after MessageIntegrity when signing a success response —
// FINGERPRINT always comes after MESSAGE-INTEGRITY so it can cover the
// signature too. Error responses and Data indications carry no
// FINGERPRINT, and inbound requests are not checked against it.
var Fingerprint FingerprintAttr

const (
	fingerprintXORValue uint32 = 0x5354554e
	fingerprintSize            = 4 // 32 bit
)

// FingerprintValue returns CRC-32 of b XOR-ed by 0x5354554e.
//
// The value of the attribute is computed as the CRC-32 of the STUN message
// up to (but excluding) the FINGERPRINT attribute itself, XOR'ed with
// the 32-bit value 0x5354554e (the XOR helps in cases where an
// application packet is also using CRC-32 in it).
func FingerprintValue(b []byte) uint32 {
	return crc32.ChecksumIEEE(b) ^ fingerprintXORValue // XOR
}

// AddTo computes the CRC-32 over everything written to m so far and
// appends it as FINGERPRINT. Must run after every other attribute,
// including MESSAGE-INTEGRITY, has already been added.
func (FingerprintAttr) AddTo(m *Message) error {
	l := m.Length
	// length in header should include size of fingerprint attribute
	m.Length += fingerprintSize + attributeHeaderSize // increasing length
	m.WriteLength()                                   // writing Length to Raw
	b := make([]byte, fingerprintSize)
	val := FingerprintValue(m.Raw)
	bin.PutUint32(b, val)
	m.Length = l
	m.Add(AttrFingerprint, b)
	return nil
}

// Check reads fingerprint value from m and checks it, returning error if any.
// Can return *AttrLengthErr, ErrAttributeNotFound, and *CRCMismatch.
func (FingerprintAttr) Check(m *Message) error {
	b, err := m.Get(AttrFingerprint)
	if err != nil {
		return err
	}
	if len(b) != fingerprintSize {
		return &AttrLengthErr{
			Expected: fingerprintSize,
			Got:      len(b),
			Attr:     AttrFingerprint,
		}
	}
	val := bin.Uint32(b)
	attrStart := len(m.Raw) - (fingerprintSize + attributeHeaderSize)
	expected := FingerprintValue(m.Raw[:attrStart])
	if expected != val {
		return &CRCMismatch{Expected: expected, Actual: val}
	}
	return nil
}
