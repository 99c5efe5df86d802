package stun

import (
	"errors"
	"fmt"
)

// AttrType is a 16-bit STUN/TURN attribute type. Unrecognized codes are
// skipped, not fatal (RFC 5389 §15).
type AttrType uint16

// Attribute type codes handled by this package.
const (
	AttrMappedAddress      AttrType = 0x0001
	AttrUsername           AttrType = 0x0006
	AttrMessageIntegrity   AttrType = 0x0008
	AttrErrorCode          AttrType = 0x0009
	AttrChannelNumber      AttrType = 0x000C
	AttrLifetime           AttrType = 0x000D
	AttrXORPeerAddress     AttrType = 0x0012
	AttrData               AttrType = 0x0013
	AttrRealm              AttrType = 0x0014
	AttrNonce              AttrType = 0x0015
	AttrXORRelayedAddress  AttrType = 0x0016
	AttrRequestedTransport AttrType = 0x0019
	AttrXORMappedAddress   AttrType = 0x0020
	AttrResponseOrigin     AttrType = 0x802B
	AttrSoftware           AttrType = 0x8022
	AttrFingerprint        AttrType = 0x8028
)

var attrNames = map[AttrType]string{
	AttrMappedAddress:      "MAPPED-ADDRESS",
	AttrUsername:           "USERNAME",
	AttrMessageIntegrity:   "MESSAGE-INTEGRITY",
	AttrErrorCode:          "ERROR-CODE",
	AttrChannelNumber:      "CHANNEL-NUMBER",
	AttrLifetime:           "LIFETIME",
	AttrXORPeerAddress:     "XOR-PEER-ADDRESS",
	AttrData:               "DATA",
	AttrRealm:              "REALM",
	AttrNonce:              "NONCE",
	AttrXORRelayedAddress:  "XOR-RELAYED-ADDRESS",
	AttrRequestedTransport: "REQUESTED-TRANSPORT",
	AttrXORMappedAddress:   "XOR-MAPPED-ADDRESS",
	AttrResponseOrigin:     "RESPONSE-ORIGIN",
	AttrSoftware:           "SOFTWARE",
	AttrFingerprint:        "FINGERPRINT",
}

// Value returns the wire value of the attribute type.
func (t AttrType) Value() uint16 { return uint16(t) }

func (t AttrType) String() string {
	if name, ok := attrNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%x", uint16(t))
}

// RawAttribute is a decoded TLV: type, declared (unpadded) length, and a
// view over the value bytes in the owning Message's Raw buffer.
type RawAttribute struct {
	Type   AttrType
	Length uint16
	Value  []byte
}

// Equal reports whether a and b carry the same type and value.
func (a RawAttribute) Equal(b RawAttribute) bool {
	if a.Type != b.Type || a.Length != b.Length {
		return false
	}
	if len(a.Value) != len(b.Value) {
		return false
	}
	for i := range a.Value {
		if a.Value[i] != b.Value[i] {
			return false
		}
	}
	return true
}

// Attributes is the ordered list of a Message's decoded attributes.
type Attributes []RawAttribute

// Get returns the first attribute of type t, or the zero RawAttribute.
func (a Attributes) Get(t AttrType) (RawAttribute, bool) {
	for _, attr := range a {
		if attr.Type == t {
			return attr, true
		}
	}
	return RawAttribute{}, false
}

// GetAll returns every attribute of type t, in wire order. Used by
// CreatePermission, which may carry more than one XOR-PEER-ADDRESS.
func (a Attributes) GetAll(t AttrType) []RawAttribute {
	var out []RawAttribute
	for _, attr := range a {
		if attr.Type == t {
			out = append(out, attr)
		}
	}
	return out
}

// Get returns the value bytes of the first attribute of type t.
// Returns ErrAttributeNotFound if absent.
func (m *Message) Get(t AttrType) ([]byte, error) {
	attr, ok := m.Attributes.Get(t)
	if !ok {
		return nil, ErrAttributeNotFound
	}
	return attr.Value, nil
}

// blank is just blank string and exists just because it is ugly to keep it
// in code.
const blank = ""

// AddSoftwareBytes adds SOFTWARE attribute with value from byte slice.
func (m *Message) AddSoftwareBytes(software []byte) {
	m.Add(AttrSoftware, software)
}

// AddSoftware adds SOFTWARE attribute with value from string.
func (m *Message) AddSoftware(software string) {
	m.Add(AttrSoftware, []byte(software))
}

// GetSoftwareBytes returns SOFTWARE attribute value in byte slice.
// If not found, returns nil.
func (m *Message) GetSoftwareBytes() []byte {
	v, _ := m.Get(AttrSoftware)
	return v
}

// GetSoftware returns SOFTWARE attribute value in string.
// If not found, returns blank string.
func (m *Message) GetSoftware() string {
	v := m.GetSoftwareBytes()
	if len(v) == 0 {
		return blank
	}
	return string(v)
}

// Software represents the SOFTWARE attribute as a Setter/Getter, for use
// alongside Username/Nonce/Realm in Build-style attribute lists.
type Software struct {
	Raw []byte
}

// NewSoftware returns *Software with the provided value.
func NewSoftware(software string) Software {
	return Software{Raw: []byte(software)}
}

func (s Software) String() string { return string(s.Raw) }

// AddTo adds SOFTWARE to message.
func (s Software) AddTo(m *Message) error {
	m.Add(AttrSoftware, s.Raw)
	return nil
}

// GetFrom gets SOFTWARE from message.
func (s *Software) GetFrom(m *Message) error {
	v, err := m.Get(AttrSoftware)
	if err != nil {
		return err
	}
	s.Raw = v
	return nil
}

// Maximum encoded lengths for the three credential-bearing attributes
// every authenticated TURN request carries alongside MESSAGE-INTEGRITY.
const (
	maxUsernameB = 513
	maxNonceB    = 763
	maxRealmB    = 763
)

// ErrUsernameTooBig means that USERNAME value is bigger than 513 bytes.
var ErrUsernameTooBig = errors.New("USERNAME value bigger than 513 bytes")

// ErrNonceTooBig means that NONCE value is bigger than 763 bytes.
var ErrNonceTooBig = errors.New("NONCE value bigger than 763 bytes")

// ErrRealmTooBig means that REALM value is bigger than 763 bytes.
var ErrRealmTooBig = errors.New("REALM value bigger than 763 bytes")

// Username represents the USERNAME attribute identifying the client in
// every authenticated request.
//
// https://tools.ietf.org/html/rfc5389#section-15.3
type Username struct {
	Raw []byte
}

// NewUsername returns *Username with the provided value.
func NewUsername(username string) *Username {
	return &Username{Raw: []byte(username)}
}

func (u Username) String() string { return string(u.Raw) }

// AddTo adds USERNAME to message.
func (u *Username) AddTo(m *Message) error {
	if len(u.Raw) > maxUsernameB {
		return ErrUsernameTooBig
	}
	m.Add(AttrUsername, u.Raw)
	return nil
}

// GetFrom gets USERNAME from message.
func (u *Username) GetFrom(m *Message) error {
	v, err := m.Get(AttrUsername)
	if err != nil {
		return err
	}
	u.Raw = v
	return nil
}

// Nonce represents the NONCE attribute the server issues on a 401/438
// challenge and the client echoes back on retry.
//
// https://tools.ietf.org/html/rfc5389#section-15.8
type Nonce struct {
	Raw []byte
}

// NewNonce returns *Nonce with the provided value.
func NewNonce(nonce string) *Nonce {
	return &Nonce{Raw: []byte(nonce)}
}

func (n Nonce) String() string { return string(n.Raw) }

// AddTo adds NONCE to message.
func (n *Nonce) AddTo(m *Message) error {
	if len(n.Raw) > maxNonceB {
		return ErrNonceTooBig
	}
	m.Add(AttrNonce, n.Raw)
	return nil
}

// GetFrom gets NONCE from message.
func (n *Nonce) GetFrom(m *Message) error {
	v, err := m.Get(AttrNonce)
	if err != nil {
		return err
	}
	n.Raw = v
	return nil
}

// Realm represents the REALM attribute naming the authentication domain
// the server's long-term credentials belong to.
//
// https://tools.ietf.org/html/rfc5389#section-15.8
type Realm struct {
	Raw []byte
}

// NewRealm returns *Realm with the provided value. Must be SASL-prepared.
func NewRealm(realm string) *Realm {
	return &Realm{Raw: []byte(realm)}
}

func (n Realm) String() string { return string(n.Raw) }

// AddTo adds REALM to message.
func (n *Realm) AddTo(m *Message) error {
	if len(n.Raw) > maxRealmB {
		return ErrRealmTooBig
	}
	m.Add(AttrRealm, n.Raw)
	return nil
}

// GetFrom gets REALM from message.
func (n *Realm) GetFrom(m *Message) error {
	v, err := m.Get(AttrRealm)
	if err != nil {
		return err
	}
	n.Raw = v
	return nil
}
