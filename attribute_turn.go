package stun

import "fmt"

// ProtoUDP is the only REQUESTED-TRANSPORT protocol value this package
// accepts; TCP/TLS relaying is out of scope.
const ProtoUDP byte = 17

// Lifetime represents the LIFETIME attribute: a 32-bit seconds value
// carried in Allocate/Refresh requests and AllocateSuccess responses.
type Lifetime uint32

// NewLifetime returns a Lifetime of d seconds.
func NewLifetime(d uint32) Lifetime {
	return Lifetime(d)
}

func (l Lifetime) String() string { return fmt.Sprintf("%ds", uint32(l)) }

// AddTo adds LIFETIME to m.
func (l Lifetime) AddTo(m *Message) error {
	v := make([]byte, 4)
	bin.PutUint32(v, uint32(l))
	m.Add(AttrLifetime, v)
	return nil
}

// GetFrom decodes LIFETIME from m.
func (l *Lifetime) GetFrom(m *Message) error {
	v, err := m.Get(AttrLifetime)
	if err != nil {
		return err
	}
	if len(v) != 4 {
		return &AttrLengthErr{Attr: AttrLifetime, Expected: 4, Got: len(v)}
	}
	*l = Lifetime(bin.Uint32(v))
	return nil
}

// RequestedTransport represents the REQUESTED-TRANSPORT attribute: a
// protocol number followed by 3 reserved bytes (RFC 5766 §14.7).
type RequestedTransport struct {
	Protocol byte
}

// AddTo adds REQUESTED-TRANSPORT to m.
func (r RequestedTransport) AddTo(m *Message) error {
	v := make([]byte, 4)
	v[0] = r.Protocol
	m.Add(AttrRequestedTransport, v)
	return nil
}

// GetFrom decodes REQUESTED-TRANSPORT from m.
func (r *RequestedTransport) GetFrom(m *Message) error {
	v, err := m.Get(AttrRequestedTransport)
	if err != nil {
		return err
	}
	if len(v) != 4 {
		return &AttrLengthErr{Attr: AttrRequestedTransport, Expected: 4, Got: len(v)}
	}
	r.Protocol = v[0]
	return nil
}

// ChannelNumberAttr represents the CHANNEL-NUMBER attribute: a channel
// number followed by 2 reserved bytes (RFC 5766 §14.1).
type ChannelNumberAttr struct {
	Number uint16
}

// AddTo adds CHANNEL-NUMBER to m.
func (c ChannelNumberAttr) AddTo(m *Message) error {
	v := make([]byte, 4)
	bin.PutUint16(v[0:2], c.Number)
	m.Add(AttrChannelNumber, v)
	return nil
}

// GetFrom decodes CHANNEL-NUMBER from m.
func (c *ChannelNumberAttr) GetFrom(m *Message) error {
	v, err := m.Get(AttrChannelNumber)
	if err != nil {
		return err
	}
	if len(v) != 4 {
		return &AttrLengthErr{Attr: AttrChannelNumber, Expected: 4, Got: len(v)}
	}
	c.Number = bin.Uint16(v[0:2])
	return nil
}

// Data represents the DATA attribute carried by Send/Data indications
// and ChannelBind's echoed payloads.
type Data struct {
	Raw []byte
}

func (d Data) String() string { return "data" }

// AddTo adds DATA to m.
func (d Data) AddTo(m *Message) error {
	m.Add(AttrData, d.Raw)
	return nil
}

// GetFrom decodes DATA from m.
func (d *Data) GetFrom(m *Message) error {
	v, err := m.Get(AttrData)
	if err != nil {
		return err
	}
	d.Raw = v
	return nil
}
