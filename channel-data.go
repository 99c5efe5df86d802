package stun

// ChannelNumber range reserved for TURN channel-data framing (RFC 5766
// Section 11). Distinct from the 0x4000-0x7FFF range sometimes quoted for
// demultiplexing the first two bits of the channel number field; channel
// numbers above 0x4FFF are not assigned by ChannelBind and are rejected.
const (
	MinChannelNumber uint16 = 0x4000
	MaxChannelNumber uint16 = 0x4FFF
)

const channelDataHeaderSize = 4

// ChannelData is the non-STUN framed message used to relay data once a
// channel binding exists: a 4-byte header (channel number, length)
// followed by the payload. No padding on UDP.
type ChannelData struct {
	ChannelNumber uint16
	Data          []byte
	Raw           []byte
}

// IsChannelNumberValid reports whether cn is in [MinChannelNumber, MaxChannelNumber].
func IsChannelNumberValid(cn uint16) bool {
	return cn >= MinChannelNumber && cn <= MaxChannelNumber
}

// Decode parses buf as a ChannelData frame into c. Requires len(buf) >= 4;
// the declared length must not exceed the remaining buffer. Does not copy:
// c.Data is a view over buf, valid only as long as buf is not reused.
func (c *ChannelData) Decode(buf []byte) error {
	if len(buf) < channelDataHeaderSize {
		return ErrChannelDataTooShort
	}
	cn := bin.Uint16(buf[0:2])
	if !IsChannelNumberValid(cn) {
		return ErrChannelNumberRange
	}
	length := int(bin.Uint16(buf[2:4]))
	if length > len(buf)-channelDataHeaderSize {
		return ErrLengthMismatch
	}
	c.ChannelNumber = cn
	c.Data = buf[channelDataHeaderSize : channelDataHeaderSize+length]
	c.Raw = buf

	return nil
}

// Encode writes c's header and payload into c.Raw, growing it as needed,
// and returns the encoded frame. No padding is added (UDP framing only).
func (c *ChannelData) Encode() []byte {
	size := channelDataHeaderSize + len(c.Data)
	if cap(c.Raw) < size {
		c.Raw = make([]byte, size)
	} else {
		c.Raw = c.Raw[:size]
	}
	bin.PutUint16(c.Raw[0:2], c.ChannelNumber)
	bin.PutUint16(c.Raw[2:4], uint16(len(c.Data))) //nolint:gosec // G115, length bounded by UDP MTU
	copy(c.Raw[channelDataHeaderSize:], c.Data)

	return c.Raw
}

// NewChannelData decodes packet as a ChannelData frame. Kept for callers
// that prefer a constructor over Decode into a reused value.
func NewChannelData(packet []byte) (*ChannelData, error) {
	c := new(ChannelData)
	if err := c.Decode(packet); err != nil {
		return nil, err
	}

	return c, nil
}
