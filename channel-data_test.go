package stun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelData_RoundTrip(t *testing.T) {
	c := &ChannelData{
		ChannelNumber: 0x4001,
		Data:          []byte("hello world"),
	}
	raw := c.Encode()

	var decoded ChannelData
	require.NoError(t, decoded.Decode(raw))
	assert.Equal(t, c.ChannelNumber, decoded.ChannelNumber)
	assert.Equal(t, c.Data, decoded.Data)
}

func TestChannelData_TooShort(t *testing.T) {
	var c ChannelData
	err := c.Decode([]byte{0x40, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrChannelDataTooShort)
}

func TestChannelData_ChannelNumberRange(t *testing.T) {
	cases := []struct {
		name string
		cn   uint16
		ok   bool
	}{
		{"below range", 0x3FFF, false},
		{"lower bound", 0x4000, true},
		{"upper bound", 0x4FFF, true},
		{"above range legacy bug", 0x5000, false},
		{"far above range", 0x7FFF, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, IsChannelNumberValid(tc.cn))
		})
	}
}

func TestChannelData_Decode_BadChannelNumber(t *testing.T) {
	c := &ChannelData{ChannelNumber: 0x7FFF, Data: []byte("x")}
	raw := c.Encode()

	var decoded ChannelData
	err := decoded.Decode(raw)
	assert.ErrorIs(t, err, ErrChannelNumberRange)
}

func TestChannelData_Decode_LengthOverrunsBuffer(t *testing.T) {
	raw := []byte{0x40, 0x01, 0x00, 0x10} // declares 16 bytes, none present
	var decoded ChannelData
	err := decoded.Decode(raw)
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestChannelData_Encode_NoPadding(t *testing.T) {
	c := &ChannelData{ChannelNumber: 0x4000, Data: []byte{1, 2, 3}}
	raw := c.Encode()
	assert.Len(t, raw, channelDataHeaderSize+3)
}

func TestNewChannelData(t *testing.T) {
	c := &ChannelData{ChannelNumber: 0x4002, Data: []byte("payload")}
	raw := c.Encode()

	decoded, err := NewChannelData(raw)
	require.NoError(t, err)
	assert.Equal(t, c.ChannelNumber, decoded.ChannelNumber)
	assert.Equal(t, c.Data, decoded.Data)
}
