package stun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeErr_BadCookie(t *testing.T) {
	m := new(Message)
	m.WriteHeader()
	m.Raw[4] = 55 // corrupt magic cookie
	decoded := new(Message)
	_, err := decoded.Write(m.Raw)
	assert.ErrorIs(t, err, ErrBadCookie)
}

func TestDecodeErr_Place(t *testing.T) {
	err := newAttrDecodeErr("value", "too short")
	assert.True(t, err.IsPlaceParent("attribute"))
	assert.True(t, err.IsPlaceChildren("value"))
	assert.Equal(t, "BadFormat for attribute/value: too short", err.Error())
}
