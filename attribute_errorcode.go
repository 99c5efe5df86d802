package stun

import "fmt"

// ErrorCode is the numeric class·number pair carried in an ERROR-CODE
// attribute (RFC 5389 Section 15.6, RFC 5766 Section 15).
type ErrorCode int

// Error kinds this core returns, mapped to their STUN wire codes.
const (
	CodeBadRequest           ErrorCode = 400
	CodeUnauthorized         ErrorCode = 401
	CodeForbidden            ErrorCode = 403
	CodeAllocationMismatch   ErrorCode = 437
	CodeStaleNonce           ErrorCode = 438
	CodeWrongCredentials     ErrorCode = 441
	CodeUnsupportedTransport ErrorCode = 442
	CodeServerError          ErrorCode = 500
	CodeInsufficientCapacity ErrorCode = 508
)

var errorReasons = map[ErrorCode]string{
	CodeBadRequest:           "Bad Request",
	CodeUnauthorized:         "Unauthorized",
	CodeForbidden:            "Forbidden",
	CodeAllocationMismatch:   "Allocation Mismatch",
	CodeStaleNonce:           "Stale Nonce",
	CodeWrongCredentials:     "Wrong Credentials",
	CodeUnsupportedTransport: "Unsupported Transport Protocol",
	CodeServerError:          "Server Error",
	CodeInsufficientCapacity: "Insufficient Capacity",
}

// Reason returns the recommended reason phrase for c.
func (c ErrorCode) Reason() string {
	if r, ok := errorReasons[c]; ok {
		return r
	}
	return "Unknown Error"
}

// ErrorCodeAttribute represents a decoded ERROR-CODE attribute value: the
// class/number split per RFC 5389 Section 15.6 plus its reason phrase.
type ErrorCodeAttribute struct {
	Code   ErrorCode
	Reason []byte
}

func (c ErrorCodeAttribute) String() string {
	return fmt.Sprintf("%d: %s", c.Code, c.Reason)
}

const (
	errorCodeReasonStart = 4
	errorCodeClassByte   = 2
	errorCodeNumberByte  = 3
	errorCodeModulo      = 100
	// errorCodeMinLen is the minimum valid ERROR-CODE attribute length: one
	// reserved+class byte, one number byte, and at least a 2-byte reserved
	// prefix before them (4 bytes total), plus at least a 2-byte reason.
	errorCodeMinLen = 6
)

// AddTo adds ERROR-CODE to m.
func (c ErrorCodeAttribute) AddTo(m *Message) error {
	value := make([]byte, errorCodeReasonStart+len(c.Reason))
	num := int(c.Code) % errorCodeModulo
	class := int(c.Code) / errorCodeModulo
	value[errorCodeClassByte] = byte(class)
	value[errorCodeNumberByte] = byte(num)
	copy(value[errorCodeReasonStart:], c.Reason)
	m.Add(AttrErrorCode, value)

	return nil
}

// GetFrom decodes ERROR-CODE from m.
func (c *ErrorCodeAttribute) GetFrom(m *Message) error {
	v, err := m.Get(AttrErrorCode)
	if err != nil {
		return err
	}
	if len(v) < errorCodeMinLen {
		return fmt.Errorf("%w: %w", ErrMalformedAttribute, newAttrDecodeErr("error-code",
			fmt.Sprintf("buffer length %d is less than %d", len(v), errorCodeMinLen)))
	}
	class := int(v[errorCodeClassByte])
	num := int(v[errorCodeNumberByte])
	c.Code = ErrorCode(class*errorCodeModulo + num)
	c.Reason = v[errorCodeReasonStart:]

	return nil
}
