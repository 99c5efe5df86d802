package stun

// Setter sets a *Message attribute. Every outgoing request/response/
// indication this relay builds — the auth-challenge and success
// responses in turn/handlers.go, the Data indication in
// turn/send.go's BuildDataIndication — is assembled as a list of
// Setters passed to Message.Build.
type Setter interface {
	AddTo(m *Message) error
}

// Getter decodes a *Message attribute. turn/handlers.go's authenticate
// and every request handler use Getter implementations (Username, Nonce,
// XORPeerAddress, ...) to pull attributes back out of an inbound request.
type Getter interface {
	GetFrom(m *Message) error
}

// Checker verifies a *Message attribute against its expected value.
// Message.Check runs several Checkers in order. turn/handlers.go's
// authenticate calls MessageIntegrity's Check directly; inbound
// FINGERPRINT attributes are not checked.
type Checker interface {
	Check(m *Message) error
}

// Build resets m, writes its header, and applies setters in order. A
// failing Setter aborts the build and returns its error; an allocation
// request's REQUESTED-TRANSPORT/LIFETIME attributes, for instance, are
// built this way before being signed with MESSAGE-INTEGRITY.
func (m *Message) Build(setters ...Setter) error {
	m.Reset()
	m.WriteHeader()
	for _, s := range setters {
		if err := s.AddTo(m); err != nil {
			return err
		}
	}
	return nil
}

// Check runs every checker against m, stopping at the first failure.
func (m *Message) Check(checkers ...Checker) error {
	for _, c := range checkers {
		if err := c.Check(m); err != nil {
			return err
		}
	}
	return nil
}
