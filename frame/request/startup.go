// Package request implements the client-to-server CQL frame bodies:
// STARTUP, AUTH_RESPONSE, OPTIONS, QUERY, PREPARE, EXECUTE, BATCH, REGISTER.
package request

import (
	"github.com/go-cql/driver/frame"
)

var _ frame.Request = (*Startup)(nil)

// StartupOptions are the key/value pairs sent in a STARTUP frame, notably
// CQL_VERSION and, when the connection negotiated compression, COMPRESSION.
type StartupOptions = frame.StringMap

// Startup is the first frame sent on every new connection.
type Startup struct {
	Options StartupOptions
}

func (s *Startup) WriteTo(buf *frame.Buffer) {
	buf.WriteStringMap(s.Options)
}

func (*Startup) OpCode() frame.OpCode { return frame.OpStartup }

var _ frame.Request = (*AuthResponse)(nil)

// AuthResponse carries a SASL token in response to an AUTHENTICATE or
// AUTH_CHALLENGE frame.
type AuthResponse struct {
	Token []byte
}

func (a *AuthResponse) WriteTo(buf *frame.Buffer) {
	buf.WriteBytes(a.Token)
}

func (*AuthResponse) OpCode() frame.OpCode { return frame.OpAuthResponse }
