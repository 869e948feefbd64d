package response

import "github.com/go-cql/driver/frame"

// Authenticate tells the client which IAuthenticator implementation the
// server requires; the client answers with STARTUP -> AUTH_RESPONSE using
// the matching SASL mechanism.
type Authenticate struct {
	frame.BaseResponse
	Authenticator string
}

// ParseAuthenticate decodes an AUTHENTICATE frame body. It must never
// panic on malformed input: Buffer.Error() is checked once by the caller
// after parsing, never mid-parse, so corrupt/fuzzed bytes just produce a
// latched error and a partially-zeroed struct.
func ParseAuthenticate(buf *frame.Buffer) *Authenticate {
	return &Authenticate{Authenticator: buf.ReadString()}
}

// AuthChallenge carries an intermediate SASL challenge token.
type AuthChallenge struct {
	frame.BaseResponse
	Token []byte
}

func ParseAuthChallenge(buf *frame.Buffer) *AuthChallenge {
	token, _ := buf.ReadBytes()
	return &AuthChallenge{Token: token}
}

// AuthSuccess carries the final SASL token once authentication succeeds.
type AuthSuccess struct {
	frame.BaseResponse
	Token []byte
}

func ParseAuthSuccess(buf *frame.Buffer) *AuthSuccess {
	token, _ := buf.ReadBytes()
	return &AuthSuccess{Token: token}
}
