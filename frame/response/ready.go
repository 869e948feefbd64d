package response

import "github.com/go-cql/driver/frame"

// Ready is returned for a STARTUP that required no authentication.
type Ready struct {
	frame.BaseResponse
}

func ParseReady(_ *frame.Buffer) *Ready { return &Ready{} }

// Supported is returned for an OPTIONS request, listing the server's
// supported CQL versions, compression algorithms, and protocol extensions.
type Supported struct {
	frame.BaseResponse
	Options frame.StringMultimap
}

func ParseSupported(buf *frame.Buffer) *Supported {
	return &Supported{Options: buf.ReadStringMultimap()}
}
