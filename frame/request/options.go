package request

import (
	"github.com/go-cql/driver/frame"
)

var _ frame.Request = (*Options)(nil)

// Options asks the server to list the supported startup options (CQL
// versions, compression algorithms). Sent with no body. Also doubles as
// the connection's heartbeat frame: transport.Conn sends one every
// heartbeat interval, whether or not other requests were sent meanwhile.
type Options struct{}

func (*Options) WriteTo(_ *frame.Buffer) {}

func (*Options) OpCode() frame.OpCode {
	return frame.OpOptions
}

var _ frame.Request = (*Register)(nil)

// Register subscribes the connection to one or more server event types
// (TOPOLOGY_CHANGE, STATUS_CHANGE, SCHEMA_CHANGE); used exclusively by the
// control connection.
type Register struct {
	EventTypes frame.StringList
}

func (r *Register) WriteTo(buf *frame.Buffer) {
	buf.WriteStringList(r.EventTypes)
}

func (*Register) OpCode() frame.OpCode {
	return frame.OpRegister
}
