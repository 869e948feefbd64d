package response

import "github.com/go-cql/driver/frame"

// EventType names the three REGISTER-able event classes.
type EventType string

const (
	TopologyChange EventType = "TOPOLOGY_CHANGE"
	StatusChange   EventType = "STATUS_CHANGE"
	SchemaChange   EventType = "SCHEMA_CHANGE"
)

// Event is a server-pushed notification delivered on the connection that
// REGISTERed for it, out of band from any request/response pairing.
type Event struct {
	frame.BaseResponse
	Type EventType

	// TOPOLOGY_CHANGE / STATUS_CHANGE
	Change  string // NEW_NODE, REMOVED_NODE, MOVED_NODE, UP, DOWN
	Address frame.Inet

	// SCHEMA_CHANGE
	SchemaChangeType string
	Target           string
	Keyspace         string
	Object           string
	Arguments        frame.StringList
}

// ParseEvent decodes an EVENT frame body.
func ParseEvent(buf *frame.Buffer) *Event {
	e := &Event{Type: EventType(buf.ReadString())}

	switch e.Type {
	case TopologyChange, StatusChange:
		e.Change = buf.ReadString()
		e.Address = readEventInet(buf)
	case SchemaChange:
		e.SchemaChangeType = buf.ReadString()
		e.Target = buf.ReadString()
		switch e.Target {
		case "KEYSPACE":
			e.Keyspace = buf.ReadString()
		case "TABLE", "TYPE":
			e.Keyspace = buf.ReadString()
			e.Object = buf.ReadString()
		case "FUNCTION", "AGGREGATE":
			e.Keyspace = buf.ReadString()
			e.Object = buf.ReadString()
			e.Arguments = buf.ReadStringList()
		}
	}

	return e
}

// readEventInet decodes the [inet] shape used by TOPOLOGY_CHANGE/
// STATUS_CHANGE events: a length byte, the raw address bytes, then a port.
func readEventInet(buf *frame.Buffer) frame.Inet {
	n := buf.ReadByte()
	ip := make([]byte, n)
	for i := range ip {
		ip[i] = buf.ReadByte()
	}
	port := buf.ReadInt()
	return frame.Inet{IP: ip, Port: port}
}
