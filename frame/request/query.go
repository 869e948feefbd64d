package request

import (
	"github.com/go-cql/driver/frame"
)

// QueryFlags are the per-request bitmask controlling which optional QUERY/
// EXECUTE/BATCH fields follow the consistency level.
type QueryFlags frame.Byte

const (
	FlagValues                QueryFlags = 0x01
	FlagSkipMetadata          QueryFlags = 0x02
	FlagPageSize              QueryFlags = 0x04
	FlagWithPagingState       QueryFlags = 0x08
	FlagWithSerialConsistency QueryFlags = 0x10
	FlagWithDefaultTimestamp  QueryFlags = 0x20
	FlagWithNamesForValues    QueryFlags = 0x40
)

// QueryParams bundles the fields shared by QUERY and EXECUTE requests.
// Protocol v5's per-query keyspace and now-in-seconds overrides are niche
// enough (and absent from the v1-v4 wire shape the rest of this type
// models) that they are intentionally left unimplemented here.
type QueryParams struct {
	Consistency       frame.Consistency
	Values            []frame.Value
	Names             []string // only meaningful when len(Names) == len(Values)
	SkipMetadata      bool
	PageSize          frame.Int
	PagingState       frame.Bytes
	SerialConsistency frame.Consistency
	Timestamp         frame.Long // microseconds since epoch; sent only when set with SetTimestamp

	hasSerialConsistency bool
	hasTimestamp         bool
}

// SetSerialConsistency records an explicit serial consistency, distinct
// from the zero value ANY meaning "not set".
func (p *QueryParams) SetSerialConsistency(c frame.Consistency) {
	p.SerialConsistency = c
	p.hasSerialConsistency = true
}

// SetTimestamp records an explicit client-side write timestamp.
func (p *QueryParams) SetTimestamp(ts frame.Long) {
	p.Timestamp = ts
	p.hasTimestamp = true
}

func (p *QueryParams) flags() QueryFlags {
	var f QueryFlags
	if len(p.Values) > 0 {
		f |= FlagValues
	}
	if p.SkipMetadata {
		f |= FlagSkipMetadata
	}
	if p.PageSize > 0 {
		f |= FlagPageSize
	}
	if p.PagingState != nil {
		f |= FlagWithPagingState
	}
	if p.hasSerialConsistency {
		f |= FlagWithSerialConsistency
	}
	if p.hasTimestamp {
		f |= FlagWithDefaultTimestamp
	}
	if len(p.Names) == len(p.Values) && len(p.Names) > 0 {
		f |= FlagWithNamesForValues
	}
	return f
}

func (p *QueryParams) writeTo(buf *frame.Buffer) {
	buf.WriteConsistency(p.Consistency)
	f := p.flags()
	buf.WriteByte(byte(f))
	if f&FlagValues != 0 {
		buf.WriteShort(frame.Short(len(p.Values)))
		for i, v := range p.Values {
			if f&FlagWithNamesForValues != 0 {
				buf.WriteString(p.Names[i])
			}
			writeValue(buf, v)
		}
	}
	if f&FlagPageSize != 0 {
		buf.WriteInt(p.PageSize)
	}
	if f&FlagWithPagingState != 0 {
		buf.WriteBytes(p.PagingState)
	}
	if f&FlagWithSerialConsistency != 0 {
		buf.WriteConsistency(p.SerialConsistency)
	}
	if f&FlagWithDefaultTimestamp != 0 {
		buf.WriteLong(p.Timestamp)
	}
}

// writeValue writes a [value]: an int length followed by that many bytes,
// or the v4+ null(-1)/unset(-2) sentinel with no payload.
func writeValue(buf *frame.Buffer, v frame.Value) {
	buf.WriteInt(v.N)
	if v.N > 0 {
		buf.Write(v.Bytes) //nolint:errcheck
	}
}

var _ frame.Request = (*Query)(nil)

// Query is a QUERY request: a plain CQL statement plus its parameters.
type Query struct {
	Content string
	Params  QueryParams
}

func (q *Query) WriteTo(buf *frame.Buffer) {
	buf.WriteLongString(q.Content)
	q.Params.writeTo(buf)
}

func (*Query) OpCode() frame.OpCode { return frame.OpQuery }

var _ frame.Request = (*Prepare)(nil)

// Prepare is a PREPARE request: asks the server to parse and cache a
// statement, returning an opaque id for later EXECUTE requests.
type Prepare struct {
	Content string
}

func (p *Prepare) WriteTo(buf *frame.Buffer) {
	buf.WriteLongString(p.Content)
}

func (*Prepare) OpCode() frame.OpCode { return frame.OpPrepare }

var _ frame.Request = (*Execute)(nil)

// Execute runs a previously prepared statement by id.
type Execute struct {
	ID     []byte
	Params QueryParams
}

func (e *Execute) WriteTo(buf *frame.Buffer) {
	buf.WriteShortBytes(e.ID)
	e.Params.writeTo(buf)
}

func (*Execute) OpCode() frame.OpCode { return frame.OpExecute }
