package request

import (
	"github.com/go-cql/driver/frame"
)

// BatchType selects logged (atomic, default), unlogged, or counter batch
// semantics.
type BatchType frame.Byte

const (
	BatchLogged   BatchType = 0x00
	BatchUnlogged BatchType = 0x01
	BatchCounter  BatchType = 0x02
)

// BatchStatement is one statement within a BATCH: either a plain query
// string or a prepared statement id, plus its bound values.
type BatchStatement struct {
	ID      []byte // nil for a plain query
	Content string // only used when ID is nil
	Values  []frame.Value
	Names   []string
}

func (s *BatchStatement) writeTo(buf *frame.Buffer) {
	if s.ID != nil {
		buf.WriteByte(1)
		buf.WriteShortBytes(s.ID)
	} else {
		buf.WriteByte(0)
		buf.WriteLongString(s.Content)
	}

	withNames := len(s.Names) == len(s.Values) && len(s.Names) > 0
	buf.WriteShort(frame.Short(len(s.Values)))
	for i, v := range s.Values {
		if withNames {
			buf.WriteString(s.Names[i])
		}
		writeValue(buf, v)
	}
}

var _ frame.Request = (*Batch)(nil)

// Batch is a BATCH request: a sequence of statements executed together
// under the requested consistency level.
type Batch struct {
	Type              BatchType
	Statements        []BatchStatement
	Consistency       frame.Consistency
	SerialConsistency frame.Consistency
	Timestamp         frame.Long

	hasSerialConsistency bool
	hasTimestamp         bool
}

func (b *Batch) SetSerialConsistency(c frame.Consistency) {
	b.SerialConsistency = c
	b.hasSerialConsistency = true
}

func (b *Batch) SetTimestamp(ts frame.Long) {
	b.Timestamp = ts
	b.hasTimestamp = true
}

func (b *Batch) WriteTo(buf *frame.Buffer) {
	buf.WriteByte(byte(b.Type))
	buf.WriteShort(frame.Short(len(b.Statements)))
	for i := range b.Statements {
		b.Statements[i].writeTo(buf)
	}
	buf.WriteConsistency(b.Consistency)

	f := QueryFlags(0)
	if b.hasSerialConsistency {
		f |= FlagWithSerialConsistency
	}
	if b.hasTimestamp {
		f |= FlagWithDefaultTimestamp
	}
	buf.WriteByte(byte(f))
	if f&FlagWithSerialConsistency != 0 {
		buf.WriteConsistency(b.SerialConsistency)
	}
	if f&FlagWithDefaultTimestamp != 0 {
		buf.WriteLong(b.Timestamp)
	}
}

func (*Batch) OpCode() frame.OpCode { return frame.OpBatch }
