package frame

import (
	"bytes"
	"fmt"
	"io"
)

// Short, Int, Long, Byte alias the wire integer widths so call sites read
// like the protocol spec ("a [short]", "an [int]") instead of raw Go ints.
type (
	Short = uint16
	Int   = int32
	Long  = int64
	Byte  = uint8
)

// Bytes is a CQL [bytes] value: nil distinguishes an absent value only at
// the call site, the wire-level null/unset distinction lives on Value.N.
type Bytes = []byte

// StringList is a CQL [string list].
type StringList []string

// StringMap is a CQL [string map].
type StringMap map[string]string

// StringMultimap is a CQL [string multimap].
type StringMultimap map[string][]string

// Buffer is a growable byte buffer with paired Write*/Read* methods. The
// first error encountered by any Read* call is latched and every
// subsequent Read* becomes a no-op; callers decode a whole frame body and
// check Error() once at the end instead of after every field.
type Buffer struct {
	buf bytes.Buffer
	err error
}

// Reset clears the buffer for reuse, dropping any latched error. Like
// bytes.Buffer itself, a Buffer can be written into and read out of in
// the same FIFO order without any explicit mode switch: connReader writes
// a header's worth of bytes, reads them back as a Header, then writes and
// reads the body the same way.
func (b *Buffer) Reset() {
	b.buf.Reset()
	b.err = nil
}

// Bytes returns the buffer's unread contents.
func (b *Buffer) Bytes() []byte { return b.buf.Bytes() }

// Error returns the first error latched by a Read* call, if any.
func (b *Buffer) Error() error { return b.err }

func (b *Buffer) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Fail latches err as the buffer's terminal error, for callers outside the
// frame package that detect a malformed body the plain Read* latch doesn't
// cover (an unrecognized kind/opcode discriminant, for instance).
func (b *Buffer) Fail(err error) { b.fail(err) }

// --- writes ---

func (b *Buffer) Write(p []byte) (int, error) { return b.buf.Write(p) }

func (b *Buffer) WriteByte(v byte) { b.buf.WriteByte(v) } //nolint:errcheck // bytes.Buffer never errors

func (b *Buffer) WriteShort(v Short) {
	b.buf.WriteByte(byte(v >> 8))
	b.buf.WriteByte(byte(v))
}

func (b *Buffer) WriteInt(v Int) {
	var tmp [4]byte
	byteOrder.PutUint32(tmp[:], uint32(v))
	b.buf.Write(tmp[:]) //nolint:errcheck
}

func (b *Buffer) WriteLong(v Long) {
	var tmp [8]byte
	byteOrder.PutUint64(tmp[:], uint64(v))
	b.buf.Write(tmp[:]) //nolint:errcheck
}

func (b *Buffer) WriteString(s string) {
	b.WriteShort(Short(len(s)))
	b.buf.WriteString(s) //nolint:errcheck
}

func (b *Buffer) WriteLongString(s string) {
	b.WriteInt(Int(len(s)))
	b.buf.WriteString(s) //nolint:errcheck
}

func (b *Buffer) WriteStringList(l StringList) {
	b.WriteShort(Short(len(l)))
	for _, s := range l {
		b.WriteString(s)
	}
}

func (b *Buffer) WriteStringMap(m StringMap) {
	b.WriteShort(Short(len(m)))
	for k, v := range m {
		b.WriteString(k)
		b.WriteString(v)
	}
}

// WriteBytes writes a [bytes]: a 4-byte signed length followed by that many
// bytes, or a negative length with no payload (null = -1, historically; the
// value codec uses -2 for "unset" on top of this same length-prefixed shape).
func (b *Buffer) WriteBytes(v []byte) {
	if v == nil {
		b.WriteInt(-1)
		return
	}
	b.WriteInt(Int(len(v)))
	b.buf.Write(v) //nolint:errcheck
}

func (b *Buffer) WriteShortBytes(v []byte) {
	b.WriteShort(Short(len(v)))
	b.buf.Write(v) //nolint:errcheck
}

func (b *Buffer) WriteUUID(u UUID) {
	b.buf.Write(u[:]) //nolint:errcheck
}

func (b *Buffer) WriteConsistency(c Consistency) { b.WriteShort(Short(c)) }

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
}

// --- reads ---
// Each Read* call consumes from the buffer; on an underlying error it
// latches and returns the zero value.

func (b *Buffer) ReadByte() byte {
	if b.err != nil {
		return 0
	}
	v, err := b.buf.ReadByte()
	if err != nil {
		b.fail(fmt.Errorf("read byte: %w", err))
		return 0
	}
	return v
}

func (b *Buffer) readN(n int) []byte {
	if b.err != nil || n <= 0 {
		return nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(&b.buf, out); err != nil {
		b.fail(fmt.Errorf("read %d bytes: %w", n, err))
		return nil
	}
	return out
}

func (b *Buffer) ReadShort() Short {
	buf := b.readN(2)
	if b.err != nil {
		return 0
	}
	return byteOrder.Uint16(buf)
}

func (b *Buffer) ReadInt() Int {
	buf := b.readN(4)
	if b.err != nil {
		return 0
	}
	return int32(byteOrder.Uint32(buf))
}

func (b *Buffer) ReadLong() Long {
	buf := b.readN(8)
	if b.err != nil {
		return 0
	}
	return int64(byteOrder.Uint64(buf))
}

func (b *Buffer) ReadString() string {
	n := b.ReadShort()
	buf := b.readN(int(n))
	if b.err != nil {
		return ""
	}
	return string(buf)
}

func (b *Buffer) ReadLongString() string {
	n := b.ReadInt()
	buf := b.readN(int(n))
	if b.err != nil {
		return ""
	}
	return string(buf)
}

func (b *Buffer) ReadStringList() StringList {
	n := b.ReadShort()
	if b.err != nil {
		return nil
	}
	out := make(StringList, n)
	for i := range out {
		out[i] = b.ReadString()
	}
	return out
}

func (b *Buffer) ReadStringMap() StringMap {
	n := b.ReadShort()
	if b.err != nil {
		return nil
	}
	out := make(StringMap, n)
	for i := Short(0); i < n; i++ {
		k := b.ReadString()
		v := b.ReadString()
		out[k] = v
	}
	return out
}

func (b *Buffer) ReadStringMultimap() StringMultimap {
	n := b.ReadShort()
	if b.err != nil {
		return nil
	}
	out := make(StringMultimap, n)
	for i := Short(0); i < n; i++ {
		k := b.ReadString()
		v := b.ReadStringList()
		out[k] = v
	}
	return out
}

// ReadBytes reads a [bytes]: length -1 means null, any other negative
// length (protocol v4+ [value] shape) means unset; both yield a nil slice,
// distinguished by N on the caller's Value so collection elements -- which
// never permit unset -- can reject it.
func (b *Buffer) ReadBytes() (Bytes, Int) {
	n := b.ReadInt()
	if b.err != nil || n < 0 {
		return nil, n
	}
	return b.readN(int(n)), n
}

func (b *Buffer) ReadShortBytes() []byte {
	n := b.ReadShort()
	return b.readN(int(n))
}

func (b *Buffer) ReadUUID() UUID {
	var u UUID
	buf := b.readN(16)
	if b.err != nil {
		return u
	}
	copy(u[:], buf)
	return u
}

func (b *Buffer) ReadConsistency() Consistency { return Consistency(b.ReadShort()) }

func (b *Buffer) ReadBool() bool { return b.ReadByte() != 0 }
