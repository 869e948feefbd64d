// Package frame implements the CQL native protocol framing: the 8/9-byte
// header, the request/response marker interfaces, and the growable buffer
// used to encode and decode frame bodies.
package frame

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion identifies a CQL native protocol revision. DSE versions
// are encoded with bit 0x40 set (0x41, 0x42); the high bit 0x80 is the
// wire's direction bit.
type ProtocolVersion byte

const (
	CQLv1 ProtocolVersion = 0x01
	CQLv2 ProtocolVersion = 0x02
	CQLv3 ProtocolVersion = 0x03
	CQLv4 ProtocolVersion = 0x04
	CQLv5 ProtocolVersion = 0x05

	DSEv1 ProtocolVersion = 0x41
	DSEv2 ProtocolVersion = 0x42

	protoVersionMask    = 0x7F
	protoResponseMask   = 0x80
	minSupportedVersion = CQLv1
	maxSupportedVersion = CQLv5
)

// HeaderSize returns the header length for the given negotiated version:
// 8 bytes for v1-v2 (i8 stream id), 9 bytes for v3+ (i16 stream id).
func HeaderSize(v ProtocolVersion) int {
	if v == CQLv1 || v == CQLv2 {
		return 8
	}
	return 9
}

// OpCode is the single byte identifying a frame's request or response kind.
type OpCode byte

const (
	OpError        OpCode = 0x00
	OpStartup      OpCode = 0x01
	OpReady        OpCode = 0x02
	OpAuthenticate OpCode = 0x03
	OpOptions      OpCode = 0x05
	OpSupported    OpCode = 0x06
	OpQuery        OpCode = 0x07
	OpResult       OpCode = 0x08
	OpPrepare      OpCode = 0x09
	OpExecute      OpCode = 0x0A
	OpRegister     OpCode = 0x0B
	OpEvent        OpCode = 0x0C
	OpBatch        OpCode = 0x0D
	OpAuthChallenge OpCode = 0x0E
	OpAuthResponse OpCode = 0x0F
	OpAuthSuccess  OpCode = 0x10
)

// HeaderFlags is the per-frame flag bitmask.
type HeaderFlags byte

const (
	FlagCompression   HeaderFlags = 0x01
	FlagTracing       HeaderFlags = 0x02
	FlagCustomPayload HeaderFlags = 0x04 // v4+
	FlagWarning       HeaderFlags = 0x08 // v4+
	FlagUseBeta       HeaderFlags = 0x10 // v5
)

// StreamID correlates a response with the request that produced it. It is
// an i8 on v1-v2 and an i16 on v3+; the type itself is always wide enough.
type StreamID int16

// Consistency is the CQL consistency level, shared between requests
// (desired CL) and error bodies (achieved/required CL).
type Consistency uint16

const (
	ANY         Consistency = 0x0000
	ONE         Consistency = 0x0001
	TWO         Consistency = 0x0002
	THREE       Consistency = 0x0003
	QUORUM      Consistency = 0x0004
	ALL         Consistency = 0x0005
	LOCALQUORUM Consistency = 0x0006
	EACHQUORUM  Consistency = 0x0007
	SERIAL      Consistency = 0x0008
	LOCALSERIAL Consistency = 0x0009
	LOCALONE    Consistency = 0x000A
)

func (c Consistency) String() string {
	switch c {
	case ANY:
		return "ANY"
	case ONE:
		return "ONE"
	case TWO:
		return "TWO"
	case THREE:
		return "THREE"
	case QUORUM:
		return "QUORUM"
	case ALL:
		return "ALL"
	case LOCALQUORUM:
		return "LOCAL_QUORUM"
	case EACHQUORUM:
		return "EACH_QUORUM"
	case SERIAL:
		return "SERIAL"
	case LOCALSERIAL:
		return "LOCAL_SERIAL"
	case LOCALONE:
		return "LOCAL_ONE"
	default:
		return fmt.Sprintf("UNKNOWN(%#04x)", uint16(c))
	}
}

// Header is the decoded frame header, version-normalized so callers never
// need to branch on the stream-id width themselves.
type Header struct {
	Version  ProtocolVersion
	Flags    HeaderFlags
	StreamID StreamID
	OpCode   OpCode
	Length   uint32
}

// WriteTo serializes the header, writing h.Length as given; the caller
// sets Length to the body size first (see transport.connWriter.send).
func (h Header) WriteTo(buf *Buffer) {
	v := byte(h.Version)
	if h.response() {
		v |= protoResponseMask
	}
	buf.WriteByte(v)
	buf.WriteByte(byte(h.Flags))
	if h.Version == CQLv1 || h.Version == CQLv2 {
		buf.WriteByte(byte(int8(h.StreamID)))
	} else {
		buf.WriteShort(Short(h.StreamID))
	}
	buf.WriteByte(byte(h.OpCode))
	buf.WriteInt(int32(h.Length))
}

func (h Header) response() bool { return false }

// ParseHeader decodes a header whose first byte direction bit has already
// told the caller whether this is a response (always true for anything the
// driver reads off the wire).
func ParseHeader(buf *Buffer) Header {
	vByte := buf.ReadByte()
	v := ProtocolVersion(vByte & protoVersionMask)
	flags := HeaderFlags(buf.ReadByte())

	var sid StreamID
	if v == CQLv1 || v == CQLv2 {
		sid = StreamID(int8(buf.ReadByte()))
	} else {
		sid = StreamID(buf.ReadShort())
	}

	op := OpCode(buf.ReadByte())
	length := uint32(buf.ReadInt())

	return Header{Version: v, Flags: flags, StreamID: sid, OpCode: op, Length: length}
}

// Request is implemented by every outgoing frame body.
type Request interface {
	WriteTo(buf *Buffer)
	OpCode() OpCode
}

// Response is a marker interface implemented by every decoded frame body.
type Response interface {
	opResponse()
}

// BaseResponse is embedded by concrete response types so they satisfy
// Response without repeating the marker method.
type BaseResponse struct{}

func (BaseResponse) opResponse() {}

// CopyBuffer writes buf's contents to w, mirroring io.Copy without an
// intermediate io.Reader allocation for the common "flush one frame" path.
func CopyBuffer(buf *Buffer, w io.Writer) (int64, error) {
	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// BufferWriter adapts *Buffer to io.Writer so io.CopyN can stream straight
// into it while decoding.
func BufferWriter(buf *Buffer) io.Writer { return bufferWriter{buf} }

type bufferWriter struct{ buf *Buffer }

func (w bufferWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	return len(p), nil
}

var byteOrder = binary.BigEndian
