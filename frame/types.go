package frame

import (
	"encoding/hex"
	"fmt"
)

// UUID is a 16-byte CQL uuid/timeuuid value.
type UUID [16]byte

func (u UUID) String() string {
	var b [36]byte
	hex.Encode(b[0:8], u[0:4])
	b[8] = '-'
	hex.Encode(b[9:13], u[4:6])
	b[13] = '-'
	hex.Encode(b[14:18], u[6:8])
	b[18] = '-'
	hex.Encode(b[19:23], u[8:10])
	b[23] = '-'
	hex.Encode(b[24:36], u[10:16])
	return string(b[:])
}

// OptionID is the CQL type code carried by a result set's column spec and
// by a prepared statement's bind-marker metadata.
type OptionID Short

const (
	CustomID    OptionID = 0x0000
	AsciiID     OptionID = 0x0001
	BigintID    OptionID = 0x0002
	BlobID      OptionID = 0x0003
	BooleanID   OptionID = 0x0004
	CounterID   OptionID = 0x0005
	DecimalID   OptionID = 0x0006
	DoubleID    OptionID = 0x0007
	FloatID     OptionID = 0x0008
	IntID       OptionID = 0x0009
	TextID      OptionID = 0x000A
	TimestampID OptionID = 0x000B
	UUIDID      OptionID = 0x000C
	VarcharID   OptionID = 0x000D
	VarintID    OptionID = 0x000E
	TimeUUIDID  OptionID = 0x000F
	InetID      OptionID = 0x0010
	DateID      OptionID = 0x0011
	TimeID      OptionID = 0x0012
	SmallIntID  OptionID = 0x0013
	TinyIntID   OptionID = 0x0014
	DurationID  OptionID = 0x0015
	ListID      OptionID = 0x0020
	MapID       OptionID = 0x0021
	SetID       OptionID = 0x0022
	UDTID       OptionID = 0x0030
	TupleID     OptionID = 0x0031
)

func (id OptionID) String() string {
	switch id {
	case CustomID:
		return "custom"
	case AsciiID:
		return "ascii"
	case BigintID:
		return "bigint"
	case BlobID:
		return "blob"
	case BooleanID:
		return "boolean"
	case CounterID:
		return "counter"
	case DecimalID:
		return "decimal"
	case DoubleID:
		return "double"
	case FloatID:
		return "float"
	case IntID:
		return "int"
	case TextID, VarcharID:
		return "text"
	case TimestampID:
		return "timestamp"
	case UUIDID:
		return "uuid"
	case VarintID:
		return "varint"
	case TimeUUIDID:
		return "timeuuid"
	case InetID:
		return "inet"
	case DateID:
		return "date"
	case TimeID:
		return "time"
	case SmallIntID:
		return "smallint"
	case TinyIntID:
		return "tinyint"
	case DurationID:
		return "duration"
	case ListID:
		return "list"
	case MapID:
		return "map"
	case SetID:
		return "set"
	case UDTID:
		return "udt"
	case TupleID:
		return "tuple"
	default:
		return fmt.Sprintf("unknown(%#04x)", Short(id))
	}
}

// Option describes a bind marker or result column's full type, including
// the nested element/key/value types for collections, tuples and UDTs.
type Option struct {
	ID     OptionID
	Custom string       // CustomID only
	List   *ListOption  // ListID, SetID
	Map    *MapOption   // MapID
	Tuple  *TupleOption // TupleID
	UDT    *UDTOption   // UDTID
}

type ListOption struct{ Element Option }
type MapOption struct{ Key, Value Option }
type TupleOption struct{ Elements []Option }
type UDTOption struct {
	Keyspace   string
	Name       string
	FieldNames []string
	FieldTypes []Option
}

// ColumnSpec is one column of a result set's or prepared statement's
// metadata: keyspace/table are read per column when the GlobalTablesSpec
// flag is clear on the owning ResultMetadata/PreparedMetadata, and copied
// from the global table spec when it is set.
type ColumnSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     Option
}

// ResultMetadataFlags are the per-column-spec flags carried by Rows/Prepared
// result metadata.
type ResultMetadataFlags Int

const (
	GlobalTablesSpec ResultMetadataFlags = 0x0001
	HasMorePages     ResultMetadataFlags = 0x0002
	NoMetadata       ResultMetadataFlags = 0x0004
	MetadataChanged  ResultMetadataFlags = 0x0008
)

// ResultMetadata describes the shape of a Rows result or an Execute's
// expected result (copied onto PreparedInfo after a successful PREPARE).
type ResultMetadata struct {
	Flags       ResultMetadataFlags
	ColumnCount Int
	PagingState Bytes
	Columns     []ColumnSpec
}

// PreparedMetadata describes a prepared statement's bind markers, plus the
// partition-key column indices the routing-key computation needs.
type PreparedMetadata struct {
	Flags        ResultMetadataFlags
	ColumnCount  Int
	PKIndices    []Short
	Columns      []ColumnSpec
}

// Value is one decoded column value: N distinguishes null (-1) and unset
// (-2, v4+ requests only) from a present, possibly zero-length, payload.
type Value struct {
	N     Int
	Bytes []byte
	Type  *Option
}

// IsNull reports whether this value is the CQL null sentinel (length -1).
func (v Value) IsNull() bool { return v.N == -1 }

// IsUnset reports whether this value is the CQL unset sentinel (length -2,
// protocol v4+ only). A null collection element is never valid and is
// rejected by the value codec, but unset never appears inside a collection
// either since it is only meaningful for a top-level bind marker.
func (v Value) IsUnset() bool { return v.N == -2 }

// Row is one decoded result row: one Value per column, in column-spec order.
type Row []Value

// Inet is a CQL inet value: an IP address plus an optional port (ports are
// only present in PEER_ events' native_transport_address-shaped payloads;
// plain inet columns carry Port == 0).
type Inet struct {
	IP   []byte // 4 bytes (IPv4) or 16 bytes (IPv6)
	Port Int
}

// Duration is a CQL duration value: months and days are signed counts, and
// nanoseconds is the sub-day remainder; all three share the same sign.
type Duration struct {
	Months      int32
	Days        int32
	Nanoseconds int64
}
