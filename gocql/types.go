package gocql

import "errors"

// unsetColumn marks a bind value Cassandra should ignore entirely rather
// than write as NULL. Only meaningful against protocol 4 and later.
type unsetColumn struct{}

// UnsetValue represents a value used in a query binding that will be
// ignored by Cassandra rather than written as a tombstone.
var UnsetValue = unsetColumn{}

var ErrNotFound = errors.New("not found")

// Consistency mirrors the real gocql package's numbering so callers can
// port constants across without translation.
type Consistency uint16

const (
	Any         Consistency = 0x00
	One         Consistency = 0x01
	Two         Consistency = 0x02
	Three       Consistency = 0x03
	Quorum      Consistency = 0x04
	All         Consistency = 0x05
	LocalQuorum Consistency = 0x06
	EachQuorum  Consistency = 0x07
	Serial      Consistency = 0x08
	LocalSerial Consistency = 0x09
	LocalOne    Consistency = 0x0A
)

// ColumnInfo describes one column of a result set, as returned by
// Iter.Columns.
type ColumnInfo struct {
	Keyspace string
	Table    string
	Name     string
}

// RetryPolicy, SpeculativeExecutionPolicy, SerialConsistency, QueryObserver
// and Tracer are accepted for source compatibility with code written
// against the real gocql package. A RetryPolicy is used only when it also
// implements transport.RetryPolicy, and a SerialConsistency only when it
// holds a Consistency; SpeculativeExecutionPolicy, QueryObserver and Tracer
// are not wired to anything.
type RetryPolicy interface{}
type SpeculativeExecutionPolicy interface{}
type SerialConsistency interface{}
type QueryObserver interface{}
type Tracer interface{}

// Compressor selects the STARTUP compression algorithm negotiated with the
// cluster. Only SnappyCompressor is recognised by sessionConfigFromGocql.
type Compressor interface {
	Name() string
}

type SnappyCompressor struct{}

func (SnappyCompressor) Name() string { return "snappy" }

type Authenticator interface{}

type PasswordAuthenticator struct {
	Username, Password string
}
