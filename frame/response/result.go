package response

import (
	"fmt"

	"github.com/go-cql/driver/frame"
)

// ResultKind identifies the shape of a RESULT frame body.
type ResultKind frame.Int

const (
	ResultVoid         ResultKind = 0x0001
	ResultRows         ResultKind = 0x0002
	ResultSetKeyspace  ResultKind = 0x0003
	ResultPrepared     ResultKind = 0x0004
	ResultSchemaChange ResultKind = 0x0005
)

// VoidResult is returned for statements that produce no rows (INSERT,
// UPDATE, DELETE, DDL without a schema change notification).
type VoidResult struct {
	frame.BaseResponse
}

// RowsResult carries a result set: metadata describing the columns and the
// rows themselves, still encoded as raw [bytes] per frame.Value.
type RowsResult struct {
	frame.BaseResponse
	Metadata frame.ResultMetadata
	Rows     []frame.Row
}

// SetKeyspaceResult acknowledges a USE statement.
type SetKeyspaceResult struct {
	frame.BaseResponse
	Keyspace string
}

// PreparedResult is returned for a PREPARE request: the opaque statement id
// plus the metadata needed to bind values and to decode the eventual rows.
type PreparedResult struct {
	frame.BaseResponse
	ID               []byte
	PreparedMetadata frame.PreparedMetadata
	ResultMetadata   frame.ResultMetadata
}

// SchemaChangeResult announces a DDL side effect (CREATED/UPDATED/DROPPED
// on a KEYSPACE/TABLE/TYPE/FUNCTION/AGGREGATE).
type SchemaChangeResult struct {
	frame.BaseResponse
	ChangeType string
	Target     string
	Keyspace   string
	Object     string
	Arguments  frame.StringList
}

func parseResultMetadata(buf *frame.Buffer) frame.ResultMetadata {
	var m frame.ResultMetadata
	flags := frame.ResultMetadataFlags(buf.ReadInt())
	colCount := int(buf.ReadInt())
	m.Flags = flags
	m.ColumnCount = frame.Int(colCount)

	if flags&frame.HasMorePages != 0 {
		m.PagingState, _ = buf.ReadBytes()
	}
	if flags&frame.NoMetadata != 0 {
		return m
	}

	var globalKeyspace, globalTable string
	global := flags&frame.GlobalTablesSpec != 0
	if global {
		globalKeyspace = buf.ReadString()
		globalTable = buf.ReadString()
	}

	m.Columns = make([]frame.ColumnSpec, colCount)
	for i := 0; i < colCount; i++ {
		cs := &m.Columns[i]
		if global {
			cs.Keyspace = globalKeyspace
			cs.Table = globalTable
		} else {
			cs.Keyspace = buf.ReadString()
			cs.Table = buf.ReadString()
		}
		cs.Name = buf.ReadString()
		cs.Type = frame.ReadOption(buf)
	}

	return m
}

func parsePreparedMetadata(buf *frame.Buffer) frame.PreparedMetadata {
	var m frame.PreparedMetadata
	flags := frame.ResultMetadataFlags(buf.ReadInt())
	colCount := int(buf.ReadInt())
	m.Flags = flags
	m.ColumnCount = frame.Int(colCount)

	pkCount := int(buf.ReadInt())
	m.PKIndices = make([]frame.Short, pkCount)
	for i := 0; i < pkCount; i++ {
		m.PKIndices[i] = buf.ReadShort()
	}

	var globalKeyspace, globalTable string
	global := flags&frame.GlobalTablesSpec != 0
	if global {
		globalKeyspace = buf.ReadString()
		globalTable = buf.ReadString()
	}

	m.Columns = make([]frame.ColumnSpec, colCount)
	for i := 0; i < colCount; i++ {
		cs := &m.Columns[i]
		if global {
			cs.Keyspace = globalKeyspace
			cs.Table = globalTable
		} else {
			cs.Keyspace = buf.ReadString()
			cs.Table = buf.ReadString()
		}
		cs.Name = buf.ReadString()
		cs.Type = frame.ReadOption(buf)
	}

	return m
}

func parseRow(buf *frame.Buffer, meta *frame.ResultMetadata) frame.Row {
	row := make(frame.Row, len(meta.Columns))
	for i := range row {
		b, n := buf.ReadBytes()
		row[i].N = n
		row[i].Bytes = b
		row[i].Type = &meta.Columns[i].Type
	}
	return row
}

// ParseResult decodes a RESULT frame body into the shape implied by its
// leading [int] kind.
func ParseResult(buf *frame.Buffer) frame.Response {
	kind := ResultKind(buf.ReadInt())

	switch kind {
	case ResultVoid:
		return &VoidResult{}
	case ResultRows:
		meta := parseResultMetadata(buf)
		rowCount := int(buf.ReadInt())
		rows := make([]frame.Row, rowCount)
		for i := 0; i < rowCount; i++ {
			rows[i] = parseRow(buf, &meta)
		}
		return &RowsResult{Metadata: meta, Rows: rows}
	case ResultSetKeyspace:
		return &SetKeyspaceResult{Keyspace: buf.ReadString()}
	case ResultPrepared:
		id := buf.ReadShortBytes()
		pm := parsePreparedMetadata(buf)
		rm := parseResultMetadata(buf)
		return &PreparedResult{ID: id, PreparedMetadata: pm, ResultMetadata: rm}
	case ResultSchemaChange:
		sc := &SchemaChangeResult{
			ChangeType: buf.ReadString(),
			Target:     buf.ReadString(),
		}
		switch sc.Target {
		case "KEYSPACE":
			sc.Keyspace = buf.ReadString()
		case "TABLE", "TYPE":
			sc.Keyspace = buf.ReadString()
			sc.Object = buf.ReadString()
		case "FUNCTION", "AGGREGATE":
			sc.Keyspace = buf.ReadString()
			sc.Object = buf.ReadString()
			sc.Arguments = buf.ReadStringList()
		}
		return sc
	default:
		buf.Fail(fmt.Errorf("unknown result kind %d", kind))
		return &VoidResult{}
	}
}
