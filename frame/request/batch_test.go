package request

import (
	"testing"

	"github.com/go-cql/driver/frame"

	"github.com/google/go-cmp/cmp"
)

func TestBatchWriteToSinglePlainStatement(t *testing.T) {
	t.Parallel()
	content := "INSERT INTO t (a) VALUES (?)"
	b := Batch{
		Type: BatchLogged,
		Statements: []BatchStatement{
			{Content: content, Values: []frame.Value{{N: 1, Bytes: []byte{0x2A}}}},
		},
		Consistency: frame.QUORUM,
	}

	var out frame.Buffer
	b.WriteTo(&out)

	var want frame.Buffer
	want.WriteByte(byte(BatchLogged))
	want.WriteShort(1)
	want.WriteByte(0) // kind: plain statement
	want.WriteLongString(content)
	want.WriteShort(1) // 1 value
	want.WriteInt(1)
	want.WriteByte(0x2A)
	want.WriteConsistency(frame.QUORUM)
	want.WriteByte(0) // no optional flags set

	if diff := cmp.Diff(out.Bytes(), want.Bytes()); diff != "" {
		t.Fatal(diff)
	}
}

func TestBatchWriteToWithSerialConsistency(t *testing.T) {
	t.Parallel()
	b := Batch{Type: BatchUnlogged, Consistency: frame.QUORUM}
	b.SetSerialConsistency(frame.SERIAL)

	var out frame.Buffer
	b.WriteTo(&out)

	var want frame.Buffer
	want.WriteByte(byte(BatchUnlogged))
	want.WriteShort(0)
	want.WriteConsistency(frame.QUORUM)
	want.WriteByte(byte(FlagWithSerialConsistency))
	want.WriteConsistency(frame.SERIAL)

	if diff := cmp.Diff(out.Bytes(), want.Bytes()); diff != "" {
		t.Fatal(diff)
	}
}

func TestBatchWriteToPreparedStatement(t *testing.T) {
	t.Parallel()
	id := []byte{0xAB, 0xCD}
	b := Batch{
		Type: BatchLogged,
		Statements: []BatchStatement{
			{ID: id, Values: []frame.Value{{N: -1}}},
		},
		Consistency: frame.ONE,
	}

	var out frame.Buffer
	b.WriteTo(&out)

	var want frame.Buffer
	want.WriteByte(byte(BatchLogged))
	want.WriteShort(1)
	want.WriteByte(1) // kind: prepared statement
	want.WriteShortBytes(id)
	want.WriteShort(1)
	want.WriteInt(-1) // null value, no payload
	want.WriteConsistency(frame.ONE)
	want.WriteByte(0)

	if diff := cmp.Diff(out.Bytes(), want.Bytes()); diff != "" {
		t.Fatal(diff)
	}
}

func TestBatchOpCode(t *testing.T) {
	t.Parallel()
	if (&Batch{}).OpCode() != frame.OpBatch {
		t.Fatalf("OpCode() = %v, want OpBatch", (&Batch{}).OpCode())
	}
}
