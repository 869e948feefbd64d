package cql

import (
	"testing"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/request"
)

func TestBatchQueryAppendsStatement(t *testing.T) {
	t.Parallel()
	s := &Session{cfg: SessionConfig{}}
	b := s.NewBatch(request.BatchLogged)
	b.Query("INSERT INTO t (a) VALUES (?)", frame.Value{N: 1, Bytes: []byte{1}})

	if len(b.req.Statements) != 1 {
		t.Fatalf("len(Statements) = %d, want 1", len(b.req.Statements))
	}
	if b.req.Statements[0].Content != "INSERT INTO t (a) VALUES (?)" {
		t.Fatalf("Statements[0].Content = %q, want the inserted query", b.req.Statements[0].Content)
	}
	if b.req.Statements[0].ID != nil {
		t.Fatal("a plain query's BatchStatement should carry no prepared id")
	}
}

func TestBatchPreparedAppendsStatement(t *testing.T) {
	t.Parallel()
	s := &Session{cfg: SessionConfig{}}
	b := s.NewBatch(request.BatchLogged)
	prepared := &Query{}
	prepared.stmt.ID = []byte{0xAB, 0xCD}

	b.Prepared(prepared, frame.Value{N: 1, Bytes: []byte{7}})

	if len(b.req.Statements) != 1 {
		t.Fatalf("len(Statements) = %d, want 1", len(b.req.Statements))
	}
	if string(b.req.Statements[0].ID) != "\xab\xcd" {
		t.Fatalf("Statements[0].ID = %x, want ab cd", b.req.Statements[0].ID)
	}
}

func TestBatchSetSerialConsistency(t *testing.T) {
	t.Parallel()
	s := &Session{cfg: SessionConfig{}}
	b := s.NewBatch(request.BatchLogged)
	b.SetSerialConsistency(frame.SERIAL)

	if b.req.SerialConsistency != frame.SERIAL {
		t.Fatalf("SerialConsistency = %v, want SERIAL", b.req.SerialConsistency)
	}
}
