package transport

import (
	"testing"

	"github.com/go-cql/driver/frame"
)

func TestStatementBindMarkersUnprepared(t *testing.T) {
	t.Parallel()
	var s Statement
	if got := s.BindMarkers(); got != nil {
		t.Fatalf("BindMarkers() on an unprepared statement = %v, want nil", got)
	}
}

func TestStatementBindMarkers(t *testing.T) {
	t.Parallel()
	s := Statement{
		bindMetadata: &frame.PreparedMetadata{
			Columns: []frame.ColumnSpec{
				{Name: "id", Type: frame.Option{ID: frame.UUIDID}},
				{Name: "name", Type: frame.Option{ID: frame.VarcharID}},
			},
		},
	}

	got := s.BindMarkers()
	if len(got) != 2 || got[0].Name != "id" || got[1].Name != "name" {
		t.Fatalf("BindMarkers() = %+v, want columns [id name]", got)
	}
}

func TestStatementCloneCopiesValues(t *testing.T) {
	t.Parallel()
	s := Statement{Values: []frame.Value{{N: 1, Bytes: []byte{0x01}}}}
	c := s.Clone()

	c.Values[0].Bytes[0] = 0xFF
	if s.Values[0].Bytes[0] == 0xFF {
		t.Fatal("Clone should deep-copy Values so concurrent attempts don't share a backing array")
	}
}
