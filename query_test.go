package cql

import (
	"testing"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/transport"
)

type rawValue struct{ v interface{} }

func (r rawValue) Serialize(opt *frame.Option) (int32, []byte, error) {
	n, b, err := frame.Marshal(opt, r.v)
	return int32(n), b, err
}

func preparedQuery(cols ...frame.ColumnSpec) *Query {
	values := make([]frame.Value, len(cols))
	for i, c := range cols {
		opt := c.Type
		values[i].Type = &opt
	}
	stmt := transport.Statement{
		Values:   values,
		Metadata: &frame.ResultMetadata{},
	}
	return &Query{stmt: stmt}
}

func TestQueryBindOnUnpreparedFails(t *testing.T) {
	t.Parallel()
	q := &Query{}
	q.Bind(0, rawValue{"hi"})
	if len(q.errs) != 1 {
		t.Fatalf("Bind on an unprepared query should record an error, got %v", q.errs)
	}
}

func TestQueryBindSerializesValue(t *testing.T) {
	t.Parallel()
	q := preparedQuery(frame.ColumnSpec{Name: "name", Type: frame.Option{ID: frame.VarcharID}})
	q.Bind(0, rawValue{"alice"})

	if len(q.errs) != 0 {
		t.Fatalf("Bind returned unexpected errors: %v", q.errs)
	}
	if string(q.stmt.Values[0].Bytes) != "alice" {
		t.Fatalf("bound value = %q, want %q", q.stmt.Values[0].Bytes, "alice")
	}
}

func TestQueryBindTypeMismatch(t *testing.T) {
	t.Parallel()
	q := preparedQuery(frame.ColumnSpec{Name: "age", Type: frame.Option{ID: frame.IntID}})
	q.Bind(0, rawValue{"not an int"})

	if len(q.errs) != 1 {
		t.Fatalf("Bind with a mismatched type should record an error, got %v", q.errs)
	}
}

func TestQueryBindInt64(t *testing.T) {
	t.Parallel()
	q := &Query{}
	q.BindInt64(0, -1)

	if len(q.stmt.Values) != 1 {
		t.Fatalf("BindInt64 should grow Values to hold position 0, got %d entries", len(q.stmt.Values))
	}
	want := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if string(q.stmt.Values[0].Bytes) != string(want) {
		t.Fatalf("BindInt64(-1) bytes = %x, want %x", q.stmt.Values[0].Bytes, want)
	}
}

func TestQueryBindNamed(t *testing.T) {
	t.Parallel()
	// BindNamed reads marker names from a prepared statement's bind
	// metadata, which nothing outside the transport package can set
	// directly, so here we only check the unprepared and not-found paths.
	q := &Query{}
	q.BindNamed("id", rawValue{1})
	if len(q.errs) != 1 {
		t.Fatalf("BindNamed on an unprepared query should record an error, got %v", q.errs)
	}

	q2 := preparedQuery(frame.ColumnSpec{Name: "id", Type: frame.Option{ID: frame.IntID}})
	q2.BindNamed("missing", rawValue{1})
	if len(q2.errs) != 1 {
		t.Fatalf("BindNamed with no matching marker should record an error, got %v", q2.errs)
	}
}

func TestQueryCheckBoundsGrowsUnpreparedValues(t *testing.T) {
	t.Parallel()
	q := &Query{}
	if err := q.checkBounds(2); err != nil {
		t.Fatalf("checkBounds on an unprepared query returned %v, want nil", err)
	}
	if len(q.stmt.Values) != 3 {
		t.Fatalf("checkBounds(2) should grow Values to length 3, got %d", len(q.stmt.Values))
	}
}

func TestQueryCheckBoundsPreparedOutOfRange(t *testing.T) {
	t.Parallel()
	q := preparedQuery(frame.ColumnSpec{Name: "id", Type: frame.Option{ID: frame.IntID}})
	if err := q.checkBounds(5); err == nil {
		t.Fatal("checkBounds on a prepared query should reject an out-of-range position")
	}
}

func TestQuerySetIdempotentAndPageSize(t *testing.T) {
	t.Parallel()
	q := &Query{}
	q.SetIdempotent(true)
	if !q.Idempotent() {
		t.Fatal("Idempotent() should reflect SetIdempotent(true)")
	}

	q.SetPageSize(100)
	if q.PageSize() != 100 {
		t.Fatalf("PageSize() = %d, want 100", q.PageSize())
	}

	q.SetPageState([]byte("state"))
	if string(q.PageState()) != "state" {
		t.Fatalf("PageState() = %q, want %q", q.PageState(), "state")
	}
}
