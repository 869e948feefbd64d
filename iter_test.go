package cql

import (
	"testing"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/transport"
)

// newTestIter wires up an Iter the way Query.Iter does, but lets the test
// drive requestCh/nextCh/errCh directly instead of spinning up a real
// iterWorker against a live connection.
func newTestIter(meta *frame.ResultMetadata) *Iter {
	return &Iter{
		requestCh: make(chan struct{}, 1),
		nextCh:    make(chan transport.QueryResult),
		errCh:     make(chan error, 1),
		meta:      meta,
	}
}

func TestIterNextDrainsOnePage(t *testing.T) {
	t.Parallel()
	it := newTestIter(nil)

	rows := []frame.Row{{frame.Value{N: 1, Bytes: []byte{1}}}, {frame.Value{N: 1, Bytes: []byte{2}}}}
	go func() {
		it.nextCh <- transport.QueryResult{Rows: rows}
	}()

	row1, err := it.Next()
	if err != nil {
		t.Fatalf("Next() #1 returned error: %v", err)
	}
	if len(row1) != 1 || row1[0].Bytes[0] != 1 {
		t.Fatalf("Next() #1 = %v, want first row", row1)
	}

	row2, err := it.Next()
	if err != nil {
		t.Fatalf("Next() #2 returned error: %v", err)
	}
	if len(row2) != 1 || row2[0].Bytes[0] != 2 {
		t.Fatalf("Next() #2 = %v, want second row", row2)
	}

	go func() { it.errCh <- ErrNoMoreRows }()
	row3, err := it.Next()
	if row3 != nil || err != nil {
		t.Fatalf("Next() past the last row = (%v, %v), want (nil, nil)", row3, err)
	}
	if !it.closed {
		t.Fatal("Iter should be closed once ErrNoMoreRows is seen")
	}
}

func TestIterNextPropagatesError(t *testing.T) {
	t.Parallel()
	it := newTestIter(nil)

	boom := errNoConnection
	go func() { it.errCh <- boom }()

	row, err := it.Next()
	if row != nil {
		t.Fatalf("Next() on error = %v, want nil row", row)
	}
	if err != boom {
		t.Fatalf("Next() returned error %v, want %v", err, boom)
	}
}

func TestIterSkipsEmptyPages(t *testing.T) {
	t.Parallel()
	it := newTestIter(nil)

	go func() {
		it.nextCh <- transport.QueryResult{Rows: nil}
		<-it.requestCh
		it.nextCh <- transport.QueryResult{Rows: []frame.Row{{frame.Value{N: 1, Bytes: []byte{9}}}}}
	}()

	row, err := it.Next()
	if err != nil {
		t.Fatalf("Next() returned error: %v", err)
	}
	if len(row) != 1 || row[0].Bytes[0] != 9 {
		t.Fatalf("Next() should skip the empty page and return the next one, got %v", row)
	}
}

func TestIterCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	it := newTestIter(nil)

	if err := it.Close(); err != nil {
		t.Fatalf("Close() returned %v, want nil", err)
	}
	if err := it.Close(); err != nil {
		t.Fatalf("second Close() returned %v, want nil", err)
	}
}

func TestIterColumns(t *testing.T) {
	t.Parallel()
	it := newTestIter(nil)
	if cols := it.Columns(); cols != nil {
		t.Fatalf("Columns() with no metadata = %v, want nil", cols)
	}

	meta := &frame.ResultMetadata{Columns: []frame.ColumnSpec{{Name: "a"}}}
	it2 := newTestIter(meta)
	if cols := it2.Columns(); len(cols) != 1 || cols[0].Name != "a" {
		t.Fatalf("Columns() = %v, want [a]", cols)
	}
}
