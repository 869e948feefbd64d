package gocql

import cql "github.com/go-cql/driver"

// Iter wraps a cql.Iter, exposing the real gocql package's Scanner-free
// row-at-a-time API.
type Iter struct {
	it  *cql.Iter
	err error
}

func (it *Iter) Columns() []ColumnInfo {
	if it.it == nil {
		return nil
	}
	cols := it.it.Columns()
	out := make([]ColumnInfo, len(cols))
	for i, c := range cols {
		out[i] = ColumnInfo{Keyspace: c.Keyspace, Table: c.Table, Name: c.Name}
	}
	return out
}

// Scan advances to the next row and unmarshals its columns into dest. It
// returns false once the iterator is exhausted or has failed; call Close
// to retrieve the terminal error.
func (it *Iter) Scan(dest ...interface{}) bool {
	if it.it == nil {
		return false
	}
	row, err := it.it.Next()
	if err != nil {
		it.err = err
		return false
	}
	if row == nil {
		return false
	}
	if len(row) != len(dest) {
		it.err = ErrNotFound
		return false
	}
	for i, v := range row {
		if err := v.Unmarshal(dest[i]); err != nil {
			it.err = err
			return false
		}
	}
	return true
}

func (it *Iter) NumRows() int {
	if it.it == nil {
		return 0
	}
	return it.it.NumRows()
}

func (it *Iter) PageState() []byte {
	if it.it == nil {
		return nil
	}
	return it.it.PageState()
}

func (it *Iter) Close() error {
	if it.it == nil {
		return it.err
	}
	if err := it.it.Close(); err != nil {
		return err
	}
	return it.err
}
