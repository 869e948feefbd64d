package gocql

import (
	"context"
	"fmt"

	cql "github.com/go-cql/driver"
	"github.com/go-cql/driver/frame"
)

type Query struct {
	ctx   context.Context
	query *cql.Query
	err   error
}

// anyValue adapts an arbitrary Go value to cql.Query.Bind's Serializable
// interface via the driver's own type-directed marshaller.
type anyValue struct{ v interface{} }

func (a anyValue) Serialize(opt *frame.Option) (int32, []byte, error) {
	v := a.v
	if _, ok := v.(unsetColumn); ok {
		v = frame.Unset
	}
	n, b, err := frame.Marshal(opt, v)
	return int32(n), b, err
}

func (q *Query) Bind(values ...interface{}) *Query {
	if q.err != nil {
		return q
	}
	for i, v := range values {
		q.query.Bind(i, anyValue{v})
	}
	return q
}

func (q *Query) Exec() error {
	if q.err != nil {
		return q.err
	}
	_, err := q.query.Exec(q.ctx)
	return err
}

func (q *Query) Scan(values ...interface{}) error {
	if q.err != nil {
		return q.err
	}
	res, err := q.query.Exec(q.ctx)
	if err != nil {
		return err
	}
	if len(res.Rows) == 0 {
		return ErrNotFound
	}
	if len(res.Rows[0]) != len(values) {
		return fmt.Errorf("column count mismatch expected %d, got %d", len(values), len(res.Rows[0]))
	}
	for i, v := range res.Rows[0] {
		if err := v.Unmarshal(values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (q *Query) Iter() *Iter {
	if q.err != nil {
		return &Iter{err: q.err}
	}
	return &Iter{it: q.query.Iter(q.ctx)}
}

// Release is a no-op: the underlying driver does not pool *cql.Query values.
func (q *Query) Release() {}

func (q *Query) WithContext(ctx context.Context) *Query {
	q.ctx = ctx
	return q
}

func (q *Query) PageSize(n int) *Query {
	q.query.SetPageSize(int32(n))
	return q
}

func (q *Query) PageState(state []byte) *Query {
	q.query.SetPageState(state)
	return q
}

func (q *Query) Idempotent(value bool) *Query {
	q.query.SetIdempotent(value)
	return q
}

func (q *Query) SerialConsistency(cons SerialConsistency) *Query {
	if c, ok := cons.(Consistency); ok {
		q.query.SetSerialConsistency(frameConsistency(c))
	}
	return q
}

func (q *Query) NoSkipMetadata() *Query {
	q.query.NoSkipMetadata()
	return q
}

// Consistency, CustomPayload, Trace, Observer, DefaultTimestamp,
// WithTimestamp, RoutingKey, Prefetch, RetryPolicy and
// SetSpeculativeExecutionPolicy are accepted on the real gocql Query but have
// no equivalent on the underlying driver's Query; they are intentionally
// left unimplemented here rather than faked.
