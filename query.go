package cql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/response"
	"github.com/go-cql/driver/transport"
)

// Query is a bound or unbound CQL statement ready for execution. Session.Query
// returns an unprepared Query; Session.Prepare returns one bound to a
// server-side prepared statement id.
type Query struct {
	session   *Session
	stmt      transport.Statement
	buf       frame.Buffer
	exec      func(context.Context, *transport.Conn, transport.Statement, []byte) (transport.QueryResult, error)
	asyncExec func(*transport.Conn, transport.Statement, []byte, transport.ResponseHandler)
	res       []transport.ResponseHandler

	pageState []byte
	errs      []error
}

// Result is the decoded outcome of one Exec/Fetch.
type Result transport.QueryResult

// Exec runs the query to completion, retrying per the session's RetryPolicy
// and HostSelectionPolicy until a host answers or every candidate is
// exhausted. Idempotent queries additionally race extra attempts on other
// hosts per the session's SpeculativeExecutionPolicy; the first attempt to
// succeed wins and the rest are abandoned.
func (q *Query) Exec(ctx context.Context) (Result, error) {
	if len(q.errs) != 0 {
		return Result{}, fmt.Errorf("query can't be executed: %v", q.errs)
	}

	info, err := q.info()
	if err != nil {
		return Result{}, err
	}

	if !q.stmt.Idempotent {
		return q.attempt(ctx, info, 0)
	}
	return q.specExec(ctx, info)
}

// attempt runs the same-host-retry / next-host-fallback loop starting its
// host search at offset, per the session's RetryPolicy.
func (q *Query) attempt(ctx context.Context, info transport.QueryInfo, offset int) (Result, error) {
	policy := q.session.cfg.HostSelectionPolicy
	var rd transport.RetryDecider
	var lastErr error

	for i := offset; ; i++ {
		n := policy.Node(info, i)
		if n == nil {
			break
		}

		conn, err := n.Conn(info)
		if err != nil {
			lastErr = err
			continue
		}

		reprepared := false
		for {
			res, err := q.exec(ctx, conn, q.stmt, nil)
			if err == nil {
				return Result(res), nil
			}

			// A host that evicted our prepared id reports UNPREPARED instead of
			// executing; re-prepare on that same host and retry once before this
			// attempt's normal retry budget is ever consulted, per protocol.
			var unprepared *response.Unprepared
			if !reprepared && q.stmt.ID != nil && errors.As(err, &unprepared) {
				if perr := q.session.cluster.PreparedCache().Reprepare(ctx, conn, n.Addr(), "", q.stmt); perr == nil {
					reprepared = true
					continue
				}
				lastErr = err
				break
			}

			if rd == nil {
				rd = q.session.cfg.RetryPolicy.NewRetryDecider()
			}
			ri := transport.RetryInfo{Error: err, Idempotent: q.stmt.Idempotent, Consistency: q.stmt.Consistency}
			switch rd.Decide(ri) {
			case transport.RetrySameNode:
				continue
			case transport.RetryNextNode:
				lastErr = err
			case transport.DontRetry:
				return Result{}, err
			}
			break
		}
	}

	if lastErr == nil {
		return Result{}, fmt.Errorf("no connection to execute the query on")
	}
	return Result{}, lastErr
}

type attemptResult struct {
	res Result
	err error
}

// specExec races q.attempt across successive host offsets per the
// SpeculativeExecutionPolicy's plan; the first successful attempt's result
// is returned and the context is cancelled to abandon the rest.
func (q *Query) specExec(ctx context.Context, info transport.QueryInfo) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	plan := q.session.cfg.SpeculativeExecutionPolicy.NewPlan()
	metrics := q.session.cluster.Metrics()
	resultCh := make(chan attemptResult)

	launched := 0
	launch := func(offset int) {
		if offset > 0 {
			metrics.ObserveSpeculative("")
		}
		launched++
		go func() {
			res, err := q.attempt(ctx, info, offset)
			select {
			case resultCh <- attemptResult{res, err}:
			case <-ctx.Done():
			}
		}()
	}

	launch(0)
	pending := 1

	delay, more := plan.NextExecution(0)
	var timer *time.Timer
	var timerCh <-chan time.Time
	if more {
		timer = time.NewTimer(delay)
		timerCh = timer.C
		defer timer.Stop()
	}

	var lastErr error
	for pending > 0 {
		select {
		case r := <-resultCh:
			pending--
			if r.err == nil {
				return r.res, nil
			}
			lastErr = r.err
		case <-timerCh:
			launch(launched)
			pending++
			d, more := plan.NextExecution(launched - 1)
			if more {
				timer.Reset(d)
			} else {
				timerCh = nil
			}
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no connection to execute the query on")
	}
	return Result{}, lastErr
}

func (q *Query) pickConn(qi transport.QueryInfo) (*transport.Conn, error) {
	n := q.session.cfg.HostSelectionPolicy.Node(qi, 0)
	if n == nil {
		return nil, errNoConnection
	}
	conn, err := n.Conn(qi)
	if err != nil {
		return nil, errNoConnection
	}
	return conn, nil
}

// AsyncExec submits the query and returns immediately; call Fetch to
// collect the result once it lands.
func (q *Query) AsyncExec(ctx context.Context) {
	stmt := q.stmt.Clone()
	info, err := q.info()
	if err != nil {
		q.res = append(q.res, transport.MakeResponseHandlerWithError(err))
		return
	}

	conn, err := q.pickConn(info)
	if err != nil {
		q.res = append(q.res, transport.MakeResponseHandlerWithError(err))
		return
	}

	h := transport.MakeResponseHandler()
	q.res = append(q.res, h)
	q.asyncExec(conn, stmt, q.pageState, h)
}

var ErrNoQueryResults = fmt.Errorf("no query results to be fetched")

// Fetch returns results in the same order they were queried via AsyncExec.
func (q *Query) Fetch() (Result, error) {
	if len(q.res) == 0 {
		return Result{}, ErrNoQueryResults
	}

	h := q.res[0]
	q.res = q.res[1:]

	resp := <-h
	if resp.Err != nil {
		return Result{}, resp.Err
	}
	return Result{}, nil
}

// token computes the Murmur3 routing token for the statement's partition
// key whenever the statement has partition key columns; it does not check
// that their values have been bound.
func (q *Query) token() (transport.Token, bool) {
	if q.stmt.PkCnt == 0 {
		return 0, false
	}

	q.buf.Reset()
	if q.stmt.PkCnt == 1 {
		return transport.MurmurToken(q.stmt.Values[q.stmt.PkIndexes[0]].Bytes), true
	}
	for _, idx := range q.stmt.PkIndexes {
		v := q.stmt.Values[idx]
		q.buf.WriteShort(frame.Short(len(v.Bytes)))
		q.buf.Write(v.Bytes)
		q.buf.WriteByte(0)
	}

	return transport.MurmurToken(q.buf.Bytes()), true
}

func (q *Query) info() (transport.QueryInfo, error) {
	token, tokenAware := q.token()
	if tokenAware {
		return q.session.cluster.NewTokenAwareQueryInfo(token, ""), nil
	}
	return q.session.cluster.NewQueryInfo(), nil
}

func (q *Query) checkBounds(pos int) error {
	if q.stmt.Metadata != nil {
		if pos < 0 || pos >= len(q.stmt.Values) {
			return fmt.Errorf("no bind marker with position %d", pos)
		}
		return nil
	}

	for i := len(q.stmt.Values); i <= pos; i++ {
		q.stmt.Values = append(q.stmt.Values, frame.Value{})
	}
	return nil
}

// Serializable is implemented by values the caller binds directly with
// Bind, given the wire type of the bind marker they're filling.
type Serializable interface {
	Serialize(*frame.Option) (n int32, bytes []byte, err error)
}

// Bind sets the bind marker at pos to v's serialized form. Only valid on a
// prepared Query, since an unprepared one has no marker types to serialize
// against.
func (q *Query) Bind(pos int, v Serializable) *Query {
	if q.stmt.Metadata == nil {
		q.errs = append(q.errs, fmt.Errorf("binding to an unprepared query is not supported"))
		return q
	}
	if err := q.checkBounds(pos); err != nil {
		q.errs = append(q.errs, err)
		return q
	}

	p := &q.stmt.Values[pos]
	var err error
	p.N, p.Bytes, err = v.Serialize(p.Type)
	if err != nil {
		q.errs = append(q.errs, err)
	}
	return q
}

// BindInt64 binds a raw bigint value, bypassing Serializable for the
// common case of routing-key columns that are always bigint.
func (q *Query) BindInt64(pos int, v int64) *Query {
	if err := q.checkBounds(pos); err != nil {
		q.errs = append(q.errs, err)
		return q
	}

	p := &q.stmt.Values[pos]
	p.N = 8
	p.Bytes = make([]byte, 8)
	p.Bytes[0] = byte(v >> 56)
	p.Bytes[1] = byte(v >> 48)
	p.Bytes[2] = byte(v >> 40)
	p.Bytes[3] = byte(v >> 32)
	p.Bytes[4] = byte(v >> 24)
	p.Bytes[5] = byte(v >> 16)
	p.Bytes[6] = byte(v >> 8)
	p.Bytes[7] = byte(v)
	return q
}

func (q *Query) SetSerialConsistency(v frame.Consistency) { q.stmt.SerialConsistency = v }
func (q *Query) SerialConsistency() frame.Consistency      { return q.stmt.SerialConsistency }

func (q *Query) SetPageState(v []byte) { q.pageState = v }
func (q *Query) PageState() []byte     { return q.pageState }

func (q *Query) SetPageSize(v int32) { q.stmt.PageSize = v }
func (q *Query) PageSize() int32     { return q.stmt.PageSize }

func (q *Query) SetIdempotent(v bool) { q.stmt.Idempotent = v }
func (q *Query) Idempotent() bool     { return q.stmt.Idempotent }

// BindNamed binds v to the prepared bind marker whose column name matches
// name, case-insensitively. Only valid on a prepared Query.
func (q *Query) BindNamed(name string, v Serializable) *Query {
	if q.stmt.Metadata == nil {
		q.errs = append(q.errs, fmt.Errorf("binding to an unprepared query is not supported"))
		return q
	}
	for i, c := range q.stmt.BindMarkers() {
		if strings.EqualFold(c.Name, name) {
			return q.Bind(i, v)
		}
	}
	q.errs = append(q.errs, fmt.Errorf("no bind marker named %q", name))
	return q
}

func (q *Query) NoSkipMetadata() *Query {
	q.stmt.NoSkipMetadata = true
	return q
}
