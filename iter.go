package cql

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/response"
	"github.com/go-cql/driver/transport"
)

// Iter streams pages of a query's result set. The next page is requested
// as soon as a page is handed to the caller, so one page is fetched ahead
// while the caller drains the current one.
func (q *Query) Iter(ctx context.Context) *Iter {
	stmt := q.stmt.Clone()

	var pageState []byte
	if q.pageState != nil {
		pageState = make([]byte, len(q.pageState))
		copy(pageState, q.pageState)
	}

	it := &Iter{
		requestCh: make(chan struct{}, 1),
		nextCh:    make(chan transport.QueryResult),
		errCh:     make(chan error, 1),
		meta:      stmt.Metadata,
	}

	info, err := q.info()
	if err != nil {
		it.errCh <- err
		return it
	}

	worker := iterWorker{
		stmt:          stmt,
		rd:            q.session.cfg.RetryPolicy.NewRetryDecider(),
		queryInfo:     info,
		pickNode:      q.session.cfg.HostSelectionPolicy.Node,
		queryExec:     q.exec,
		preparedCache: q.session.cluster.PreparedCache(),

		requestCh: it.requestCh,
		nextCh:    it.nextCh,
		errCh:     it.errCh,

		pagingState: pageState,
	}

	it.requestCh <- struct{}{}
	go worker.loop(ctx)
	return it
}

type Iter struct {
	result transport.QueryResult
	pos    int
	rowCnt int

	requestCh chan struct{}
	nextCh    chan transport.QueryResult
	errCh     chan error
	closed    bool

	meta *frame.ResultMetadata
	err  error
}

var (
	ErrClosedIter = fmt.Errorf("iter is closed")
	ErrNoMoreRows = fmt.Errorf("no more rows left")
)

// Next returns the next row, fetching a new page from the worker goroutine
// transparently when the current page is exhausted.
func (it *Iter) Next() (frame.Row, error) {
	if it.closed {
		return nil, nil
	}

	if it.pos >= it.rowCnt {
		select {
		case r := <-it.nextCh:
			it.result = r
		case err := <-it.errCh:
			if !errors.Is(err, ErrNoMoreRows) {
				it.err = err
			}
			return nil, it.Close()
		}

		it.pos = 0
		it.rowCnt = len(it.result.Rows)
		it.requestCh <- struct{}{}

		if it.rowCnt == 0 {
			return it.Next()
		}
	}

	row := it.result.Rows[it.pos]
	it.pos++
	return row, nil
}

func (it *Iter) Close() error {
	if it.closed {
		return it.err
	}
	it.closed = true
	close(it.requestCh)
	return it.err
}

func (it *Iter) Columns() []frame.ColumnSpec {
	if it.meta == nil {
		return nil
	}
	return it.meta.Columns
}

func (it *Iter) NumRows() int     { return it.rowCnt }
func (it *Iter) PageState() []byte { return it.result.PagingState }

type iterWorker struct {
	stmt        transport.Statement
	pagingState []byte
	queryExec   func(context.Context, *transport.Conn, transport.Statement, []byte) (transport.QueryResult, error)

	queryInfo transport.QueryInfo
	pickNode  func(transport.QueryInfo, int) *transport.Node
	nodeIdx   int
	conn      *transport.Conn
	connErr   error

	rd            transport.RetryDecider
	preparedCache *transport.PreparedCache

	requestCh chan struct{}
	nextCh    chan transport.QueryResult
	errCh     chan error
}

func (w *iterWorker) loop(ctx context.Context) {
	n := w.pickNode(w.queryInfo, 0)
	if n == nil {
		w.errCh <- fmt.Errorf("can't pick a node to execute request")
		return
	}
	w.conn, w.connErr = n.Conn(w.queryInfo)

	for {
		_, ok := <-w.requestCh
		if !ok {
			return
		}

		res, err := w.exec(ctx)
		if err != nil {
			w.errCh <- err
			return
		}

		w.pagingState = res.PagingState
		w.nextCh <- res
		if !res.HasMorePages {
			w.errCh <- ErrNoMoreRows
			return
		}
	}
}

// exec fetches one page. The retry decider is shared across every page of
// the Iter's lifetime: paging must not hand a query a fresh retry budget
// per page, only per logical request.
func (w *iterWorker) exec(ctx context.Context) (transport.QueryResult, error) {
	var lastErr error
	reprepared := false

	for {
		for {
			if w.connErr != nil {
				lastErr = w.connErr
				break
			}
			res, err := w.queryExec(ctx, w.conn, w.stmt, w.pagingState)
			if err == nil {
				return res, nil
			}

			var unprepared *response.Unprepared
			if !reprepared && w.stmt.ID != nil && w.preparedCache != nil && errors.As(err, &unprepared) {
				if perr := w.preparedCache.Reprepare(ctx, w.conn, w.conn.Addr(), "", w.stmt); perr == nil {
					reprepared = true
					continue
				}
				lastErr = err
				break
			}

			ri := transport.RetryInfo{Error: err, Idempotent: w.stmt.Idempotent, Consistency: w.stmt.Consistency}
			switch w.rd.Decide(ri) {
			case transport.RetrySameNode:
				continue
			case transport.RetryNextNode:
				lastErr = err
			case transport.DontRetry:
				return transport.QueryResult{}, err
			}
			break
		}

		w.nodeIdx++
		n := w.pickNode(w.queryInfo, w.nodeIdx)
		if n == nil {
			if lastErr == nil {
				return transport.QueryResult{}, fmt.Errorf("no connection to execute the query on")
			}
			return transport.QueryResult{}, lastErr
		}
		w.conn, w.connErr = n.Conn(w.queryInfo)
	}
}
