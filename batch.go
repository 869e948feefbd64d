package cql

import (
	"context"
	"fmt"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/request"
	"github.com/go-cql/driver/transport"
)

// Batch groups several statements (plain or prepared) into one BATCH
// request executed atomically at Type's isolation level.
type Batch struct {
	session *Session
	req     request.Batch
}

// NewBatch starts an empty batch of the given type.
func (s *Session) NewBatch(t request.BatchType) *Batch {
	return &Batch{session: s, req: request.Batch{Type: t, Consistency: s.cfg.DefaultConsistency}}
}

// Query appends a plain CQL statement to the batch.
func (b *Batch) Query(content string, values ...frame.Value) *Batch {
	b.req.Statements = append(b.req.Statements, request.BatchStatement{Content: content, Values: values})
	return b
}

// Prepared appends a previously prepared statement to the batch.
func (b *Batch) Prepared(q *Query, values ...frame.Value) *Batch {
	b.req.Statements = append(b.req.Statements, request.BatchStatement{ID: q.stmt.ID, Values: values})
	return b
}

func (b *Batch) SetSerialConsistency(c frame.Consistency) *Batch {
	b.req.SetSerialConsistency(c)
	return b
}

// Exec runs the batch on a node chosen by the session's HostSelectionPolicy,
// retrying through the session's RetryPolicy the same way Query.Exec does.
func (b *Batch) Exec(ctx context.Context) (Result, error) {
	policy := b.session.cfg.HostSelectionPolicy
	info := b.session.cluster.NewQueryInfo()

	var rd transport.RetryDecider
	var lastErr error

	for i := 0; ; i++ {
		n := policy.Node(info, i)
		if n == nil {
			break
		}
		conn, err := n.Conn(info)
		if err != nil {
			lastErr = err
			continue
		}

		for {
			res, err := conn.Batch(ctx, &b.req)
			if err == nil {
				return Result(res), nil
			}

			if rd == nil {
				rd = b.session.cfg.RetryPolicy.NewRetryDecider()
			}
			ri := transport.RetryInfo{Error: err, Idempotent: false, Consistency: b.req.Consistency}
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
		return Result{}, fmt.Errorf("no connection to execute the batch on")
	}
	return Result{}, lastErr
}
