package transport

import (
	"errors"

	"github.com/go-cql/driver/frame/response"
)

// RetryDecision is what a RetryDecider tells the caller to do after a
// failed attempt.
type RetryDecision int

const (
	RetrySameNode RetryDecision = iota
	RetryNextNode
	DontRetry
)

// RetryInfo is everything a RetryDecider needs to judge one failed attempt.
type RetryInfo struct {
	Error       error
	Idempotent  bool
	Consistency interface{} // frame.Consistency; interface{} keeps this file free of an import cycle with request params
	RetryNum    int
}

// RetryDecider is a stateful, single-request retry session: Decide is
// called once per failed attempt, Reset starts a fresh retry budget for a
// new logical request.
type RetryDecider interface {
	Decide(RetryInfo) RetryDecision
	Reset()
}

// RetryPolicy manufactures a RetryDecider for each new request.
type RetryPolicy interface {
	NewRetryDecider() RetryDecider
}

// DefaultRetryPolicy retries a read/write timeout on the same node when the
// statement is idempotent, retries unavailable/overloaded/bootstrapping on
// the next node, and retries an error without a protocol error code on the
// next node when the statement is idempotent. Nothing else is retried,
// read/write failures included, and a decider allows at most MaxRetries
// retries.
type DefaultRetryPolicy struct {
	MaxRetries int
}

func NewDefaultRetryPolicy() *DefaultRetryPolicy { return &DefaultRetryPolicy{MaxRetries: 3} }

func (p *DefaultRetryPolicy) NewRetryDecider() RetryDecider {
	return &defaultRetryDecider{policy: p}
}

type defaultRetryDecider struct {
	policy *DefaultRetryPolicy
	tries  int
}

func (d *defaultRetryDecider) Reset() { d.tries = 0 }

func (d *defaultRetryDecider) Decide(ri RetryInfo) RetryDecision {
	if d.tries >= d.policy.MaxRetries {
		return DontRetry
	}
	d.tries++

	var coded response.CodedError
	if !errors.As(ri.Error, &coded) {
		if ri.Idempotent {
			return RetryNextNode
		}
		return DontRetry
	}

	switch coded.Code() {
	case response.ErrReadTimeout, response.ErrWriteTimeout:
		if ri.Idempotent {
			return RetrySameNode
		}
		return DontRetry
	case response.ErrUnavailable, response.ErrOverloaded, response.ErrIsBootstrapping:
		return RetryNextNode
	case response.ErrReadFailure, response.ErrWriteFailure:
		return DontRetry
	default:
		return DontRetry
	}
}

// NoHostAvailableError describes a request for which no candidate host
// produced a usable connection, with the error seen per host address. No
// code path in this module returns it; an exhausted query plan returns the
// last error seen instead.
type NoHostAvailableError struct {
	Errors map[string]error
}

func (e *NoHostAvailableError) Error() string {
	if len(e.Errors) == 0 {
		return "no host available: no hosts configured"
	}
	msg := "no host available, tried:"
	for addr, err := range e.Errors {
		msg += " " + addr + ": " + err.Error() + ";"
	}
	return msg
}
