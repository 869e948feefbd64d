package transport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/response"
)

func writeTimeoutError() error {
	var buf frame.Buffer
	buf.WriteInt(frame.Int(response.ErrWriteTimeout))
	buf.WriteString("write timeout")
	buf.WriteConsistency(frame.QUORUM)
	buf.WriteInt(1)
	buf.WriteInt(2)
	buf.WriteString("SIMPLE")
	return response.ParseError(&buf).(error)
}

func unavailableError() error {
	var buf frame.Buffer
	buf.WriteInt(frame.Int(response.ErrUnavailable))
	buf.WriteString("unavailable")
	buf.WriteConsistency(frame.QUORUM)
	buf.WriteInt(3)
	buf.WriteInt(1)
	return response.ParseError(&buf).(error)
}

func TestDefaultRetryPolicyIdempotentWriteTimeout(t *testing.T) {
	t.Parallel()
	d := NewDefaultRetryPolicy().NewRetryDecider()
	got := d.Decide(RetryInfo{Error: writeTimeoutError(), Idempotent: true})
	if got != RetrySameNode {
		t.Fatalf("Decide(write timeout, idempotent) = %v, want RetrySameNode", got)
	}
}

func TestDefaultRetryPolicyNonIdempotentWriteTimeout(t *testing.T) {
	t.Parallel()
	d := NewDefaultRetryPolicy().NewRetryDecider()
	got := d.Decide(RetryInfo{Error: writeTimeoutError(), Idempotent: false})
	if got != DontRetry {
		t.Fatalf("Decide(write timeout, non-idempotent) = %v, want DontRetry", got)
	}
}

func TestDefaultRetryPolicyUnavailableAlwaysNextNode(t *testing.T) {
	t.Parallel()
	for _, idempotent := range []bool{true, false} {
		d := NewDefaultRetryPolicy().NewRetryDecider()
		got := d.Decide(RetryInfo{Error: unavailableError(), Idempotent: idempotent})
		if got != RetryNextNode {
			t.Fatalf("Decide(unavailable, idempotent=%v) = %v, want RetryNextNode", idempotent, got)
		}
	}
}

func TestDefaultRetryPolicyUncodedError(t *testing.T) {
	t.Parallel()
	d := NewDefaultRetryPolicy().NewRetryDecider()
	plain := fmt.Errorf("connection reset")

	if got := d.Decide(RetryInfo{Error: plain, Idempotent: true}); got != RetryNextNode {
		t.Fatalf("Decide(plain error, idempotent) = %v, want RetryNextNode", got)
	}
	if got := d.Decide(RetryInfo{Error: plain, Idempotent: false}); got != DontRetry {
		t.Fatalf("Decide(plain error, non-idempotent) = %v, want DontRetry", got)
	}
}

func TestDefaultRetryPolicyStopsAtMaxRetries(t *testing.T) {
	t.Parallel()
	d := (&DefaultRetryPolicy{MaxRetries: 2}).NewRetryDecider()
	err := writeTimeoutError()

	if got := d.Decide(RetryInfo{Error: err, Idempotent: true}); got != RetrySameNode {
		t.Fatalf("first attempt = %v, want RetrySameNode", got)
	}
	if got := d.Decide(RetryInfo{Error: err, Idempotent: true}); got != RetrySameNode {
		t.Fatalf("second attempt = %v, want RetrySameNode", got)
	}
	if got := d.Decide(RetryInfo{Error: err, Idempotent: true}); got != DontRetry {
		t.Fatalf("third attempt = %v, want DontRetry once MaxRetries is exhausted", got)
	}
}

func TestDefaultRetryPolicyResetClearsBudget(t *testing.T) {
	t.Parallel()
	d := (&DefaultRetryPolicy{MaxRetries: 1}).NewRetryDecider()
	err := writeTimeoutError()

	d.Decide(RetryInfo{Error: err, Idempotent: true})
	if got := d.Decide(RetryInfo{Error: err, Idempotent: true}); got != DontRetry {
		t.Fatalf("Decide after exhausting budget = %v, want DontRetry", got)
	}

	d.Reset()
	if got := d.Decide(RetryInfo{Error: err, Idempotent: true}); got != RetrySameNode {
		t.Fatalf("Decide after Reset = %v, want RetrySameNode", got)
	}
}

func TestNoHostAvailableError(t *testing.T) {
	t.Parallel()
	empty := &NoHostAvailableError{}
	if empty.Error() == "" {
		t.Fatal("Error() on an empty NoHostAvailableError returned an empty string")
	}

	withErrors := &NoHostAvailableError{Errors: map[string]error{"10.0.0.1": errors.New("refused")}}
	if withErrors.Error() == empty.Error() {
		t.Fatal("Error() did not include the per-host errors")
	}
}
