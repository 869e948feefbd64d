package transport

import (
	"testing"
	"time"
)

func TestNoSpeculativeExecution(t *testing.T) {
	t.Parallel()
	plan := NoSpeculativeExecution{}.NewPlan()
	if _, more := plan.NextExecution(0); more {
		t.Fatal("NoSpeculativeExecution plan should never schedule another attempt")
	}
}

func TestConstantSpeculativeExecutionPolicy(t *testing.T) {
	t.Parallel()
	policy := ConstantSpeculativeExecutionPolicy{Delay: 10 * time.Millisecond, MaxExecutions: 2}
	plan := policy.NewPlan()

	d, more := plan.NextExecution(0)
	if !more || d != 10*time.Millisecond {
		t.Fatalf("NextExecution(0) = (%v, %v), want (10ms, true)", d, more)
	}
	d, more = plan.NextExecution(1)
	if !more || d != 10*time.Millisecond {
		t.Fatalf("NextExecution(1) = (%v, %v), want (10ms, true)", d, more)
	}
	if _, more := plan.NextExecution(2); more {
		t.Fatal("NextExecution(2) should stop once MaxExecutions is reached")
	}
}

func TestConstantSpeculativeExecutionPolicyIndependentPlans(t *testing.T) {
	t.Parallel()
	policy := ConstantSpeculativeExecutionPolicy{Delay: time.Millisecond, MaxExecutions: 1}
	planA := policy.NewPlan()
	planB := policy.NewPlan()

	planA.NextExecution(0)
	if _, more := planB.NextExecution(0); !more {
		t.Fatal("a fresh plan from the same policy should start its own budget")
	}
}
