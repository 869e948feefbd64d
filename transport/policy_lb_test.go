package transport

import "testing"

func newTestNode(addr, dc string) *Node {
	return &Node{addr: addr, datacenter: dc}
}

func TestRoundRobinPolicyCycles(t *testing.T) {
	t.Parallel()
	p := NewRoundRobinPolicy()
	a, b, c := newTestNode("a", ""), newTestNode("b", ""), newTestNode("c", "")
	p.OnHostUp(a)
	p.OnHostUp(b)
	p.OnHostUp(c)

	if n := p.Node(QueryInfo{}, 3); n != nil {
		t.Fatalf("Node(_, 3) = %v, want nil past the known host count", n)
	}

	seen := make(map[*Node]bool)
	for i := 0; i < 3; i++ {
		n := p.Node(QueryInfo{}, i)
		if n == nil {
			t.Fatalf("Node(_, %d) = nil, want a host", i)
		}
		seen[n] = true
	}
	if len(seen) != 3 {
		t.Fatalf("round robin positions 0..2 should cover all 3 hosts, got %d distinct", len(seen))
	}
}

func TestRoundRobinPolicyOnHostUpIsIdempotent(t *testing.T) {
	t.Parallel()
	p := NewRoundRobinPolicy()
	a := newTestNode("a", "")
	p.OnHostUp(a)
	p.OnHostUp(a)
	if len(p.hosts) != 1 {
		t.Fatalf("len(hosts) = %d, want 1 after adding the same node twice", len(p.hosts))
	}
}

func TestRoundRobinPolicyOnHostRemove(t *testing.T) {
	t.Parallel()
	p := NewRoundRobinPolicy()
	a, b := newTestNode("a", ""), newTestNode("b", "")
	p.OnHostUp(a)
	p.OnHostUp(b)
	p.OnHostRemove(a)
	if len(p.hosts) != 1 || p.hosts[0] != b {
		t.Fatalf("hosts after removing a = %v, want [b]", p.hosts)
	}
}

func TestDCAwareRoundRobinPrefersLocal(t *testing.T) {
	t.Parallel()
	p := NewDCAwareRoundRobin("dc1")
	local := newTestNode("l1", "dc1")
	remote := newTestNode("r1", "dc2")
	p.OnHostUp(local)
	p.OnHostUp(remote)

	if got := p.Node(QueryInfo{}, 0); got != local {
		t.Fatalf("Node(_, 0) = %v, want the local-DC host", got)
	}
	if got := p.Node(QueryInfo{}, 1); got != remote {
		t.Fatalf("Node(_, 1) = %v, want the remote host once local is exhausted", got)
	}
	if got := p.Node(QueryInfo{}, 2); got != nil {
		t.Fatalf("Node(_, 2) = %v, want nil past both hosts", got)
	}
}

func TestAllowListPolicyFiltersHosts(t *testing.T) {
	t.Parallel()
	child := NewRoundRobinPolicy()
	p := NewAllowListPolicy(child, []string{"a"})
	a, b := newTestNode("a", ""), newTestNode("b", "")
	p.OnHostUp(a)
	p.OnHostUp(b)

	if len(child.hosts) != 1 || child.hosts[0] != a {
		t.Fatalf("child.hosts = %v, want only the allow-listed host a", child.hosts)
	}
}

func TestTokenAwarePolicyFallsBackWithoutToken(t *testing.T) {
	t.Parallel()
	child := NewRoundRobinPolicy()
	a := newTestNode("a", "")
	child.OnHostUp(a)

	p := NewTokenAwarePolicy(child, func() *Metadata { return &Metadata{} }, func() string { return "" })
	if got := p.Node(QueryInfo{}, 0); got != a {
		t.Fatalf("Node(_, 0) with no token = %v, want the child policy's choice", got)
	}
}
