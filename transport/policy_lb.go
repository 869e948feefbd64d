package transport

import (
	"sync"
)

// HostSelectionPolicy orders candidate hosts for one request. Node(qi, pos)
// returns the host a caller should try at attempt index pos (0-based); a
// nil return means the policy has exhausted every candidate.
type HostSelectionPolicy interface {
	Node(qi QueryInfo, pos int) *Node
	GenerateOffset() int

	OnHostUp(*Node)
	OnHostDown(*Node)
	OnHostAdd(*Node)
	OnHostRemove(*Node)
}

// RoundRobinPolicy cycles through every known host regardless of token or
// datacenter.
type RoundRobinPolicy struct {
	mu    sync.Mutex
	hosts []*Node
	next  int
}

func NewRoundRobinPolicy() *RoundRobinPolicy { return &RoundRobinPolicy{} }

func (p *RoundRobinPolicy) GenerateOffset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.next
	p.next++
	return o
}

func (p *RoundRobinPolicy) Node(_ QueryInfo, pos int) *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos >= len(p.hosts) {
		return nil
	}
	if pos == 0 {
		p.GenerateOffsetLocked()
	}
	return p.hosts[(p.next+pos)%len(p.hosts)]
}

func (p *RoundRobinPolicy) GenerateOffsetLocked() int {
	o := p.next
	p.next++
	return o
}

func (p *RoundRobinPolicy) OnHostUp(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.hosts {
		if h == n {
			return
		}
	}
	p.hosts = append(p.hosts, n)
}

func (p *RoundRobinPolicy) OnHostAdd(n *Node) { p.OnHostUp(n) }

func (p *RoundRobinPolicy) OnHostDown(n *Node) {}

func (p *RoundRobinPolicy) OnHostRemove(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, h := range p.hosts {
		if h == n {
			p.hosts = append(p.hosts[:i], p.hosts[i+1:]...)
			return
		}
	}
}

// DCAwareRoundRobinPolicy prefers localDC hosts, falling back to every
// other host only once the local set is exhausted.
type DCAwareRoundRobinPolicy struct {
	mu      sync.Mutex
	localDC string
	local   []*Node
	remote  []*Node
	next    int
}

func NewDCAwareRoundRobin(localDC string) *DCAwareRoundRobinPolicy {
	return &DCAwareRoundRobinPolicy{localDC: localDC}
}

func (p *DCAwareRoundRobinPolicy) GenerateOffset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.next
	p.next++
	return o
}

func (p *DCAwareRoundRobinPolicy) Node(_ QueryInfo, pos int) *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos == 0 {
		p.next++
	}
	if pos < len(p.local) {
		return p.local[(p.next+pos)%len(p.local)]
	}
	rpos := pos - len(p.local)
	if rpos < len(p.remote) {
		return p.remote[(p.next+rpos)%len(p.remote)]
	}
	return nil
}

func (p *DCAwareRoundRobinPolicy) OnHostUp(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n.datacenter == p.localDC {
		p.local = appendUnique(p.local, n)
	} else {
		p.remote = appendUnique(p.remote, n)
	}
}

func (p *DCAwareRoundRobinPolicy) OnHostAdd(n *Node) { p.OnHostUp(n) }
func (p *DCAwareRoundRobinPolicy) OnHostDown(*Node)  {}

func (p *DCAwareRoundRobinPolicy) OnHostRemove(n *Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = removeNode(p.local, n)
	p.remote = removeNode(p.remote, n)
}

func appendUnique(s []*Node, n *Node) []*Node {
	for _, h := range s {
		if h == n {
			return s
		}
	}
	return append(s, n)
}

func removeNode(s []*Node, n *Node) []*Node {
	for i, h := range s {
		if h == n {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}

// TokenAwarePolicy wraps a child policy: when the request carries a
// routing token it orders replicas of that token first (in the order
// Metadata.Replicas returns them), then falls back to the child's own full
// ordering for any position past the replica set.
type TokenAwarePolicy struct {
	child    HostSelectionPolicy
	metadata func() *Metadata
	keyspace func() string
}

func NewTokenAwarePolicy(child HostSelectionPolicy, metadata func() *Metadata, keyspace func() string) *TokenAwarePolicy {
	return &TokenAwarePolicy{child: child, metadata: metadata, keyspace: keyspace}
}

func (p *TokenAwarePolicy) GenerateOffset() int { return p.child.GenerateOffset() }

func (p *TokenAwarePolicy) Node(qi QueryInfo, pos int) *Node {
	if !qi.tokenAware {
		return p.child.Node(qi, pos)
	}

	ks := qi.keyspace
	if ks == "" && p.keyspace != nil {
		ks = p.keyspace()
	}
	replicas := p.metadata().Replicas(ks, qi.token)
	if pos < len(replicas) {
		return replicas[pos]
	}
	return p.child.Node(qi, pos-len(replicas))
}

func (p *TokenAwarePolicy) OnHostUp(n *Node)     { p.child.OnHostUp(n) }
func (p *TokenAwarePolicy) OnHostDown(n *Node)   { p.child.OnHostDown(n) }
func (p *TokenAwarePolicy) OnHostAdd(n *Node)    { p.child.OnHostAdd(n) }
func (p *TokenAwarePolicy) OnHostRemove(n *Node) { p.child.OnHostRemove(n) }

// AllowListPolicy wraps a child policy, filtering out any host not in the
// allowed address set before the child ever sees it.
type AllowListPolicy struct {
	child   HostSelectionPolicy
	allowed map[string]bool
}

func NewAllowListPolicy(child HostSelectionPolicy, allowed []string) *AllowListPolicy {
	m := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		m[a] = true
	}
	return &AllowListPolicy{child: child, allowed: m}
}

func (p *AllowListPolicy) GenerateOffset() int { return p.child.GenerateOffset() }

func (p *AllowListPolicy) Node(qi QueryInfo, pos int) *Node {
	return p.child.Node(qi, pos)
}

func (p *AllowListPolicy) OnHostUp(n *Node) {
	if p.allowed[n.addr] {
		p.child.OnHostUp(n)
	}
}
func (p *AllowListPolicy) OnHostDown(n *Node) { p.child.OnHostDown(n) }
func (p *AllowListPolicy) OnHostAdd(n *Node) {
	if p.allowed[n.addr] {
		p.child.OnHostAdd(n)
	}
}
func (p *AllowListPolicy) OnHostRemove(n *Node) { p.child.OnHostRemove(n) }

// NewSimpleTokenAwarePolicy and NewNetworkTopologyTokenAwarePolicy are thin
// convenience constructors mirroring the root package's historical helper
// names; rf/dcRf are informational only here since actual replica counts
// come from the keyspace's own replication options once metadata loads.
func NewSimpleTokenAwarePolicy(child HostSelectionPolicy, metadata func() *Metadata, keyspace func() string, _ int) *TokenAwarePolicy {
	return NewTokenAwarePolicy(child, metadata, keyspace)
}

func NewNetworkTopologyTokenAwarePolicy(child HostSelectionPolicy, metadata func() *Metadata, keyspace func() string, _ map[string]int) *TokenAwarePolicy {
	return NewTokenAwarePolicy(child, metadata, keyspace)
}
