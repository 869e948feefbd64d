package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PoolConfig holds per-HostDistance connection counts. Cluster sizes every
// host's pool with LocalDCCore, whatever the host's datacenter; the Max
// fields are not read.
type PoolConfig struct {
	LocalDCCore  int
	LocalDCMax   int
	RemoteDCCore int
	RemoteDCMax  int
}

// DefaultPoolConfig matches what the Java/Go driver ecosystem has always
// shipped as defaults: a handful of connections to local hosts, one to
// remote ones.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{LocalDCCore: 2, LocalDCMax: 8, RemoteDCCore: 1, RemoteDCMax: 2}
}

// HostDistance classifies a host relative to the client. No policy computes
// it; Cluster treats every host as Local.
type HostDistance int

const (
	Local HostDistance = iota
	Remote
	Ignored
)

func (c PoolConfig) coreConnections(d HostDistance) int {
	switch d {
	case Local:
		return c.LocalDCCore
	case Remote:
		return c.RemoteDCCore
	default:
		return 0
	}
}

// ConnPool is the set of connections Cluster keeps open to a single host.
// With a shard-aware host it holds exactly one Conn per shard and routes
// token-aware queries straight to the shard owning that token; otherwise it
// is a flat round-robin/least-busy set.
type ConnPool struct {
	addr   string
	cfg    ConnConfig
	reconn ReconnectionPolicy
	mu     sync.RWMutex
	conns  []*Conn
	shards int

	rrNext uint32

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnPool dials cfg.PoolSize connections to addr (or cfg.Shards
// shard-pinned connections, if cfg.Shards is set). A connection that later
// dies is replaced lazily, on the schedule reconn produces, rather than
// left as a permanent hole in the pool; reconn defaults to
// ConstantReconnectionPolicy{5s} when nil.
func NewConnPool(ctx context.Context, addr string, cfg ConnConfig, reconn ReconnectionPolicy) (*ConnPool, error) {
	if reconn == nil {
		reconn = ConstantReconnectionPolicy{Delay: 5 * time.Second}
	}

	n := cfg.PoolSize
	if n <= 0 {
		n = 1
	}
	if cfg.Shards > 0 {
		n = cfg.Shards
	}

	p := &ConnPool{
		addr:   addr,
		cfg:    cfg,
		reconn: reconn,
		shards: cfg.Shards,
		conns:  make([]*Conn, n),
		closed: make(chan struct{}),
	}

	for i := 0; i < n; i++ {
		c, err := p.dial(ctx, i)
		if err != nil {
			p.closeLocked()
			return nil, fmt.Errorf("connecting to %s: %w", addr, err)
		}
		p.conns[i] = c
		go p.watch(i)
	}

	return p, nil
}

// dial opens the connection for slot, either shard-pinned or plain
// depending on how the pool was configured.
func (p *ConnPool) dial(ctx context.Context, slot int) (*Conn, error) {
	if p.shards > 0 {
		return OpenShardConn(ctx, p.addr, ShardInfo{Shard: uint16(slot), NrShards: uint16(p.shards)}, p.cfg)
	}
	return OpenConn(ctx, p.addr, nil, p.cfg)
}

// watch waits for slot's connection to die, then redials it following the
// pool's ReconnectionPolicy until a replacement opens or the pool closes.
func (p *ConnPool) watch(slot int) {
	p.mu.RLock()
	c := p.conns[slot]
	p.mu.RUnlock()
	if c == nil {
		return
	}

	select {
	case <-c.closed:
	case <-p.closed:
		return
	}

	schedule := p.reconn.NewSchedule()
	for {
		select {
		case <-p.closed:
			return
		case <-time.After(schedule.NextDelay()):
		}

		nc, err := p.dial(context.Background(), slot)
		if err != nil {
			continue
		}

		p.mu.Lock()
		p.conns[slot] = nc
		p.mu.Unlock()
		go p.watch(slot)
		return
	}
}

func (p *ConnPool) closeLocked() {
	for _, c := range p.conns {
		if c != nil {
			c.Close()
		}
	}
}

func (p *ConnPool) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

// liveConns returns the pool's connections that are still usable.
func (p *ConnPool) liveConns() []*Conn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		if c != nil && !c.IsClosed() {
			out = append(out, c)
		}
	}
	return out
}

// LeastBusyConn returns the connection with the fewest outstanding
// in-flight requests.
func (p *ConnPool) LeastBusyConn() (*Conn, error) {
	conns := p.liveConns()
	if len(conns) == 0 {
		return nil, fmt.Errorf("connection pool to %s is empty", p.addr)
	}

	best := conns[0]
	bestLoad := best.InFlight()
	for _, c := range conns[1:] {
		if l := c.InFlight(); l < bestLoad {
			best, bestLoad = c, l
		}
	}
	return best, nil
}

// Conn returns the connection owning token's shard, when the pool is
// shard-aware; otherwise it behaves like LeastBusyConn.
func (p *ConnPool) Conn(token Token) (*Conn, error) {
	if p.shards <= 0 {
		return p.LeastBusyConn()
	}

	p.mu.RLock()
	shard := shardForToken(token, p.shards)
	c := p.conns[shard]
	p.mu.RUnlock()

	if c == nil || c.IsClosed() {
		return p.LeastBusyConn()
	}
	return c, nil
}

// shardForToken maps a token to a shard by biasing it to an unsigned value,
// shifting right by one bit and taking the result modulo the shard count.
// This is not Scylla's own token-to-shard computation (which uses the top
// bits of the biased token and msb_ignore), so a routed query can land on
// a connection whose shard does not own the token.
func shardForToken(token Token, shards int) int {
	v := uint64(token) + (1 << 63)
	return int((v >> 1) % uint64(shards))
}
