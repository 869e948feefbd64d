package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/response"
)

// Cluster owns everything shared across a session's connections: the host
// registry, schema/ring metadata, the prepared statement cache and the
// control connection used to discover topology and watch for changes.
type Cluster struct {
	cfg      ConnConfig
	pool     PoolConfig
	policy   HostSelectionPolicy
	events   []string
	logger   Logger
	reconn   ReconnectionPolicy
	metrics  MetricsSink

	registry      *Registry
	preparedCache *PreparedCache

	mu       sync.RWMutex
	metadata *Metadata

	controlMu   sync.Mutex
	control     *Conn
	controlAddr string

	closeOnce sync.Once
	closed    chan struct{}
}

// NewCluster dials the hosts in order until one accepts and becomes the
// control connection, loads topology and schema, and registers for the
// given event types.
func NewCluster(cfg ConnConfig, policy HostSelectionPolicy, logger Logger, metrics MetricsSink, events []string, hosts ...string) (*Cluster, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("transport: no hosts given")
	}
	if logger == nil {
		logger = DefaultLogger{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}

	c := &Cluster{
		cfg:           cfg,
		pool:          DefaultPoolConfig(),
		policy:        policy,
		events:        events,
		logger:        logger,
		reconn:        ConstantReconnectionPolicy{Delay: 5 * time.Second},
		metrics:       metrics,
		registry:      newRegistry(),
		preparedCache: newPreparedCache(),
		metadata:      newMetadata(),
		closed:        make(chan struct{}),
	}
	c.metadata.Tokenizer = Murmur3Tokenizer{}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	var lastErr error
	for _, h := range hosts {
		if err := c.addControlHost(ctx, h); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, fmt.Errorf("connecting to initial hosts: %w", lastErr)
	}

	if err := c.refreshTopology(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("loading topology: %w", err)
	}
	if err := c.refreshSchema(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	if len(events) > 0 {
		if err := c.registerEvents(ctx); err != nil {
			c.logger.Printf("transport: registering for events: %v", err)
		}
	}

	return c, nil
}

func (c *Cluster) addControlHost(ctx context.Context, addr string) error {
	ccfg := c.cfg
	ccfg.PoolSize = 1
	conn, err := OpenConn(ctx, addr, nil, ccfg)
	if err != nil {
		return err
	}

	c.controlMu.Lock()
	if c.control != nil {
		c.control.Close()
	}
	c.control = conn
	c.controlAddr = addr
	c.controlMu.Unlock()
	return nil
}

// Policy returns the cluster's active HostSelectionPolicy.
func (c *Cluster) Policy() HostSelectionPolicy { return c.policy }

// Metadata returns the current schema/ring snapshot. Callers must not
// mutate the result.
func (c *Cluster) Metadata() *Metadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metadata
}

// NewQueryInfo returns a QueryInfo that carries no routing token, for
// requests the policy should order without token awareness.
func (c *Cluster) NewQueryInfo() QueryInfo { return QueryInfo{} }

// NewTokenAwareQueryInfo returns a QueryInfo the TokenAwarePolicy can use to
// route a request to token's replicas.
func (c *Cluster) NewTokenAwareQueryInfo(token Token, keyspace string) QueryInfo {
	return QueryInfo{token: token, tokenAware: true, keyspace: keyspace}
}

// PreparedCache exposes the cluster-wide prepared statement cache.
func (c *Cluster) PreparedCache() *PreparedCache { return c.preparedCache }

// Metrics returns the cluster's MetricsSink. Only speculative attempts are
// reported to it (by the root package's speculative execution).
func (c *Cluster) Metrics() MetricsSink { return c.metrics }

// Hosts returns every node the registry currently knows about.
func (c *Cluster) Hosts() []*Node { return c.registry.All() }

// anyConn picks any currently-up node and returns its least busy
// connection, used for schema/topology queries that don't need routing.
func (c *Cluster) anyConn() (*Conn, error) {
	for _, n := range c.registry.All() {
		if n.IsUp() {
			if conn, err := n.LeastBusyConn(); err == nil {
				return conn, nil
			}
		}
	}

	c.controlMu.Lock()
	conn := c.control
	c.controlMu.Unlock()
	if conn != nil && !conn.IsClosed() {
		return conn, nil
	}
	return nil, fmt.Errorf("no connection available")
}

// refreshTopology queries system.local/system.peers on the control
// connection and reconciles the result into the Registry, opening pools for
// newly discovered hosts.
func (c *Cluster) refreshTopology(ctx context.Context) error {
	c.controlMu.Lock()
	conn := c.control
	addr := c.controlAddr
	c.controlMu.Unlock()
	if conn == nil {
		return fmt.Errorf("no control connection")
	}

	local, err := conn.Query(ctx, Statement{
		Content:     "SELECT host_id, data_center, rack, tokens FROM system.local WHERE key='local'",
		Consistency: frame.ONE,
	}, nil)
	if err != nil {
		return fmt.Errorf("query system.local: %w", err)
	}
	c.reconcileRow(addr, local.Rows)

	peers, err := conn.Query(ctx, Statement{
		Content:     "SELECT host_id, peer, data_center, rack, tokens FROM system.peers",
		Consistency: frame.ONE,
	}, nil)
	if err != nil {
		return fmt.Errorf("query system.peers: %w", err)
	}
	for _, row := range peers.Rows {
		if len(row) < 5 {
			continue
		}
		peerAddr, _ := row[1].AsString()
		if peerAddr == "" {
			continue
		}
		c.reconcilePeerRow(peerAddr, row)
	}

	c.buildRing()
	return nil
}

func (c *Cluster) reconcileRow(addr string, rows []frame.Row) {
	if len(rows) == 0 {
		return
	}
	row := rows[0]
	if len(row) < 4 {
		return
	}
	dc, _ := row[1].AsString()
	rack, _ := row[2].AsString()
	n := &Node{addr: addr, datacenter: dc, rack: rack}
	n = c.registry.Add(n)
	n.Init(context.Background(), c.connConfigFor(n), c.reconn)
	c.policy.OnHostUp(n)
}

func (c *Cluster) reconcilePeerRow(addr string, row frame.Row) {
	dc, _ := row[2].AsString()
	rack, _ := row[3].AsString()
	n := &Node{addr: addr, datacenter: dc, rack: rack}
	n = c.registry.Add(n)
	n.Init(context.Background(), c.connConfigFor(n), c.reconn)
	c.policy.OnHostUp(n)
}

func (c *Cluster) connConfigFor(n *Node) ConnConfig {
	cfg := c.cfg
	if n.addr == c.controlAddr {
		cfg.PoolSize = c.pool.LocalDCCore
	} else {
		cfg.PoolSize = c.pool.coreConnections(Local)
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	return cfg
}

// buildRing assembles the token ring from every registered node: each node
// occupies exactly one ring position, keyed by the tokenizer's hash of its
// address. The tokens column of system.local/peers is not parsed, so the
// ring does not reflect the nodes' real token or vnode ownership. Building
// a new ring drops every keyspace's cached replica sets.
func (c *Cluster) buildRing() {
	nodes := c.registry.All()
	ring := make(Ring, 0, len(nodes))
	for _, n := range nodes {
		tok := c.metadata.Tokenizer.Hash([]byte(n.addr))
		ring = append(ring, RingEntry{node: n, token: tok})
	}
	sortRing(ring)

	c.mu.Lock()
	c.metadata.Ring = ring
	for _, ks := range c.metadata.Keyspaces {
		ks.replicasCache = nil
	}
	c.mu.Unlock()
}

func sortRing(r Ring) {
	for i := 1; i < len(r); i++ {
		for j := i; j > 0 && r.Less(j, j-1); j-- {
			r.Swap(j, j-1)
		}
	}
}

func (c *Cluster) registerEvents(ctx context.Context) error {
	c.controlMu.Lock()
	conn := c.control
	c.controlMu.Unlock()
	if conn == nil {
		return fmt.Errorf("no control connection")
	}
	return conn.Register(ctx, frame.StringList(c.events), c.onEvent)
}

func (c *Cluster) onEvent(ev *response.Event) {
	switch ev.Type {
	case response.StatusChange:
		addr := fmt.Sprintf("%s:%d", net.IP(ev.Address.IP).String(), ev.Address.Port)
		if ev.Change == "UP" {
			go c.deferredMarkUp(addr)
		} else {
			c.registry.MarkDown(addr)
			if n, ok := c.registry.Get(addr); ok {
				c.policy.OnHostDown(n)
			}
		}
	case response.TopologyChange:
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		if err := c.refreshTopology(ctx); err != nil {
			c.logger.Printf("transport: topology refresh after event: %v", err)
		}
	case response.SchemaChange:
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		if err := c.refreshSchema(ctx); err != nil {
			c.logger.Printf("transport: schema refresh after event: %v", err)
		}
	}
}

// statusChangeQuarantine is how long a STATUS_CHANGE "UP" notification is
// held before the node is actually probed. A restarting host can flap
// gossip state before it's ready to accept connections; marking it live on
// the bare event would just send a pool straight into dial failures.
const statusChangeQuarantine = 10 * time.Second

// deferredMarkUp waits out the quarantine window, then marks addr up only
// once its pool has actually opened a connection to it.
func (c *Cluster) deferredMarkUp(addr string) {
	select {
	case <-time.After(statusChangeQuarantine):
	case <-c.closed:
		return
	}

	n, ok := c.registry.Get(addr)
	if !ok {
		return
	}
	if n.pool == nil {
		n.Init(context.Background(), c.connConfigFor(n), c.reconn)
	}
	if n.pool == nil {
		c.logger.Printf("transport: STATUS_CHANGE up for %s but pool failed to open", addr)
		return
	}
	if _, err := n.pool.LeastBusyConn(); err != nil {
		c.logger.Printf("transport: STATUS_CHANGE up for %s but pool failed to open: %v", addr, err)
		return
	}

	c.registry.MarkUp(addr)
	c.policy.OnHostUp(n)
}

// Close tears down the control connection and every node pool.
func (c *Cluster) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.controlMu.Lock()
		if c.control != nil {
			c.control.Close()
		}
		c.controlMu.Unlock()

		for _, n := range c.registry.All() {
			n.Close()
		}
	})
}

// quoteKeyspace doubles any embedded double quote in a keyspace name. It
// does not validate the name, and nothing in this module calls it.
func quoteKeyspace(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}
