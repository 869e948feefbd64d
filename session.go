// Package cql is a native CQL binary protocol driver for Apache Cassandra
// and ScyllaDB/DSE clusters: frame codec, connection pooling, token-aware
// routing and a small session/query API on top of the transport package.
package cql

import (
	"context"
	"fmt"
	"log"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/transport"
)

type EventType = string

const (
	TopologyChange EventType = "TOPOLOGY_CHANGE"
	StatusChange   EventType = "STATUS_CHANGE"
	SchemaChange   EventType = "SCHEMA_CHANGE"
)

type Consistency = frame.Consistency

const (
	ANY         Consistency = 0x0000
	ONE         Consistency = 0x0001
	TWO         Consistency = 0x0002
	THREE       Consistency = 0x0003
	QUORUM      Consistency = 0x0004
	ALL         Consistency = 0x0005
	LOCALQUORUM Consistency = 0x0006
	EACHQUORUM  Consistency = 0x0007
	SERIAL      Consistency = 0x0008
	LOCALSERIAL Consistency = 0x0009
	LOCALONE    Consistency = 0x000A
)

var (
	ErrNoHosts      = fmt.Errorf("error in session config: no hosts given")
	ErrEventType    = fmt.Errorf("error in session config: invalid event type")
	ErrConsistency  = fmt.Errorf("error in session config: invalid consistency")
	errNoConnection = fmt.Errorf("no working connection")
)

// SessionConfig configures a Session. HostSelectionPolicy and RetryPolicy
// default to round-robin and DefaultRetryPolicy when left nil.
type SessionConfig struct {
	Hosts  []string
	Events []EventType

	HostSelectionPolicy         transport.HostSelectionPolicy
	RetryPolicy                 transport.RetryPolicy
	SpeculativeExecutionPolicy  transport.SpeculativeExecutionPolicy

	// Logger receives driver diagnostics such as failed topology or schema
	// refreshes. Defaults to a no-op logger.
	Logger transport.Logger

	// Metrics receives one observation per speculative attempt; queries and
	// retries are not reported. Defaults to a no-op sink.
	Metrics transport.MetricsSink

	transport.ConnConfig
}

// DefaultSessionConfig returns a config with a RoundRobinPolicy, the
// default retry policy and DefaultConnConfig targeting keyspace.
func DefaultSessionConfig(keyspace string, hosts ...string) SessionConfig {
	return SessionConfig{
		Hosts:               hosts,
		HostSelectionPolicy: transport.NewRoundRobinPolicy(),
		RetryPolicy:         transport.NewDefaultRetryPolicy(),
		ConnConfig:          transport.DefaultConnConfig(keyspace),
	}
}

func (cfg SessionConfig) Clone() SessionConfig {
	v := cfg
	v.Hosts = append([]string(nil), cfg.Hosts...)
	v.Events = append([]EventType(nil), cfg.Events...)
	return v
}

func (cfg *SessionConfig) Validate() error {
	if len(cfg.Hosts) == 0 {
		return ErrNoHosts
	}
	for _, e := range cfg.Events {
		if e != TopologyChange && e != StatusChange && e != SchemaChange {
			return ErrEventType
		}
	}
	if cfg.DefaultConsistency > LOCALONE {
		return ErrConsistency
	}
	if cfg.HostSelectionPolicy == nil {
		cfg.HostSelectionPolicy = transport.NewRoundRobinPolicy()
	}
	if cfg.RetryPolicy == nil {
		cfg.RetryPolicy = transport.NewDefaultRetryPolicy()
	}
	if cfg.SpeculativeExecutionPolicy == nil {
		cfg.SpeculativeExecutionPolicy = transport.NoSpeculativeExecution{}
	}
	return nil
}

// Session is a connection to a cluster: a control connection for topology
// and schema, plus a pool per discovered host.
type Session struct {
	cfg     SessionConfig
	cluster *transport.Cluster
}

func NewSession(cfg SessionConfig) (*Session, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cluster, err := transport.NewCluster(cfg.ConnConfig, cfg.HostSelectionPolicy, cfg.Logger, cfg.Metrics, cfg.Events, cfg.Hosts...)
	if err != nil {
		return nil, err
	}

	return &Session{cfg: cfg, cluster: cluster}, nil
}

// Query builds an unprepared statement. Call Prepare before Exec/Iter to
// have the server parse it once and bind by position thereafter.
func (s *Session) Query(content string) *Query {
	return &Query{
		session: s,
		stmt:    transport.Statement{Content: content, Consistency: s.cfg.DefaultConsistency},
		exec: func(ctx context.Context, conn *transport.Conn, stmt transport.Statement, pagingState []byte) (transport.QueryResult, error) {
			return conn.Query(ctx, stmt, pagingState)
		},
		asyncExec: func(conn *transport.Conn, stmt transport.Statement, pagingState []byte, h transport.ResponseHandler) {
			conn.AsyncQuery(stmt, pagingState, h)
		},
	}
}

// Prepare parses content on the cluster's prepared statement cache and
// returns a Query bound to the resulting statement id.
func (s *Session) Prepare(ctx context.Context, content string) (*Query, error) {
	policy := s.cluster.Policy()
	n := policy.Node(s.cluster.NewQueryInfo(), 0)
	if n == nil {
		return nil, errNoConnection
	}
	conn, err := n.LeastBusyConn()
	if err != nil {
		return nil, errNoConnection
	}

	stmt := transport.Statement{Content: content, Consistency: s.cfg.DefaultConsistency}
	info, err := s.cluster.PreparedCache().Prepare(ctx, conn, n.Addr(), "", stmt)
	if err != nil {
		return nil, err
	}

	bound := info.Metadata
	bound.Consistency = s.cfg.DefaultConsistency

	return &Query{
		session: s,
		stmt:    bound,
		exec: func(ctx context.Context, conn *transport.Conn, stmt transport.Statement, pagingState []byte) (transport.QueryResult, error) {
			return conn.Execute(ctx, stmt, pagingState)
		},
		asyncExec: func(conn *transport.Conn, stmt transport.Statement, pagingState []byte, h transport.ResponseHandler) {
			conn.AsyncExecute(stmt, pagingState, h)
		},
	}, nil
}

func NewRoundRobinPolicy() transport.HostSelectionPolicy { return transport.NewRoundRobinPolicy() }

func NewDCAwareRoundRobinPolicy(localDC string) transport.HostSelectionPolicy {
	return transport.NewDCAwareRoundRobin(localDC)
}

// NewTokenAwarePolicy wraps child with token-aware routing driven by s's
// cluster metadata.
func NewTokenAwarePolicy(child transport.HostSelectionPolicy, s *Session) transport.HostSelectionPolicy {
	return transport.NewTokenAwarePolicy(child, s.cluster.Metadata, func() string { return "" })
}

func NewAllowListPolicy(child transport.HostSelectionPolicy, allowed []string) transport.HostSelectionPolicy {
	return transport.NewAllowListPolicy(child, allowed)
}

// Hosts returns every node the session's cluster currently knows about.
func (s *Session) Hosts() []*transport.Node { return s.cluster.Hosts() }

// Metadata returns the current schema/ring snapshot.
func (s *Session) Metadata() *transport.Metadata { return s.cluster.Metadata() }

// Metrics returns the sink configured on this session, NopMetrics if none
// was set.
func (s *Session) Metrics() transport.MetricsSink { return s.cluster.Metrics() }

func (s *Session) Close() {
	log.Println("session: close")
	s.cluster.Close()
}
