package gocql

import (
	"crypto/tls"
	"time"

	cql "github.com/go-cql/driver"
	"github.com/go-cql/driver/transport"
)

// ConvictionPolicy decides whether to mark a host down based on an error
// and host info. Accepted for source compatibility; host liveness is
// tracked by the cluster's own STATUS_CHANGE handling instead.
type ConvictionPolicy interface{}

// SslOptions configures TLS for connections dialed by a session built from
// this ClusterConfig.
type SslOptions struct {
	Config                 *tls.Config
	CertPath, KeyPath       string
	CaPath                  string
	EnableHostVerification bool
}

// ClusterConfig mirrors the configuration surface of the real gocql
// package's ClusterConfig, translated to a cql.SessionConfig by
// sessionConfigFromGocql when a Session is created.
type ClusterConfig struct {
	// Hosts used for the initial connections. Prefer IP addresses, since
	// events from the cluster carry the address it knows a node by.
	Hosts []string

	// CQL version. Not read by sessionConfigFromGocql; STARTUP always
	// sends 3.0.0.
	CQLVersion string

	// ProtoVersion is the native protocol version. Not read by
	// sessionConfigFromGocql, and no version negotiation takes place.
	ProtoVersion int

	// Timeout bounds dialing and the cluster's bootstrap and refresh
	// queries (default: 10s). It is not a per-request timeout.
	Timeout time.Duration

	// ConnectTimeout (default: 10s). Not read by sessionConfigFromGocql.
	ConnectTimeout time.Duration

	// Port defaults to 9042 but is not used when dialing; Hosts entries
	// must carry their own port.
	Port int

	// Keyspace to USE once connected. Optional.
	Keyspace string

	// NumConns is the number of connections per host. Not read by
	// sessionConfigFromGocql.
	NumConns int

	// Consistency is the default consistency level for queries that don't
	// set their own.
	Consistency Consistency

	// Compressor selects STARTUP body compression. Only SnappyCompressor
	// is currently wired; leave nil to disable compression.
	Compressor Compressor

	Authenticator Authenticator

	RetryPolicy      RetryPolicy
	ConvictionPolicy ConvictionPolicy // FIXME: unused, host liveness comes from events

	SocketKeepalive time.Duration

	MaxPreparedStmts  int
	MaxRoutingKeyInfo int

	PageSize int

	// SslOpts configures TLS. FIXME: unused, dialing is always plaintext.
	SslOpts *SslOptions

	DefaultTimestamp bool

	// PoolConfig lets a caller hand in an already-built
	// transport.HostSelectionPolicy through the PoolConfig.HostSelectionPolicy
	// field, same as the real driver's PoolConfig.HostSelectionPolicy.
	PoolConfig PoolConfig

	ReconnectInterval time.Duration // FIXME: unused

	MaxWaitSchemaAgreement time.Duration

	IgnorePeerAddr           bool
	DisableInitialHostLookup bool

	Events struct {
		DisableNodeStatusEvents bool
		DisableTopologyEvents   bool
		DisableSchemaEvents     bool
	}

	DisableSkipMetadata bool

	DefaultIdempotence bool

	// WriteCoalesceWaitTime FIXME: unused, writes are flushed immediately.
	WriteCoalesceWaitTime time.Duration

	DisableShardAwarePort bool

	// Logger receives driver diagnostics. Defaults to the package Logger.
	Logger StdLogger

	disableControlConn bool
	disableInit        bool
}

// PoolConfig lets callers plug in a HostSelectionPolicy the way the real
// gocql package's PoolConfig does.
type PoolConfig struct {
	HostSelectionPolicy transport.HostSelectionPolicy
}

func NewCluster(hosts ...string) *ClusterConfig {
	return &ClusterConfig{Hosts: hosts, WriteCoalesceWaitTime: 200 * time.Microsecond, Port: 9042}
}

func sessionConfigFromGocql(cfg *ClusterConfig) (cql.SessionConfig, error) {
	scfg := cql.DefaultSessionConfig(cfg.Keyspace, cfg.Hosts...)

	if cfg.Timeout > 0 {
		scfg.Timeout = cfg.Timeout
	}
	if cfg.Consistency != 0 {
		scfg.DefaultConsistency = frameConsistency(cfg.Consistency)
	}
	if _, ok := cfg.Compressor.(SnappyCompressor); ok {
		scfg.Compression = transport.SnappyCompression{}
	}
	if auth, ok := cfg.Authenticator.(PasswordAuthenticator); ok {
		scfg.Username = auth.Username
		scfg.Password = auth.Password
	}
	if cfg.PoolConfig.HostSelectionPolicy != nil {
		scfg.HostSelectionPolicy = cfg.PoolConfig.HostSelectionPolicy
	}
	if retryPolicy, ok := cfg.RetryPolicy.(transport.RetryPolicy); ok {
		scfg.RetryPolicy = retryPolicy
	}
	if !cfg.Events.DisableTopologyEvents {
		scfg.Events = append(scfg.Events, cql.TopologyChange)
	}
	if !cfg.Events.DisableNodeStatusEvents {
		scfg.Events = append(scfg.Events, cql.StatusChange)
	}
	if !cfg.Events.DisableSchemaEvents {
		scfg.Events = append(scfg.Events, cql.SchemaChange)
	}

	if cfg.Logger != nil {
		scfg.Logger = stdLoggerWrapper{cfg.Logger}
	} else if Logger != nil {
		scfg.Logger = stdLoggerWrapper{Logger}
	}

	return scfg, nil
}

// frameConsistency translates gocql's consistency numbering into the
// driver's own frame.Consistency, which happens to share the same values.
func frameConsistency(c Consistency) cql.Consistency { return cql.Consistency(c) }

func (cfg *ClusterConfig) CreateSession() (*Session, error) {
	return NewSession(*cfg)
}
