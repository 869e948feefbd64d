package gocql

import (
	"context"
	"fmt"

	"github.com/go-cql/driver/transport"
)

// SingleHostQueryExecutor runs diagnostic queries against a single node
// without a full session's pool or topology discovery. Consistency used is
// ONE; each statement is sent once, with no retries.
type SingleHostQueryExecutor struct {
	conn *transport.Conn
}

// NewSingleHostQueryExecutor dials the first host in cfg.Hosts. Caller must
// Close the executor after use.
func NewSingleHostQueryExecutor(cfg *ClusterConfig) (SingleHostQueryExecutor, error) {
	if len(cfg.Hosts) == 0 {
		return SingleHostQueryExecutor{}, fmt.Errorf("gocql: no hosts given")
	}

	scfg, err := sessionConfigFromGocql(cfg)
	if err != nil {
		return SingleHostQueryExecutor{}, err
	}

	conn, err := transport.OpenConn(context.Background(), cfg.Hosts[0], nil, scfg.ConnConfig)
	if err != nil {
		return SingleHostQueryExecutor{}, err
	}
	return SingleHostQueryExecutor{conn: conn}, nil
}

func (e SingleHostQueryExecutor) Exec(stmt string, _ ...interface{}) error {
	_, err := e.conn.Query(context.Background(), transport.Statement{Content: stmt, Consistency: 0x0001}, nil)
	return err
}

func (e SingleHostQueryExecutor) Close() {
	if e.conn != nil {
		e.conn.Close()
	}
}
