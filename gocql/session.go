package gocql

import (
	"context"

	cql "github.com/go-cql/driver"
)

// Session wraps a cql.Session behind the real gocql package's API surface,
// for code already written against it.
type Session struct {
	session *cql.Session
}

func NewSession(cfg ClusterConfig) (*Session, error) {
	scfg, err := sessionConfigFromGocql(&cfg)
	if err != nil {
		return nil, err
	}
	session, err := cql.NewSession(scfg)
	if err != nil {
		return nil, err
	}
	return &Session{session}, nil
}

// Query returns a bound Query. Unlike the real gocql package, this one
// always prepares content server-side first, since the underlying
// cql.Session binds markers only on prepared statements.
func (s *Session) Query(stmt string, values ...interface{}) *Query {
	q, err := s.session.Prepare(context.Background(), stmt)
	if err != nil {
		return &Query{err: err}
	}
	query := &Query{ctx: context.Background(), query: q}
	return query.Bind(values...)
}

func (s *Session) Close() { s.session.Close() }
