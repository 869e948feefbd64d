package transport

import (
	"fmt"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/request"
	"github.com/go-cql/driver/frame/response"
)

// Statement is a CQL statement together with everything needed to bind,
// route and retry it: either a plain query string or (after Prepare) an
// opaque id plus bind-marker and result metadata.
type Statement struct {
	Content string
	ID      []byte // set once Prepare succeeds

	Consistency       frame.Consistency
	SerialConsistency frame.Consistency
	Values            []frame.Value
	Names             []string

	Metadata     *frame.ResultMetadata
	bindMetadata *frame.PreparedMetadata

	PkIndexes []int
	PkCnt     int

	PageSize       frame.Int
	NoSkipMetadata bool
	Compression    bool
	Idempotent     bool
}

// Clone returns a deep-enough copy for a concurrent execution attempt: the
// Values slice and each value's bytes are copied so paging/retries never
// race on the same backing arrays with another in-flight attempt of the
// same prepared Query.
func (s Statement) Clone() Statement {
	out := s
	out.Values = make([]frame.Value, len(s.Values))
	copy(out.Values, s.Values)
	for i, v := range s.Values {
		if v.Bytes != nil {
			out.Values[i].Bytes = make([]byte, len(v.Bytes))
			copy(out.Values[i].Bytes, v.Bytes)
		}
	}
	return out
}

// BindMarkers returns the bind markers' column specs (name, type) in
// positional order, or nil for an unprepared statement.
func (s *Statement) BindMarkers() []frame.ColumnSpec {
	if s.bindMetadata == nil {
		return nil
	}
	return s.bindMetadata.Columns
}

func (s *Statement) queryParams(pagingState []byte) request.QueryParams {
	return request.QueryParams{
		Consistency:       s.Consistency,
		Values:            s.Values,
		Names:             s.Names,
		SkipMetadata:      s.Metadata != nil && !s.NoSkipMetadata,
		PageSize:          s.PageSize,
		PagingState:       pagingState,
		SerialConsistency: s.SerialConsistency,
	}
}

// QueryResult is the client-visible outcome of one request: the decoded
// rows (if any), their metadata, paging continuation state and warnings.
// It does not record which kind of RESULT the server returned.
type QueryResult struct {
	Rows         []frame.Row
	Metadata     *frame.ResultMetadata
	PagingState  []byte
	HasMorePages bool
	Warnings     []string
}

func makeQueryResult(resp frame.Response, fallback *frame.ResultMetadata) (QueryResult, error) {
	switch r := resp.(type) {
	case *response.VoidResult:
		return QueryResult{}, nil
	case *response.RowsResult:
		meta := r.Metadata
		if meta.Flags&frame.NoMetadata != 0 && fallback != nil {
			meta.Columns = fallback.Columns
		}
		qr := QueryResult{
			Rows:     r.Rows,
			Metadata: &meta,
		}
		if meta.Flags&frame.HasMorePages != 0 {
			qr.HasMorePages = true
			qr.PagingState = meta.PagingState
		}
		return qr, nil
	case *response.SetKeyspaceResult:
		return QueryResult{}, nil
	case *response.PreparedResult:
		return QueryResult{Metadata: &r.ResultMetadata}, nil
	case *response.SchemaChangeResult:
		return QueryResult{}, nil
	case nil:
		return QueryResult{}, fmt.Errorf("empty response")
	default:
		return QueryResult{}, responseAsError(resp)
	}
}

// Compression is implemented by the body compressors a connection may
// negotiate during STARTUP.
type Compression interface {
	Name() string
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// QueryInfo carries whatever the chosen HostSelectionPolicy needs to order
// candidate hosts for one request: the routing token (when the statement's
// partition key is known) and which keyspace it targets.
type QueryInfo struct {
	token      Token
	tokenAware bool
	keyspace   string
}
