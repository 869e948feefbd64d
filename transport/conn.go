package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/go-cql/driver/frame"
	"github.com/go-cql/driver/frame/request"
	"github.com/go-cql/driver/frame/response"
)

// connResponse is what connReader hands back for a dispatched request: the
// decoded header/body pair, or a connection-fatal error.
type connResponse struct {
	frame.Header
	frame.Response
	Err error
}

// ResponseHandler is the channel a caller blocks on for a request's reply.
// AsyncQuery/AsyncExecute hand the caller the channel directly instead of
// blocking, so many requests can be pipelined on one connection.
type ResponseHandler chan connResponse

// MakeResponseHandler returns an unbuffered handler channel.
func MakeResponseHandler() ResponseHandler { return make(ResponseHandler) }

// MakeResponseHandlerWithError returns a handler pre-loaded with err, for
// call sites that fail before a request ever reaches the wire.
func MakeResponseHandlerWithError(err error) ResponseHandler {
	h := make(ResponseHandler, 1)
	h <- connResponse{Err: err}
	return h
}

type connRequest struct {
	frame.Request
	StreamID frame.StreamID
	Handler  ResponseHandler
}

type connWriter struct {
	conn        io.Writer
	buf         frame.Buffer
	bodyBuf     frame.Buffer
	requestCh   chan connRequest
	version     frame.ProtocolVersion
	compression Compression
}

func (w *connWriter) submit(r connRequest) { w.requestCh <- r }

func (w *connWriter) loop() {
	runtime.LockOSThread()
	for r := range w.requestCh {
		if err := w.send(r); err != nil {
			r.Handler <- connResponse{Err: fmt.Errorf("send: %w", err)}
		}
	}
}

func (w *connWriter) send(r connRequest) error {
	w.bodyBuf.Reset()
	r.WriteTo(&w.bodyBuf)
	body := w.bodyBuf.Bytes()

	flags := frame.HeaderFlags(0)
	if w.compression != nil && len(body) > 0 && r.OpCode() != frame.OpStartup {
		compressed, err := w.compression.Compress(nil, body)
		if err != nil {
			return fmt.Errorf("compress body: %w", err)
		}
		body = compressed
		flags |= frame.FlagCompression
	}

	w.buf.Reset()
	h := frame.Header{Version: w.version, Flags: flags, StreamID: r.StreamID, OpCode: r.OpCode(), Length: uint32(len(body))}
	h.WriteTo(&w.buf)
	w.buf.Write(body)

	_, err := frame.CopyBuffer(&w.buf, w.conn)
	return err
}

type connReader struct {
	conn        *bufio.Reader
	buf         frame.Buffer
	bufw        io.Writer
	version     frame.ProtocolVersion
	compression Compression

	handlers map[frame.StreamID]ResponseHandler
	alloc    streamIDAllocator
	mu       sync.Mutex

	onEvent func(*response.Event)
	onFatal func(error)
}

func (r *connReader) setHandler(h ResponseHandler) (frame.StreamID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := r.alloc.Alloc()
	if err != nil {
		return 0, err
	}
	r.handlers[id] = h
	return id, nil
}

func (r *connReader) freeHandler(id frame.StreamID) {
	r.mu.Lock()
	r.alloc.Free(id)
	delete(r.handlers, id)
	r.mu.Unlock()
}

func (r *connReader) handler(id frame.StreamID) ResponseHandler {
	r.mu.Lock()
	h := r.handlers[id]
	r.mu.Unlock()
	return h
}

func (r *connReader) loop() {
	runtime.LockOSThread()
	r.bufw = frame.BufferWriter(&r.buf)
	for {
		resp := r.recv()
		if resp.Err != nil {
			r.onFatal(resp.Err)
			return
		}
		if resp.Header.OpCode == frame.OpEvent {
			if ev, ok := resp.Response.(*response.Event); ok && r.onEvent != nil {
				r.onEvent(ev)
			}
			continue
		}
		if h := r.handler(resp.Header.StreamID); h != nil {
			h <- resp
		}
	}
}

func (r *connReader) recv() connResponse {
	r.buf.Reset()
	var resp connResponse

	headerSize := frame.HeaderSize(r.version)
	if _, err := io.CopyN(r.bufw, r.conn, int64(headerSize)); err != nil {
		resp.Err = fmt.Errorf("read header: %w", err)
		return resp
	}
	resp.Header = frame.ParseHeader(&r.buf)
	if err := r.buf.Error(); err != nil {
		resp.Err = fmt.Errorf("parse header: %w", err)
		return resp
	}

	body := make([]byte, resp.Header.Length)
	if len(body) > 0 {
		if _, err := io.ReadFull(r.conn, body); err != nil {
			resp.Err = fmt.Errorf("read body: %w", err)
			return resp
		}
	}

	if resp.Header.Flags&frame.FlagCompression != 0 {
		if r.compression == nil {
			resp.Err = fmt.Errorf("received compressed frame without a negotiated compressor")
			return resp
		}
		decompressed, err := r.compression.Decompress(nil, body)
		if err != nil {
			resp.Err = fmt.Errorf("decompress body: %w", err)
			return resp
		}
		body = decompressed
	}

	r.buf.Reset()
	r.buf.Write(body)
	resp.Response = r.parse(resp.Header.OpCode)
	if err := r.buf.Error(); err != nil {
		resp.Err = fmt.Errorf("parse body: %w", err)
		return resp
	}

	return resp
}

func (r *connReader) parse(op frame.OpCode) frame.Response {
	switch op {
	case frame.OpError:
		return response.ParseError(&r.buf)
	case frame.OpReady:
		return response.ParseReady(&r.buf)
	case frame.OpAuthenticate:
		return response.ParseAuthenticate(&r.buf)
	case frame.OpAuthChallenge:
		return response.ParseAuthChallenge(&r.buf)
	case frame.OpAuthSuccess:
		return response.ParseAuthSuccess(&r.buf)
	case frame.OpSupported:
		return response.ParseSupported(&r.buf)
	case frame.OpResult:
		return response.ParseResult(&r.buf)
	case frame.OpEvent:
		return response.ParseEvent(&r.buf)
	default:
		r.buf.Fail(fmt.Errorf("unsupported opcode %#02x", op))
		return nil
	}
}

// Conn is a single multiplexed connection to one node: one writer
// goroutine, one reader goroutine, a negotiated protocol version, and an
// in-flight keyspace that every Query/Execute implicitly targets.
type Conn struct {
	conn    net.Conn
	addr    string
	w       connWriter
	r       connReader
	version frame.ProtocolVersion

	keyspaceMu sync.Mutex
	keyspace   string

	closeOnce sync.Once
	closed    chan struct{}
	fatalErr  error

	heartbeatInterval time.Duration
}

// ConnConfig bundles everything OpenConn needs to dial and initialize a
// connection.
type ConnConfig struct {
	TCPNoDelay         bool
	Timeout            time.Duration
	DefaultConsistency frame.Consistency
	Keyspace           string
	Username, Password string
	Compression        Compression
	HeartbeatInterval  time.Duration
	ProtocolVersion    frame.ProtocolVersion

	// PoolSize is the number of connections ConnPool opens to a host absent
	// shard-awareness. Cluster fills this in per host from PoolConfig based
	// on the host's distance.
	PoolSize int
	// Shards, when non-zero, tells ConnPool the host is shard-aware: it
	// opens exactly Shards connections, one pinned to each shard via
	// OpenShardConn instead of PoolSize plain connections.
	Shards int
}

// DefaultConnConfig returns a ConnConfig with the values the teacher's
// session layer has always defaulted to.
func DefaultConnConfig(keyspace string) ConnConfig {
	return ConnConfig{
		TCPNoDelay:         true,
		Timeout:            10 * time.Second,
		DefaultConsistency: frame.QUORUM,
		Keyspace:           keyspace,
		HeartbeatInterval:  30 * time.Second,
		ProtocolVersion:    frame.CQLv4,
		PoolSize:           1,
	}
}

const (
	requestChanSize = 1024
	ioBufferSize    = 8192
)

// OpenConn dials addr, completes STARTUP (and SASL auth, if configured),
// and switches to cfg.Keyspace if one was given.
func OpenConn(ctx context.Context, addr string, localAddr *net.TCPAddr, cfg ConnConfig) (*Conn, error) {
	d := net.Dialer{Timeout: cfg.Timeout, LocalAddr: localAddr}
	rawConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	if tcpConn, ok := rawConn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(cfg.TCPNoDelay); err != nil {
			return nil, fmt.Errorf("setting TCP_NODELAY: %w", err)
		}
	}

	c := WrapConn(rawConn, cfg.ProtocolVersion)
	c.addr = addr
	c.heartbeatInterval = cfg.HeartbeatInterval
	if cfg.Compression != nil {
		c.w.compression = cfg.Compression
		c.r.compression = cfg.Compression
	}

	if err := c.startup(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.Keyspace != "" {
		if err := c.SetKeyspace(ctx, cfg.Keyspace); err != nil {
			c.Close()
			return nil, err
		}
	}

	if cfg.HeartbeatInterval > 0 {
		go c.heartbeatLoop()
	}

	return c, nil
}

// OpenLocalPortConn opens a connection bound to a specific local port, used
// to land on Scylla's shard-aware port mapping.
func OpenLocalPortConn(ctx context.Context, addr string, localPort uint16, cfg ConnConfig) (*Conn, error) {
	localAddr, err := net.ResolveTCPAddr("tcp", ":"+strconv.Itoa(int(localPort)))
	if err != nil {
		return nil, fmt.Errorf("resolving local TCP address: %w", err)
	}
	return OpenConn(ctx, addr, localAddr, cfg)
}

// OpenShardConn opens a connection mapped to a specific Scylla shard by
// iterating the shard-aware local port range until one succeeds.
func OpenShardConn(ctx context.Context, addr string, si ShardInfo, cfg ConnConfig) (*Conn, error) {
	it := ShardPortIterator(si)
	maxTries := (maxPort-minPort+1)/int(si.NrShards) + 1
	var lastErr error
	for i := 0; i < maxTries; i++ {
		conn, err := OpenLocalPortConn(ctx, addr, it(), cfg)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("opening shard connection: all local ports busy: %w", lastErr)
}

func WrapConn(conn net.Conn, version frame.ProtocolVersion) *Conn {
	c := &Conn{
		conn:    conn,
		version: version,
		closed:  make(chan struct{}),
		w: connWriter{
			conn:      conn,
			requestCh: make(chan connRequest, requestChanSize),
			version:   version,
		},
		r: connReader{
			conn:     bufio.NewReaderSize(conn, ioBufferSize),
			handlers: make(map[frame.StreamID]ResponseHandler),
			version:  version,
		},
	}
	c.r.onFatal = c.fail
	go c.w.loop()
	go c.r.loop()
	return c
}

// fail marks the connection dead: every handler still waiting on a reply
// is woken with err and the socket is torn down.
func (c *Conn) fail(err error) {
	c.closeOnce.Do(func() {
		c.fatalErr = err
		close(c.closed)
		c.conn.Close() //nolint:errcheck
		close(c.w.requestCh)

		c.r.mu.Lock()
		for _, h := range c.r.handlers {
			h <- connResponse{Err: err}
		}
		c.r.mu.Unlock()
	})
}

// Close tears the connection down cleanly.
func (c *Conn) Close() {
	c.fail(fmt.Errorf("connection closed"))
}

// Addr returns the remote address this connection was dialed to.
func (c *Conn) Addr() string { return c.addr }

func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *Conn) heartbeatLoop() {
	t := time.NewTicker(c.heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.heartbeatInterval)
			_, err := c.sendRequest(ctx, &request.Options{})
			cancel()
			if err != nil {
				c.fail(fmt.Errorf("heartbeat: %w", err))
				return
			}
		}
	}
}

func (c *Conn) startup(ctx context.Context, cfg ConnConfig) error {
	opts := frame.StartupOptions{"CQL_VERSION": "3.0.0"}
	if comp := cfg.Compression; comp != nil {
		opts["COMPRESSION"] = comp.Name()
	}

	resp, err := c.sendRequest(ctx, &request.Startup{Options: opts})
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	switch r := resp.(type) {
	case *response.Ready:
		return nil
	case *response.Authenticate:
		return c.authenticate(ctx, r, cfg)
	default:
		return responseAsError(resp)
	}
}

func (c *Conn) authenticate(ctx context.Context, auth *response.Authenticate, cfg ConnConfig) error {
	token := append([]byte{0}, []byte(cfg.Username)...)
	token = append(token, 0)
	token = append(token, []byte(cfg.Password)...)

	resp, err := c.sendRequest(ctx, &request.AuthResponse{Token: token})
	if err != nil {
		return fmt.Errorf("auth response: %w", err)
	}

	switch resp.(type) {
	case *response.AuthSuccess:
		return nil
	default:
		return responseAsError(resp)
	}
}

// SetKeyspace serializes concurrent USE requests: only one is ever
// in-flight, and whichever call enters last wins (every caller observes
// the same eventually-agreed keyspace).
func (c *Conn) SetKeyspace(ctx context.Context, keyspace string) error {
	c.keyspaceMu.Lock()
	defer c.keyspaceMu.Unlock()

	if c.keyspace == keyspace {
		return nil
	}

	stmt := Statement{Content: "USE " + quoteIdent(keyspace), Consistency: frame.ONE}
	if _, err := c.Query(ctx, stmt, nil); err != nil {
		return fmt.Errorf("set keyspace %q: %w", keyspace, err)
	}
	c.keyspace = keyspace
	return nil
}

func quoteIdent(s string) string { return "\"" + s + "\"" }

func (c *Conn) sendRequest(ctx context.Context, req frame.Request) (frame.Response, error) {
	h := make(ResponseHandler, 1)

	streamID, err := c.r.setHandler(h)
	if err != nil {
		return nil, fmt.Errorf("allocate stream id: %w", err)
	}

	c.w.submit(connRequest{Request: req, StreamID: streamID, Handler: h})

	select {
	case resp := <-h:
		c.r.freeHandler(streamID)
		return resp.Response, resp.Err
	case <-ctx.Done():
		c.r.freeHandler(streamID)
		return nil, ctx.Err()
	case <-c.closed:
		return nil, c.fatalErr
	}
}

// Query runs a plain CQL statement.
func (c *Conn) Query(ctx context.Context, stmt Statement, pagingState []byte) (QueryResult, error) {
	q := &request.Query{Content: stmt.Content, Params: stmt.queryParams(pagingState)}
	resp, err := c.sendRequest(ctx, q)
	if err != nil {
		return QueryResult{}, err
	}
	return makeQueryResult(resp, stmt.Metadata)
}

// AsyncQuery submits a plain CQL statement and returns immediately; the
// caller receives the result on handler.
func (c *Conn) AsyncQuery(stmt Statement, pagingState []byte, handler ResponseHandler) {
	q := &request.Query{Content: stmt.Content, Params: stmt.queryParams(pagingState)}
	streamID, err := c.r.setHandler(handler)
	if err != nil {
		handler <- connResponse{Err: err}
		return
	}
	c.w.submit(connRequest{Request: q, StreamID: streamID, Handler: handler})
}

// Prepare asks the server to parse and cache stmt.Content, returning a
// Statement with PreparedMetadata and the routing-key column indices
// filled in.
func (c *Conn) Prepare(ctx context.Context, stmt Statement) (Statement, error) {
	resp, err := c.sendRequest(ctx, &request.Prepare{Content: stmt.Content})
	if err != nil {
		return Statement{}, err
	}

	p, ok := resp.(*response.PreparedResult)
	if !ok {
		return Statement{}, responseAsError(resp)
	}

	out := stmt
	out.ID = p.ID
	out.Metadata = &p.ResultMetadata
	out.bindMetadata = &p.PreparedMetadata
	out.Values = make([]frame.Value, len(p.PreparedMetadata.Columns))
	for i := range p.PreparedMetadata.Columns {
		out.Values[i].Type = &p.PreparedMetadata.Columns[i].Type
	}
	out.PkIndexes = make([]int, len(p.PreparedMetadata.PKIndices))
	for i, idx := range p.PreparedMetadata.PKIndices {
		out.PkIndexes[i] = int(idx)
	}
	out.PkCnt = len(out.PkIndexes)
	return out, nil
}

// Execute runs a previously prepared statement.
func (c *Conn) Execute(ctx context.Context, stmt Statement, pagingState []byte) (QueryResult, error) {
	e := &request.Execute{ID: stmt.ID, Params: stmt.queryParams(pagingState)}
	resp, err := c.sendRequest(ctx, e)
	if err != nil {
		return QueryResult{}, err
	}
	return makeQueryResult(resp, stmt.Metadata)
}

// AsyncExecute submits an EXECUTE request and returns immediately.
func (c *Conn) AsyncExecute(stmt Statement, pagingState []byte, handler ResponseHandler) {
	e := &request.Execute{ID: stmt.ID, Params: stmt.queryParams(pagingState)}
	streamID, err := c.r.setHandler(handler)
	if err != nil {
		handler <- connResponse{Err: err}
		return
	}
	c.w.submit(connRequest{Request: e, StreamID: streamID, Handler: handler})
}

// Batch sends the BATCH request b.
func (c *Conn) Batch(ctx context.Context, b *request.Batch) (QueryResult, error) {
	resp, err := c.sendRequest(ctx, b)
	if err != nil {
		return QueryResult{}, err
	}
	return makeQueryResult(resp, nil)
}

// Register subscribes the connection to the given event types; delivered
// events are forwarded to onEvent, which is installed before the REGISTER
// request is sent (the reader goroutine is already running by then).
func (c *Conn) Register(ctx context.Context, events frame.StringList, onEvent func(*response.Event)) error {
	c.r.onEvent = onEvent
	resp, err := c.sendRequest(ctx, &request.Register{EventTypes: events})
	if err != nil {
		return err
	}
	if _, ok := resp.(*response.Ready); !ok {
		return responseAsError(resp)
	}
	return nil
}

// InFlight reports the number of stream ids currently allocated, used by
// ConnPool.LeastBusyConn to pick the least loaded connection.
func (c *Conn) InFlight() int {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	return c.r.alloc.InUse()
}
