package transport

import (
	"context"
	"crypto/sha256"
	"sync"

	"golang.org/x/sync/singleflight"
)

// PreparedInfo is what the cache remembers about a statement once it has
// been prepared on at least one host.
type PreparedInfo struct {
	ID           []byte
	Metadata     Statement
	preparedOnMu sync.Mutex
	preparedOn   map[string]bool
}

func (p *PreparedInfo) markPrepared(addr string) {
	p.preparedOnMu.Lock()
	if p.preparedOn == nil {
		p.preparedOn = make(map[string]bool)
	}
	p.preparedOn[addr] = true
	p.preparedOnMu.Unlock()
}

func (p *PreparedInfo) isPreparedOn(addr string) bool {
	p.preparedOnMu.Lock()
	defer p.preparedOnMu.Unlock()
	return p.preparedOn[addr]
}

// PreparedCache deduplicates PREPARE requests for the same statement text
// across concurrent callers and remembers, per host, whether it has already
// been prepared there, so execution can re-prepare on demand after an
// UNPREPARED response instead of eagerly pushing it everywhere.
type PreparedCache struct {
	mu    sync.RWMutex
	byKey map[string]*PreparedInfo

	group singleflight.Group
}

func newPreparedCache() *PreparedCache {
	return &PreparedCache{byKey: make(map[string]*PreparedInfo)}
}

func fingerprint(keyspace, content string) string {
	h := sha256.Sum256([]byte(keyspace + "\x00" + content))
	return string(h[:])
}

func (c *PreparedCache) get(key string) (*PreparedInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.byKey[key]
	return p, ok
}

// Prepare returns the cached PreparedInfo for stmt, preparing it on conn
// first if this is the first time this statement text has been seen.
// Concurrent callers for the same statement share a single PREPARE request.
func (c *PreparedCache) Prepare(ctx context.Context, conn *Conn, addr, keyspace string, stmt Statement) (*PreparedInfo, error) {
	key := fingerprint(keyspace, stmt.Content)

	if p, ok := c.get(key); ok {
		if !p.isPreparedOn(addr) {
			if err := c.prepareOn(ctx, conn, addr, stmt); err != nil {
				return nil, err
			}
			p.markPrepared(addr)
		}
		return p, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		prepared, err := conn.Prepare(ctx, stmt)
		if err != nil {
			return nil, err
		}
		p := &PreparedInfo{ID: prepared.ID, Metadata: prepared}
		p.markPrepared(addr)

		c.mu.Lock()
		c.byKey[key] = p
		c.mu.Unlock()
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PreparedInfo), nil
}

func (c *PreparedCache) prepareOn(ctx context.Context, conn *Conn, addr string, stmt Statement) error {
	_, err := conn.Prepare(ctx, stmt)
	return err
}

// Reprepare re-issues a PREPARE for stmt on conn unconditionally, used after
// a host responds UNPREPARED for an id this cache already believed it had
// pushed there (the host likely evicted it, e.g. after a restart). It does
// not consult or change isPreparedOn for any other host.
func (c *PreparedCache) Reprepare(ctx context.Context, conn *Conn, addr, keyspace string, stmt Statement) error {
	if err := c.prepareOn(ctx, conn, addr, stmt); err != nil {
		return err
	}
	key := fingerprint(keyspace, stmt.Content)
	if p, ok := c.get(key); ok {
		p.markPrepared(addr)
	}
	return nil
}

// Invalidate drops a statement's cache entry so the next Prepare call starts
// over. An UNPREPARED reply is handled by Reprepare, not by Invalidate.
func (c *PreparedCache) Invalidate(keyspace, content string) {
	c.mu.Lock()
	delete(c.byKey, fingerprint(keyspace, content))
	c.mu.Unlock()
}
