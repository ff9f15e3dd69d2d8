// Package entry holds the cache entry record of the edge store.
//
// Identity, size, payload, ttl and timestamps are only mutated while the
// owning shard is exclusively locked. Access counters are atomics because a
// hit updates them under the shared lock.
package entry

import (
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-ash-edge/model"
)

type Entry struct {
	edge    model.EdgeID
	content model.ContentID
	size    int64
	payload atomic.Pointer[[]byte]

	ttl       atomic.Int64 // nanoseconds
	createdAt atomic.Int64 // unix nano
	expiresAt atomic.Int64 // unix nano

	accessCount atomic.Int64
	lastAccess  atomic.Int64 // unix nano
	queued      atomic.Bool  // whether the entry sits in the expiry queue
}

// New creates an entry created at now (unix nano) and expiring after ttl.
func New(edge model.EdgeID, content model.ContentID, size int64, payload []byte, ttl time.Duration, now int64) *Entry {
	e := &Entry{edge: edge, content: content, size: size}
	e.payload.Store(&payload)
	e.setLifetime(ttl, now)
	return e
}

func (e *Entry) Edge() model.EdgeID       { return e.edge }
func (e *Entry) Content() model.ContentID { return e.content }
func (e *Entry) Size() int64              { return e.size }
func (e *Entry) TTL() time.Duration       { return time.Duration(e.ttl.Load()) }
func (e *Entry) CreatedAt() int64         { return e.createdAt.Load() }
func (e *Entry) ExpiresAt() int64         { return e.expiresAt.Load() }
func (e *Entry) AccessCount() int64       { return e.accessCount.Load() }
func (e *Entry) LastAccess() int64        { return e.lastAccess.Load() }

func (e *Entry) Payload() []byte {
	if ptr := e.payload.Load(); ptr != nil {
		return *ptr
	}
	return nil
}

// IsExpired reports whether the entry is no longer readable at now.
func (e *Entry) IsExpired(now int64) bool {
	return now >= e.expiresAt.Load()
}

// Touch accounts one hit. The recorded access time is strictly later than
// the creation time and never moves backwards.
func (e *Entry) Touch(now int64) {
	e.accessCount.Add(1)
	if floor := e.createdAt.Load() + 1; now < floor {
		now = floor
	}
	for {
		prev := e.lastAccess.Load()
		if prev >= now || e.lastAccess.CompareAndSwap(prev, now) {
			return
		}
	}
}

// Refresh overwrites payload, size and lifetime in place. Access history is kept.
// Caller must hold the shard write lock.
func (e *Entry) Refresh(size int64, payload []byte, ttl time.Duration, now int64) {
	e.size = size
	e.payload.Store(&payload)
	e.setLifetime(ttl, now)
	e.queued.Store(false)
}

// SetTTL retunes the lifetime: the entry now expires ttl after now.
// Caller must hold the shard write lock.
func (e *Entry) SetTTL(ttl time.Duration, now int64) {
	e.ttl.Store(int64(ttl))
	e.expiresAt.Store(now + int64(ttl))
	e.queued.Store(false)
}

func (e *Entry) setLifetime(ttl time.Duration, now int64) {
	e.ttl.Store(int64(ttl))
	e.createdAt.Store(now)
	e.expiresAt.Store(now + int64(ttl))
}

// MarkQueued flips the queued flag; false means it was already queued.
func (e *Entry) MarkQueued() bool { return e.queued.CompareAndSwap(false, true) }

// Unqueue clears the queued flag.
func (e *Entry) Unqueue() { e.queued.Store(false) }

// Snapshot returns a read-only copy of the entry.
func (e *Entry) Snapshot() model.CachedEntry {
	return model.CachedEntry{
		Edge:        e.edge,
		Content:     e.content,
		Size:        e.size,
		TTL:         e.TTL(),
		CreatedAt:   model.FromUnixNano(e.CreatedAt()),
		ExpiresAt:   model.FromUnixNano(e.ExpiresAt()),
		AccessCount: e.AccessCount(),
		LastAccess:  model.FromUnixNano(e.LastAccess()),
	}
}
