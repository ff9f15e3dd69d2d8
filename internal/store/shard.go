package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Borislavv/go-ash-edge/internal/shared/queue"
	"github.com/Borislavv/go-ash-edge/internal/store/entry"
	"github.com/Borislavv/go-ash-edge/model"
)

const expiredQueueCap = 4096

// Shard is an independently locked segment of one edge namespace.
// Every mutation of an entry identity, size or lifetime happens under its write lock.
type Shard struct {
	sync.RWMutex
	items map[model.ContentID]*entry.Entry

	id  uint64
	len int64 // atomic

	expired queue.Queue[model.ContentID]
}

func newShard(id uint64) *Shard {
	sh := &Shard{id: id, items: make(map[model.ContentID]*entry.Entry)}
	sh.expired.Init(expiredQueueCap)
	return sh
}

func (sh *Shard) ID() uint64 { return sh.id }
func (sh *Shard) Len() int64 { return atomic.LoadInt64(&sh.len) }

// insertUnlocked stores a new entry. Caller holds the write lock.
func (sh *Shard) insertUnlocked(e *entry.Entry) {
	sh.items[e.Content()] = e
	atomic.AddInt64(&sh.len, 1)
}

// removeUnlocked drops the entry of content. Caller holds the write lock.
func (sh *Shard) removeUnlocked(content model.ContentID) (*entry.Entry, bool) {
	e, ok := sh.items[content]
	if ok {
		delete(sh.items, content)
		atomic.AddInt64(&sh.len, -1)
	}
	return e, ok
}

// clear removes every entry and returns the freed size and count.
func (sh *Shard) clear() (freed, items int64) {
	sh.Lock()
	defer sh.Unlock()
	for _, e := range sh.items {
		freed += e.Size()
	}
	items = int64(len(sh.items))
	sh.items = make(map[model.ContentID]*entry.Entry)
	atomic.StoreInt64(&sh.len, 0)
	return freed, items
}

// walkR iterates entries under the shared lock. The callback must be lightweight.
func (sh *Shard) walkR(ctx context.Context, fn func(*entry.Entry) bool) {
	sh.RLock()
	defer sh.RUnlock()
	for _, e := range sh.items {
		if ctx.Err() != nil {
			return
		}
		if !fn(e) {
			return
		}
	}
}
