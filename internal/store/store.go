// Package store implements the edge cache store: one TTL-indexed namespace
// per edge node, sharded by content id, with capacity accounting per node.
// There is no lock spanning nodes or shards; registering a node swaps a
// copy-on-write node table.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Borislavv/go-ash-edge/internal/shared/clock"
	"github.com/Borislavv/go-ash-edge/internal/store/entry"
	"github.com/Borislavv/go-ash-edge/model"
)

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrNotFound         = errors.New("entry not found")
	ErrUnknownEdge      = errors.New("unknown edge")
	ErrInvalidTTL       = errors.New("ttl must be positive")
	ErrEdgeExists       = errors.New("edge already registered")
)

const defaultShards = 64

// Lookup is the result of a successful Get.
type Lookup struct {
	Payload []byte
	Entry   model.CachedEntry
}

type Store struct {
	clock  clock.Clock
	logger *slog.Logger
	shards int

	mu    sync.Mutex // serializes node registration only
	nodes atomic.Pointer[map[model.EdgeID]*Node]
}

// New creates a store with the given nodes registered. shards is rounded up to a power of two.
func New(clk clock.Clock, logger *slog.Logger, shards int, nodes ...model.EdgeNode) (*Store, error) {
	if shards <= 0 {
		shards = defaultShards
	}
	p := 1
	for p < shards {
		p <<= 1
	}
	s := &Store{clock: clk, logger: logger, shards: p}
	empty := make(map[model.EdgeID]*Node)
	s.nodes.Store(&empty)

	for _, n := range nodes {
		if err := s.AddNode(n); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddNode registers an edge namespace.
func (s *Store) AddNode(n model.EdgeNode) error {
	if n.ID == "" || n.Capacity <= 0 {
		return fmt.Errorf("add node %q: id and positive capacity are required", n.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := *s.nodes.Load()
	if _, ok := cur[n.ID]; ok {
		return fmt.Errorf("add node %q: %w", n.ID, ErrEdgeExists)
	}
	next := make(map[model.EdgeID]*Node, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[n.ID] = newNode(n, s.shards)
	s.nodes.Store(&next)

	s.logger.Info("edge node registered", "edge", n.ID, "region", n.Region, "capacity", n.Capacity)
	return nil
}

func (s *Store) node(edge model.EdgeID) (*Node, error) {
	if n, ok := (*s.nodes.Load())[edge]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownEdge, edge)
}

// Get returns the entry of (edge, content) and accounts a hit. An expired
// entry is reported as a miss and its usage is reclaimed on the spot.
func (s *Store) Get(edge model.EdgeID, content model.ContentID) (Lookup, bool) {
	n, err := s.node(edge)
	if err != nil {
		return Lookup{}, false
	}
	now := s.clock.UnixNano()
	sh := n.shard(content)

	sh.RLock()
	e, ok := sh.items[content]
	if ok && !e.IsExpired(now) {
		e.Touch(now)
		res := Lookup{Payload: e.Payload(), Entry: e.Snapshot()}
		sh.RUnlock()
		n.hits.Add(1)
		return res, true
	}
	sh.RUnlock()

	if ok {
		s.reclaimIfExpired(n, sh, content, now)
	}
	n.misses.Add(1)
	return Lookup{}, false
}

// Contains reports whether a readable entry exists, without touching it.
func (s *Store) Contains(edge model.EdgeID, content model.ContentID) bool {
	n, err := s.node(edge)
	if err != nil {
		return false
	}
	sh := n.shard(content)
	sh.RLock()
	defer sh.RUnlock()
	e, ok := sh.items[content]
	return ok && !e.IsExpired(s.clock.UnixNano())
}

// Put stores payload for (edge, item). The accounted size is item.Size, or the
// payload length when the item carries no size. An existing entry is
// overwritten in place: payload, ttl and lifetime are reset, access history is
// kept. Put never truncates: if the entry does not fit the remaining free
// capacity it returns ErrCapacityExceeded and leaves the store untouched.
func (s *Store) Put(edge model.EdgeID, item model.ContentItem, payload []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("put %s@%s: %w", item.ID, edge, ErrInvalidTTL)
	}
	n, err := s.node(edge)
	if err != nil {
		return fmt.Errorf("put %s: %w", item.ID, err)
	}
	size := item.Size
	if size <= 0 {
		size = int64(len(payload))
	}
	now := s.clock.UnixNano()
	sh := n.shard(item.ID)

	sh.Lock()
	defer sh.Unlock()

	old, exists := sh.items[item.ID]
	if exists && old.IsExpired(now) {
		sh.removeUnlocked(item.ID)
		n.release(old.Size())
		n.count.Add(-1)
		n.expired.Add(1)
		old, exists = nil, false
	}

	var delta = size
	if exists {
		delta = size - old.Size()
	}
	if delta > 0 && !n.reserve(delta) {
		return fmt.Errorf("put %s@%s (size %d, free %d): %w", item.ID, edge, size, n.capacity-n.used.Load(), ErrCapacityExceeded)
	} else if delta < 0 {
		n.release(-delta)
	}

	if exists {
		old.Refresh(size, payload, ttl, now)
		return nil
	}
	sh.insertUnlocked(entry.New(edge, item.ID, size, payload, ttl, now))
	n.count.Add(1)
	return nil
}

// Evict removes (edge, content). Absent and expired entries yield ErrNotFound.
func (s *Store) Evict(edge model.EdgeID, content model.ContentID) error {
	n, err := s.node(edge)
	if err != nil {
		return fmt.Errorf("evict %s: %w", content, err)
	}
	now := s.clock.UnixNano()
	sh := n.shard(content)

	sh.Lock()
	defer sh.Unlock()

	e, ok := sh.items[content]
	if !ok {
		return fmt.Errorf("evict %s@%s: %w", content, edge, ErrNotFound)
	}
	sh.removeUnlocked(content)
	n.release(e.Size())
	n.count.Add(-1)
	if e.IsExpired(now) {
		n.expired.Add(1)
		return fmt.Errorf("evict %s@%s: %w", content, edge, ErrNotFound)
	}
	n.evicted.Add(1)
	return nil
}

// UpdateTTL retunes a readable entry so that it expires ttl from now.
func (s *Store) UpdateTTL(edge model.EdgeID, content model.ContentID, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("update ttl %s@%s: %w", content, edge, ErrInvalidTTL)
	}
	n, err := s.node(edge)
	if err != nil {
		return fmt.Errorf("update ttl %s: %w", content, err)
	}
	now := s.clock.UnixNano()
	sh := n.shard(content)

	sh.Lock()
	defer sh.Unlock()

	e, ok := sh.items[content]
	if !ok || e.IsExpired(now) {
		return fmt.Errorf("update ttl %s@%s: %w", content, edge, ErrNotFound)
	}
	e.SetTTL(ttl, now)
	return nil
}

// Stats returns counters of one edge namespace.
func (s *Store) Stats(edge model.EdgeID) (model.Stats, error) {
	n, err := s.node(edge)
	if err != nil {
		return model.Stats{}, err
	}
	return n.stats(), nil
}

// AllStats returns stats of every edge ordered by edge id.
func (s *Store) AllStats() []model.Stats {
	nodes := s.sortedNodes()
	out := make([]model.Stats, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.stats())
	}
	return out
}

// Nodes returns a capacity/usage snapshot of every edge ordered by id.
func (s *Store) Nodes() []model.EdgeNode {
	nodes := s.sortedNodes()
	out := make([]model.EdgeNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.snapshot())
	}
	return out
}

// Node returns the capacity/usage snapshot of one edge.
func (s *Store) Node(edge model.EdgeID) (model.EdgeNode, bool) {
	n, err := s.node(edge)
	if err != nil {
		return model.EdgeNode{}, false
	}
	return n.snapshot(), true
}

// Entries returns snapshots of all readable entries of edge. Expired entries
// are skipped and queued for background reclaim.
func (s *Store) Entries(ctx context.Context, edge model.EdgeID) ([]model.CachedEntry, error) {
	n, err := s.node(edge)
	if err != nil {
		return nil, err
	}
	now := s.clock.UnixNano()
	out := make([]model.CachedEntry, 0, n.count.Load())
	for _, sh := range n.shards {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		sh.walkR(ctx, func(e *entry.Entry) bool {
			if e.IsExpired(now) {
				enqueueExpired(sh, e)
				return true
			}
			out = append(out, e.Snapshot())
			return true
		})
	}
	return out, nil
}

// Resident returns the readable entries of every edge keyed by edge id.
func (s *Store) Resident(ctx context.Context) (map[model.EdgeID][]model.CachedEntry, error) {
	nodes := s.sortedNodes()
	out := make(map[model.EdgeID][]model.CachedEntry, len(nodes))
	for _, n := range nodes {
		entries, err := s.Entries(ctx, n.id)
		if err != nil {
			return nil, err
		}
		out[n.id] = entries
	}
	return out, nil
}

// Clear drops every entry of edge.
func (s *Store) Clear(edge model.EdgeID) error {
	n, err := s.node(edge)
	if err != nil {
		return err
	}
	for _, sh := range n.shards {
		freed, items := sh.clear()
		n.release(freed)
		n.count.Add(-items)
	}
	s.logger.Info("edge node cleared", "edge", edge)
	return nil
}

func (s *Store) sortedNodes() []*Node {
	m := *s.nodes.Load()
	out := make([]*Node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (s *Store) reclaimIfExpired(n *Node, sh *Shard, content model.ContentID, now int64) bool {
	sh.Lock()
	defer sh.Unlock()
	e, ok := sh.items[content]
	if !ok || !e.IsExpired(now) {
		return false
	}
	sh.removeUnlocked(content)
	n.release(e.Size())
	n.count.Add(-1)
	n.expired.Add(1)
	return true
}
