// Package catalog is the in-memory content metadata registry.
package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/Borislavv/go-ash-edge/model"
)

type Memory struct {
	mu    sync.RWMutex
	items map[model.ContentID]model.ContentItem
}

func New(items ...model.ContentItem) *Memory {
	m := &Memory{items: make(map[model.ContentID]model.ContentItem, len(items))}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

// Upsert registers or replaces item.
func (m *Memory) Upsert(item model.ContentItem) {
	m.mu.Lock()
	m.items[item.ID] = item
	m.mu.Unlock()
}

// Item returns the metadata of id.
func (m *Memory) Item(_ context.Context, id model.ContentID) (model.ContentItem, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	return it, ok, nil
}

// Catalog returns every item ordered by id.
func (m *Memory) Catalog(ctx context.Context) ([]model.ContentItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]model.ContentItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
