package store

import (
	"sync/atomic"

	"github.com/Borislavv/go-ash-edge/model"
	"github.com/zeebo/xxh3"
)

// Node is one edge namespace: a fixed set of shards plus capacity accounting.
// Usage is reserved with a CAS loop before an entry is written, so the sum
// of resident sizes never exceeds capacity regardless of which shards race.
type Node struct {
	id       model.EdgeID
	region   string
	capacity int64

	used  atomic.Int64
	count atomic.Int64

	hits    atomic.Int64
	misses  atomic.Int64
	evicted atomic.Int64
	expired atomic.Int64

	shards []*Shard
	mask   uint64
	iter   atomic.Uint64
}

func newNode(n model.EdgeNode, shards int) *Node {
	node := &Node{
		id:       n.ID,
		region:   n.Region,
		capacity: n.Capacity,
		shards:   make([]*Shard, shards),
		mask:     uint64(shards - 1),
	}
	for i := range node.shards {
		node.shards[i] = newShard(uint64(i))
	}
	return node
}

func (n *Node) shard(content model.ContentID) *Shard {
	return n.shards[xxh3.HashString(string(content))&n.mask]
}

func (n *Node) nextShard() *Shard {
	return n.shards[n.iter.Add(1)&n.mask]
}

// reserve accounts delta more units unless that would overflow capacity.
func (n *Node) reserve(delta int64) bool {
	for {
		cur := n.used.Load()
		if cur+delta > n.capacity {
			return false
		}
		if n.used.CompareAndSwap(cur, cur+delta) {
			return true
		}
	}
}

func (n *Node) release(delta int64) {
	n.used.Add(-delta)
}

func (n *Node) snapshot() model.EdgeNode {
	return model.EdgeNode{ID: n.id, Region: n.region, Capacity: n.capacity, Usage: n.used.Load()}
}

func (n *Node) stats() model.Stats {
	return model.Stats{
		Edge:      n.id,
		Region:    n.region,
		Count:     n.count.Load(),
		BytesUsed: n.used.Load(),
		Capacity:  n.capacity,
		Hits:      n.hits.Load(),
		Misses:    n.misses.Load(),
		Evicted:   n.evicted.Load(),
		Expired:   n.expired.Load(),
	}
}
