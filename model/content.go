package model

// ContentID identifies a content item across the whole tier.
type ContentID string

// EdgeID identifies an edge node.
type EdgeID string

// ContentItem is immutable content metadata. Size is expressed in the same
// units as EdgeNode capacity.
type ContentItem struct {
	ID       ContentID `yaml:"id"`
	Size     int64     `yaml:"size"`
	Category string    `yaml:"category"`
	Type     string    `yaml:"type"`
}

// EdgeNode is a capacity/usage snapshot of one edge. Usage is derived from
// the entries resident at the node.
type EdgeNode struct {
	ID       EdgeID
	Region   string
	Capacity int64
	Usage    int64
}

// Free returns the remaining capacity, never negative.
func (n EdgeNode) Free() int64 {
	if free := n.Capacity - n.Usage; free > 0 {
		return free
	}
	return 0
}

// Above reports whether usage is strictly above mark*capacity.
func (n EdgeNode) Above(mark float64) bool {
	return float64(n.Usage) > mark*float64(n.Capacity)
}
