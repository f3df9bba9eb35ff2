package vector

import "fmt"

// IndexType selects a vector index implementation.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search with binary
	// snapshots on disk. Fine for the chunk counts a few years of daily
	// bars produce.
	IndexTypeMemory IndexType = "memory"
)

// New creates a vector index of the given type.
func New(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory)", indexType)
	}
}
