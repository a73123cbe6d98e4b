package vector

import "fmt"

// IndexType represents the type of vector engine to use.
type IndexType string

const (
	// IndexTypeSQLite stores vectors in a SQLite database inside the index directory.
	IndexTypeSQLite IndexType = "sqlite"
	// IndexTypeMemory keeps vectors in memory and snapshots them to the index directory on close.
	IndexTypeMemory IndexType = "memory"
)

// NewEngine creates an engine of the specified type rooted at dir.
// Supported types: "sqlite" (default), "memory".
func NewEngine(indexType, dir string, dimensions int) (Engine, error) {
	switch IndexType(indexType) {
	case IndexTypeSQLite, "":
		return NewSQLiteEngine(dir, dimensions)
	case IndexTypeMemory:
		return NewMemoryEngine(dir, dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: sqlite, memory)", indexType)
	}
}
