// Package vector keeps the embedding-side mirror of notes and answers nearest-neighbor queries.
package vector

import "context"

// Record is one stored embedding. ID mirrors the note ID and Text the note text at embedding time.
type Record struct {
	ID       string
	Text     string
	Vector   []float32
	Created  int64
	Modified int64
}

// Hit is one nearest-neighbor result. Distance is squared Euclidean: lower is more similar and
// the range is not bounded to [0, 1].
type Hit struct {
	ID       string
	Text     string
	Distance float32
}

// Engine is the vector store behind an Index. Engines have no update: callers delete then insert.
type Engine interface {
	Insert(ctx context.Context, records []Record) error
	// Delete removes records by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ids []string) error
	DeleteAll(ctx context.Context) error
	// Nearest returns up to limit records ordered by ascending distance to query.
	Nearest(ctx context.Context, query []float32, limit int) ([]Hit, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// FilteredSearcher is implemented by engines that can exclude a record inside the query itself.
type FilteredSearcher interface {
	NearestExcluding(ctx context.Context, query []float32, excludeID string, limit int) ([]Hit, error)
}
