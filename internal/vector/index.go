package vector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/knowling/internal/embedding"
)

var (
	// ErrVectorIndex wraps every failure of the vector engine or the embedding model.
	ErrVectorIndex = errors.New("vector index error")
	// ErrEmbedding is returned when the embedding model fails. It is also an ErrVectorIndex.
	ErrEmbedding = fmt.Errorf("%w: embedding failed", ErrVectorIndex)
)

// Document is anything the index can mirror: an ID, the text to embed and its timestamps.
type Document interface {
	GetID() string
	GetText() string
	GetCreated() int64
	GetModified() int64
}

// Index embeds documents and keeps their vectors in an Engine.
type Index struct {
	engine     Engine
	embedder   embedding.Embedder
	dimensions int
	logger     *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(x *Index) {
		x.logger = l
	}
}

// NewIndex builds an index over engine. dimensions must agree with the embedder.
func NewIndex(engine Engine, embedder embedding.Embedder, dimensions int, opts ...Option) (*Index, error) {
	if engine == nil || embedder == nil {
		return nil, fmt.Errorf("engine and embedder are required")
	}
	if got := embedder.Dimensions(); got != dimensions {
		return nil, fmt.Errorf("embedder produces %d dimensions, index configured for %d", got, dimensions)
	}
	x := &Index{
		engine:     engine,
		embedder:   embedder,
		dimensions: dimensions,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Dimensions returns the vector dimension every stored record has.
func (x *Index) Dimensions() int {
	return x.dimensions
}

// Embed computes one vector per text. A vector of the wrong dimension means the model and
// configuration disagree, and Embed panics.
func (x *Index) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrEmbedding, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != x.dimensions {
			panic(fmt.Sprintf("embedding %d has dimension %d, expected %d", i, len(v), x.dimensions))
		}
	}
	return vectors, nil
}

// Upsert embeds each document's text and replaces any record with the same ID.
func (x *Index) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.GetText()
		ids[i] = d.GetID()
	}
	vectors, err := x.Embed(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]Record, len(docs))
	for i, d := range docs {
		records[i] = Record{
			ID:       d.GetID(),
			Text:     d.GetText(),
			Vector:   vectors[i],
			Created:  d.GetCreated(),
			Modified: d.GetModified(),
		}
	}
	if err := x.engine.Delete(ctx, ids); err != nil {
		return fmt.Errorf("%w: delete before insert: %w", ErrVectorIndex, err)
	}
	if err := x.engine.Insert(ctx, records); err != nil {
		return fmt.Errorf("%w: insert: %w", ErrVectorIndex, err)
	}
	x.logger.Debug("upserted embeddings", zap.Int("count", len(records)))
	return nil
}

// Delete removes the records with the given IDs. Missing IDs are not an error.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := x.engine.Delete(ctx, ids); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrVectorIndex, err)
	}
	return nil
}

// Nearest embeds queryText and returns up to limit hits ordered by ascending distance.
// A non-empty excludeID never appears in the result.
func (x *Index) Nearest(ctx context.Context, queryText, excludeID string, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	vectors, err := x.Embed(ctx, []string{queryText})
	if err != nil {
		return nil, err
	}
	query := vectors[0]

	if fs, ok := x.engine.(FilteredSearcher); ok && excludeID != "" {
		hits, err := fs.NearestExcluding(ctx, query, excludeID, limit)
		if err != nil {
			return nil, fmt.Errorf("%w: nearest: %w", ErrVectorIndex, err)
		}
		return hits, nil
	}

	fetch := limit
	if excludeID != "" {
		fetch++
	}
	hits, err := x.engine.Nearest(ctx, query, fetch)
	if err != nil {
		return nil, fmt.Errorf("%w: nearest: %w", ErrVectorIndex, err)
	}
	filtered := hits[:0]
	for _, h := range hits {
		if h.ID != excludeID || excludeID == "" {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}

// Reset removes every record.
func (x *Index) Reset(ctx context.Context) error {
	if err := x.engine.DeleteAll(ctx); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrVectorIndex, err)
	}
	return nil
}

// Count returns the number of stored records.
func (x *Index) Count(ctx context.Context) (int, error) {
	n, err := x.engine.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrVectorIndex, err)
	}
	return n, nil
}

// Close closes the engine. The embedder belongs to the caller.
func (x *Index) Close() error {
	return x.engine.Close()
}
