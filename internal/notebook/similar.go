package notebook

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/knowling/internal/models"
)

type similarQuery struct {
	limit        int
	threshold    float32
	limitSet     bool
	thresholdSet bool
}

// SimilarOption adjusts a single similar-note query.
type SimilarOption func(*similarQuery)

// WithLimit caps the number of nearest neighbors requested from the index.
func WithLimit(limit int) SimilarOption {
	return func(q *similarQuery) { q.limit, q.limitSet = limit, true }
}

// WithThreshold sets the distance cutoff. Only hits with distance strictly below it are kept.
func WithThreshold(threshold float32) SimilarOption {
	return func(q *similarQuery) { q.threshold, q.thresholdSet = threshold, true }
}

// SimilarParams reports the limit and threshold that opts set explicitly, nil for those left
// to the notebook defaults.
func SimilarParams(opts ...SimilarOption) (limit *int, threshold *float32) {
	var q similarQuery
	for _, opt := range opts {
		opt(&q)
	}
	if q.limitSet {
		limit = &q.limit
	}
	if q.thresholdSet {
		threshold = &q.threshold
	}
	return limit, threshold
}

// GetSimilarNotes returns notes whose embedding lies within the threshold distance of note's text,
// most similar first. note itself is never part of the result. An empty result is not an error.
func (n *Notebook) GetSimilarNotes(ctx context.Context, note *models.Note, opts ...SimilarOption) ([]models.SimilarNote, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	if note == nil {
		return nil, fmt.Errorf("%w: no note given", ErrNoteNotFound)
	}
	return n.similar(ctx, note, opts)
}

// GetSimilarNotesByID loads the note and runs GetSimilarNotes for it under the same lock.
func (n *Notebook) GetSimilarNotesByID(ctx context.Context, id string, opts ...SimilarOption) ([]models.SimilarNote, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	note, err := n.store.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	if note == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	return n.similar(ctx, note, opts)
}

func (n *Notebook) similar(ctx context.Context, note *models.Note, opts []SimilarOption) ([]models.SimilarNote, error) {
	q := similarQuery{limit: n.limit, threshold: n.threshold}
	for _, opt := range opts {
		opt(&q)
	}
	results := []models.SimilarNote{}
	if q.limit <= 0 {
		return results, nil
	}

	hits, err := n.index.Nearest(ctx, note.Text, note.ID, q.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar notes: %w", err)
	}

	// Distances are squared L2: near-duplicates sit close to 0, so the cutoff keeps the small ones.
	distances := make(map[string]float32, len(hits))
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.ID == note.ID || h.Distance >= q.threshold {
			continue
		}
		if _, seen := distances[h.ID]; seen {
			continue
		}
		distances[h.ID] = h.Distance
		ids = append(ids, h.ID)
	}
	if len(ids) == 0 {
		return results, nil
	}

	notes, err := n.store.GetNotesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load similar notes: %w", err)
	}
	resolved := make(map[string]*models.Note, len(notes))
	for _, sn := range notes {
		resolved[sn.ID] = sn
	}
	for _, id := range ids {
		sn, ok := resolved[id]
		if !ok {
			n.logger.Warn("similar note missing from store", zap.String("id", id))
			continue
		}
		results = append(results, models.SimilarNote{Note: sn, Distance: distances[id]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	return results, nil
}
