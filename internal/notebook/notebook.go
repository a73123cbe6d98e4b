// Package notebook keeps the relational store and the vector index in lockstep and answers
// similar-note queries. Every exported method holds one lock for its whole duration.
package notebook

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/knowling/internal/extract"
	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/internal/storage"
	"github.com/hyperjump/knowling/internal/vector"
)

const (
	defaultLimit           = 3
	defaultThreshold       = float32(0.01)
	defaultImportPattern   = "*.md"
	defaultExportExtension = ".md"
)

// Notebook is the single entry point for note operations.
type Notebook struct {
	mu sync.Mutex

	store     storage.Storage
	index     *vector.Index
	extractor *extract.Extractor

	limit           int
	threshold       float32
	importPattern   string
	exportExtension string
	now             func() time.Time
	logger          *zap.Logger
}

// Option configures a Notebook.
type Option func(*Notebook)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(n *Notebook) { n.logger = l }
}

// WithClock replaces time.Now for note timestamps and export directory names.
func WithClock(now func() time.Time) Option {
	return func(n *Notebook) { n.now = now }
}

// WithDefaultLimit sets the result limit used when a similar-note query does not pass one.
func WithDefaultLimit(limit int) Option {
	return func(n *Notebook) {
		if limit > 0 {
			n.limit = limit
		}
	}
}

// WithDefaultThreshold sets the distance threshold used when a similar-note query does not pass one.
func WithDefaultThreshold(threshold float32) Option {
	return func(n *Notebook) {
		if threshold > 0 {
			n.threshold = threshold
		}
	}
}

// WithImportPattern sets the glob a file name must match to be imported.
func WithImportPattern(pattern string) Option {
	return func(n *Notebook) {
		if pattern != "" {
			n.importPattern = pattern
		}
	}
}

// WithExportExtension sets the extension of exported note files.
func WithExportExtension(ext string) Option {
	return func(n *Notebook) {
		if ext != "" {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			n.exportExtension = ext
		}
	}
}

// New creates a Notebook over store and index. The notebook does not close them.
func New(store storage.Storage, index *vector.Index, opts ...Option) *Notebook {
	n := &Notebook{
		store:           store,
		index:           index,
		extractor:       extract.NewExtractor(),
		limit:           defaultLimit,
		threshold:       defaultThreshold,
		importPattern:   defaultImportPattern,
		exportExtension: defaultExportExtension,
		now:             time.Now,
		logger:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// lock takes the notebook lock and detaches ctx from the caller's cancellation and deadline.
// Once an operation holds the lock it always runs against both stores to completion.
func (n *Notebook) lock(ctx context.Context) context.Context {
	n.mu.Lock()
	return context.WithoutCancel(ctx)
}

// Upsert creates a note when id is empty, otherwise replaces the text of the existing note.
// The relational write happens first and the embedding second; if the second fails the
// error is returned and the stores stay diverged.
func (n *Notebook) Upsert(ctx context.Context, id, text string) (*models.Note, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	if id == "" {
		return n.create(ctx, text)
	}

	note, err := n.store.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	if note == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, id)
	}
	note.Text = text
	note.ModifiedAt = n.now().Unix()
	if err := n.store.UpdateNoteText(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	if err := n.index.Upsert(ctx, []vector.Document{note}); err != nil {
		return nil, fmt.Errorf("failed to embed note %s: %w", note.ID, err)
	}
	n.logger.Info("note updated", zap.String("id", note.ID))
	return note, nil
}

func (n *Notebook) create(ctx context.Context, text string) (*models.Note, error) {
	note := n.newNote(text)
	if err := n.store.AddNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to store note: %w", err)
	}
	if err := n.index.Upsert(ctx, []vector.Document{note}); err != nil {
		return nil, fmt.Errorf("failed to embed note %s: %w", note.ID, err)
	}
	n.logger.Info("note created", zap.String("id", note.ID))
	return note, nil
}

func (n *Notebook) newNote(text string) *models.Note {
	now := n.now().Unix()
	return &models.Note{
		ID:         uuid.New().String(),
		Text:       text,
		Categories: []models.Category{},
		CreatedAt:  now,
		ModifiedAt: now,
	}
}

// GetNotes returns every note with its categories, oldest first.
func (n *Notebook) GetNotes(ctx context.Context) ([]*models.Note, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	notes, err := n.store.GetAllNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

// GetNoteByID returns the note, or nil when it does not exist.
func (n *Notebook) GetNoteByID(ctx context.Context, id string) (*models.Note, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	note, err := n.store.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	return note, nil
}

// DeleteNote removes the note from the relational store, then its embedding.
// If the relational delete fails the embedding is left alone. Deleting a missing note is not an error.
func (n *Notebook) DeleteNote(ctx context.Context, id string) error {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	if err := n.store.DeleteNote(ctx, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if err := n.index.Delete(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete embedding %s: %w", id, err)
	}
	n.logger.Info("note deleted", zap.String("id", id))
	return nil
}

// AddCategoryToNote tags the note with the category labelled label, creating the category
// if needed. Adding a category the note already carries changes nothing.
func (n *Notebook) AddCategoryToNote(ctx context.Context, noteID, label string) (*models.Note, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: empty label", ErrInvalidCategory)
	}
	category, err := n.store.GetOrCreateCategory(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category: %w", err)
	}
	note, err := n.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	if note == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, noteID)
	}
	if !note.AddCategory(*category) {
		return note, nil
	}
	if err := n.store.ReconcileNoteCategories(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to save categories: %w", err)
	}
	n.logger.Info("category added",
		zap.String("note_id", note.ID),
		zap.String("category_id", category.ID),
		zap.String("label", category.Label))
	return note, nil
}

// RemoveCategoryFromNote detaches the category from the note. A category ID that no longer
// resolves is still stripped from the note so its association rows never point at nothing.
func (n *Notebook) RemoveCategoryFromNote(ctx context.Context, noteID, categoryID string) (*models.Note, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	note, err := n.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load note: %w", err)
	}
	if note == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoteNotFound, noteID)
	}
	category, err := n.store.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve category: %w", err)
	}

	if category == nil {
		n.logger.Warn("removing unknown category",
			zap.String("note_id", note.ID),
			zap.String("category_id", categoryID))
		note.RemoveCategory(categoryID)
	} else if !note.RemoveCategory(category.ID) {
		return note, nil
	}
	if err := n.store.ReconcileNoteCategories(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to save categories: %w", err)
	}
	n.logger.Info("category removed",
		zap.String("note_id", note.ID),
		zap.String("category_id", categoryID))
	return note, nil
}

// Reset deletes every note and every embedding. Categories are kept.
func (n *Notebook) Reset(ctx context.Context) error {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	if err := n.store.DeleteAllNotes(ctx); err != nil {
		return fmt.Errorf("failed to delete notes: %w", err)
	}
	if err := n.index.Reset(ctx); err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	n.logger.Info("notebook reset")
	return nil
}

// Status reports the size of both stores. Differing note and embedding counts mean the
// stores have diverged.
func (n *Notebook) Status(ctx context.Context) (*models.Status, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	notes, err := n.store.CountNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count notes: %w", err)
	}
	categories, err := n.store.CountCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	embeddings, err := n.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return &models.Status{
		Notes:      notes,
		Categories: categories,
		Embeddings: int64(embeddings),
	}, nil
}
