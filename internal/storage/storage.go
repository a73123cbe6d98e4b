// Package storage defines the relational persistence interface for notes and categories.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/knowling/internal/models"
)

var (
	// ErrPersistence wraps every failure reported by the relational engine.
	ErrPersistence = errors.New("persistence error")
	// ErrNotFound is returned when an update targets a note that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when a note is inserted with an ID that already exists.
	ErrDuplicateID = errors.New("duplicate id")
)

// Storage holds note attributes and category tagging: everything the vector index cannot hold.
type Storage interface {
	// Note operations
	AddNote(ctx context.Context, note *models.Note) error
	AddNotes(ctx context.Context, notes []*models.Note) error
	UpdateNoteText(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	GetNotesByIDs(ctx context.Context, ids []string) ([]*models.Note, error)
	GetAllNotes(ctx context.Context) ([]*models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	DeleteAllNotes(ctx context.Context) error

	// Category operations
	GetOrCreateCategory(ctx context.Context, label string) (*models.Category, error)
	GetCategoryByID(ctx context.Context, id string) (*models.Category, error)
	ReconcileNoteCategories(ctx context.Context, note *models.Note) error

	// Stats
	CountNotes(ctx context.Context) (int64, error)
	CountCategories(ctx context.Context) (int64, error)

	Close() error
}
