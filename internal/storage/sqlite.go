package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/knowling/internal/models"
)

// maxIDsPerQuery keeps IN (...) lists below SQLite's bound-parameter limit.
const maxIDsPerQuery = 500

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. Use ":memory:" for a throwaway database.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	inMemory := dbPath == ":memory:"
	if !inMemory {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" one database.
	db.SetMaxOpenConns(1)

	if !inMemory {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		created INTEGER NOT NULL,
		modified INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_created ON notes(created);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_label ON categories(label COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS note_category (
		note_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		PRIMARY KEY (note_id, category_id),
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
		FOREIGN KEY (category_id) REFERENCES categories(id)
	);

	CREATE INDEX IF NOT EXISTS idx_note_category_category ON note_category(category_id);
	`
	_, err := db.Exec(schema)
	return err
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

func isPrimaryKeyViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertNote(ctx context.Context, ex execer, note *models.Note) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO notes (id, content, created, modified) VALUES (?, ?, ?, ?)`,
		note.ID, note.Text, note.CreatedAt, note.ModifiedAt,
	)
	if isPrimaryKeyViolation(err) {
		return fmt.Errorf("%w: note %s", ErrDuplicateID, note.ID)
	}
	if err != nil {
		return persistErr("add note", err)
	}
	if len(note.Categories) > 0 {
		return replaceNoteCategories(ctx, ex, note)
	}
	return nil
}

func replaceNoteCategories(ctx context.Context, ex execer, note *models.Note) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM note_category WHERE note_id = ?`, note.ID); err != nil {
		return persistErr("clear note categories", err)
	}
	for _, c := range note.Categories {
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO note_category (note_id, category_id) VALUES (?, ?)`, note.ID, c.ID,
		); err != nil {
			return persistErr("insert note category", err)
		}
	}
	return nil
}

// AddNote inserts a new note. Returns ErrDuplicateID if the ID is already present.
func (s *SQLiteStorage) AddNote(ctx context.Context, note *models.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin", err)
	}
	defer tx.Rollback()
	if err := insertNote(ctx, tx, note); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

// AddNotes inserts multiple notes in one transaction; either all are stored or none.
func (s *SQLiteStorage) AddNotes(ctx context.Context, notes []*models.Note) error {
	if len(notes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin", err)
	}
	defer tx.Rollback()
	for _, note := range notes {
		if err := insertNote(ctx, tx, note); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

// UpdateNoteText updates the text and modified timestamp of an existing note.
// Categories are untouched; see ReconcileNoteCategories.
func (s *SQLiteStorage) UpdateNoteText(ctx context.Context, note *models.Note) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE notes SET content = ?, modified = ? WHERE id = ?`,
		note.Text, note.ModifiedAt, note.ID,
	)
	if err != nil {
		return persistErr("update note", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return persistErr("update note", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: note %s", ErrNotFound, note.ID)
	}
	return nil
}

const selectNotes = `
	SELECT n.id, n.content, n.created, n.modified, c.id, c.label
	FROM notes n
	LEFT JOIN note_category nc ON n.id = nc.note_id
	LEFT JOIN categories c ON nc.category_id = c.id`

// queryNotes hydrates notes with their categories from the join. Association rows whose
// category no longer exists come back with NULL columns and are skipped.
func (s *SQLiteStorage) queryNotes(ctx context.Context, where string, args ...interface{}) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx, selectNotes+where+` ORDER BY n.created, n.id`, args...)
	if err != nil {
		return nil, persistErr("query notes", err)
	}
	defer rows.Close()

	var notes []*models.Note
	byID := make(map[string]*models.Note)
	for rows.Next() {
		var (
			row             models.Note
			catID, catLabel sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.Text, &row.CreatedAt, &row.ModifiedAt, &catID, &catLabel); err != nil {
			return nil, persistErr("scan note", err)
		}
		note, ok := byID[row.ID]
		if !ok {
			note = &row
			note.Categories = []models.Category{}
			byID[note.ID] = note
			notes = append(notes, note)
		}
		if catID.Valid && catLabel.Valid {
			note.AddCategory(models.Category{ID: catID.String, Label: catLabel.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("query notes", err)
	}
	return notes, nil
}

// GetNote returns the note with its categories, or nil when it does not exist.
func (s *SQLiteStorage) GetNote(ctx context.Context, id string) (*models.Note, error) {
	notes, err := s.queryNotes(ctx, ` WHERE n.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return notes[0], nil
}

// GetNotesByIDs returns one fully hydrated note per existing ID. Unknown IDs are omitted.
func (s *SQLiteStorage) GetNotesByIDs(ctx context.Context, ids []string) ([]*models.Note, error) {
	var notes []*models.Note
	for start := 0; start < len(ids); start += maxIDsPerQuery {
		end := start + maxIDsPerQuery
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		found, err := s.queryNotes(ctx, ` WHERE n.id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, err
		}
		notes = append(notes, found...)
	}
	return notes, nil
}

// GetAllNotes returns every note with its categories, oldest first.
func (s *SQLiteStorage) GetAllNotes(ctx context.Context) ([]*models.Note, error) {
	return s.queryNotes(ctx, "")
}

// DeleteNote removes a note by ID. Association rows cascade. Deleting a missing note is not an error.
func (s *SQLiteStorage) DeleteNote(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return persistErr("delete note", err)
	}
	return nil
}

// DeleteAllNotes removes every note and association row. Categories are kept.
func (s *SQLiteStorage) DeleteAllNotes(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return persistErr("delete all notes", err)
	}
	return nil
}

// GetOrCreateCategory looks up a category by label ignoring case and creates it if absent.
// An existing category keeps the casing it was first created with.
func (s *SQLiteStorage) GetOrCreateCategory(ctx context.Context, label string) (*models.Category, error) {
	label = strings.TrimSpace(label)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistErr("begin", err)
	}
	defer tx.Rollback()

	var cat models.Category
	err = tx.QueryRowContext(ctx,
		`SELECT id, label FROM categories WHERE LOWER(label) = LOWER(?) LIMIT 1`, label,
	).Scan(&cat.ID, &cat.Label)
	if err == nil {
		return &cat, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, persistErr("find category", err)
	}

	cat = models.Category{ID: uuid.New().String(), Label: label}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO categories (id, label) VALUES (?, ?)`, cat.ID, cat.Label,
	); err != nil {
		return nil, persistErr("create category", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, persistErr("commit", err)
	}
	return &cat, nil
}

// GetCategoryByID returns the category, or nil when it does not exist.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id string) (*models.Category, error) {
	var cat models.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label FROM categories WHERE id = ?`, id,
	).Scan(&cat.ID, &cat.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get category", err)
	}
	return &cat, nil
}

// ReconcileNoteCategories replaces all association rows of the note with its in-memory category set.
func (s *SQLiteStorage) ReconcileNoteCategories(ctx context.Context, note *models.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin", err)
	}
	defer tx.Rollback()
	if err := replaceNoteCategories(ctx, tx, note); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit", err)
	}
	return nil
}

// CountNotes returns the total number of notes.
func (s *SQLiteStorage) CountNotes(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count); err != nil {
		return 0, persistErr("count notes", err)
	}
	return count, nil
}

// CountCategories returns the total number of categories.
func (s *SQLiteStorage) CountCategories(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return 0, persistErr("count categories", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
