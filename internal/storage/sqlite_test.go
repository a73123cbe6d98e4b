package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/knowling/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_CRUD(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	note := &models.Note{ID: "n1", Text: "first", CreatedAt: 100, ModifiedAt: 100}
	if err := store.AddNote(ctx, note); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetNote(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Text != "first" || got.CreatedAt != 100 {
		t.Fatalf("got %+v", got)
	}
	if got.Categories == nil || len(got.Categories) != 0 {
		t.Errorf("expected empty category set, got %v", got.Categories)
	}

	note.Text = "updated"
	note.ModifiedAt = 200
	if err := store.UpdateNoteText(ctx, note); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetNote(ctx, "n1")
	if got.Text != "updated" || got.ModifiedAt != 200 || got.CreatedAt != 100 {
		t.Errorf("got %+v", got)
	}

	if err := store.DeleteNote(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	got, err = store.GetNote(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
	if err := store.DeleteNote(ctx, "n1"); err != nil {
		t.Errorf("deleting a missing note should not fail: %v", err)
	}
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	if err := store.AddNote(ctx, &models.Note{ID: "dup", Text: "a"}); err != nil {
		t.Fatal(err)
	}
	err := store.AddNote(ctx, &models.Note{ID: "dup", Text: "b"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSQLiteStorage_AddNotesIsAtomic(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	notes := []*models.Note{
		{ID: "a", Text: "a"},
		{ID: "b", Text: "b"},
		{ID: "a", Text: "again"},
	}
	if err := store.AddNotes(ctx, notes); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	count, err := store.CountNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected rollback, got %d notes", count)
	}
}

func TestSQLiteStorage_UpdateMissing(t *testing.T) {
	store := newTestStorage(t)
	err := store.UpdateNoteText(context.Background(), &models.Note{ID: "missing", Text: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_GetAllNotesOrdered(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	for _, n := range []*models.Note{
		{ID: "c", Text: "third", CreatedAt: 30},
		{ID: "a", Text: "first", CreatedAt: 10},
		{ID: "b", Text: "second", CreatedAt: 20},
	} {
		if err := store.AddNote(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	all, err := store.GetAllNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, all[i].ID)
		}
	}

	some, err := store.GetNotesByIDs(ctx, []string{"c", "unknown", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(some) != 2 {
		t.Errorf("expected 2 notes, got %d", len(some))
	}
	none, err := store.GetNotesByIDs(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no notes, got %d", len(none))
	}
}

func TestSQLiteStorage_CategoryCaseInsensitive(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	work, err := store.GetOrCreateCategory(ctx, "Work")
	if err != nil {
		t.Fatal(err)
	}
	again, err := store.GetOrCreateCategory(ctx, "  work ")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != work.ID {
		t.Errorf("expected same category, got %s and %s", work.ID, again.ID)
	}
	if again.Label != "Work" {
		t.Errorf("expected original casing, got %q", again.Label)
	}
	count, _ := store.CountCategories(ctx)
	if count != 1 {
		t.Errorf("expected 1 category, got %d", count)
	}

	got, err := store.GetCategoryByID(ctx, work.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Label != "Work" {
		t.Errorf("got %+v", got)
	}
	missing, err := store.GetCategoryByID(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil, got %+v", missing)
	}
}

func TestSQLiteStorage_ReconcileAndCascade(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	note := &models.Note{ID: "n1", Text: "tagged"}
	if err := store.AddNote(ctx, note); err != nil {
		t.Fatal(err)
	}
	zeta, _ := store.GetOrCreateCategory(ctx, "zeta")
	alpha, _ := store.GetOrCreateCategory(ctx, "Alpha")
	note.AddCategory(*zeta)
	note.AddCategory(*alpha)
	if err := store.ReconcileNoteCategories(ctx, note); err != nil {
		t.Fatal(err)
	}

	got, _ := store.GetNote(ctx, "n1")
	if len(got.Categories) != 2 {
		t.Fatalf("expected 2 categories, got %v", got.Categories)
	}
	if got.Categories[0].Label != "Alpha" || got.Categories[1].Label != "zeta" {
		t.Errorf("unexpected order %v", got.Categories)
	}

	note.RemoveCategory(zeta.ID)
	if err := store.ReconcileNoteCategories(ctx, note); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetNote(ctx, "n1")
	if len(got.Categories) != 1 || got.Categories[0].ID != alpha.ID {
		t.Errorf("expected only Alpha, got %v", got.Categories)
	}

	if err := store.DeleteNote(ctx, "n1"); err != nil {
		t.Fatal(err)
	}
	var rows int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM note_category`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Errorf("expected association rows to cascade, got %d", rows)
	}
	count, _ := store.CountCategories(ctx)
	if count != 2 {
		t.Errorf("categories should survive note deletion, got %d", count)
	}
}

func TestSQLiteStorage_StaleCategoryIgnored(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	note := &models.Note{ID: "n1", Text: "x"}
	if err := store.AddNote(ctx, note); err != nil {
		t.Fatal(err)
	}
	cat, _ := store.GetOrCreateCategory(ctx, "gone")
	note.AddCategory(*cat)
	if err := store.ReconcileNoteCategories(ctx, note); err != nil {
		t.Fatal(err)
	}

	for _, stmt := range []string{
		`PRAGMA foreign_keys = OFF`,
		`DELETE FROM categories`,
		`PRAGMA foreign_keys = ON`,
	} {
		if _, err := store.db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.GetNote(ctx, "n1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Categories) != 0 {
		t.Errorf("expected stale association to be skipped, got %v", got.Categories)
	}
}

func TestSQLiteStorage_DeleteAllAndMemory(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.AddNotes(ctx, []*models.Note{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.GetOrCreateCategory(ctx, "keep"); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteAllNotes(ctx); err != nil {
		t.Fatal(err)
	}
	notes, _ := store.CountNotes(ctx)
	cats, _ := store.CountCategories(ctx)
	if notes != 0 || cats != 1 {
		t.Errorf("expected 0 notes and 1 category, got %d and %d", notes, cats)
	}
}

func TestSQLiteStorage_ClosedReportsPersistence(t *testing.T) {
	store, err := NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	store.Close()
	if _, err := store.GetAllNotes(context.Background()); !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}
