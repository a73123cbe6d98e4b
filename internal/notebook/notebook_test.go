package notebook

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperjump/knowling/internal/embedding"
	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/internal/storage"
	"github.com/hyperjump/knowling/internal/vector"
)

const testDims = 64

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNotebook(t *testing.T, opts ...Option) (*Notebook, *storage.SQLiteStorage, *vector.Index) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	engine, err := vector.NewEngine("sqlite", "", testDims)
	require.NoError(t, err)
	index, err := vector.NewIndex(engine, embedding.NewHashEmbedder(testDims), testDims)
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		store.Close()
	})
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, index, opts...), store, index
}

func TestUpsert_CreateRoundTrip(t *testing.T) {
	nb, _, index := newTestNotebook(t)
	ctx := context.Background()

	for _, text := range []string{"hello", "", "multi\nline\ntext", "ünïcödé ✓"} {
		note, err := nb.Upsert(ctx, "", text)
		require.NoError(t, err)
		require.NotEmpty(t, note.ID)
		require.Equal(t, fixedNow.Unix(), note.CreatedAt)
		require.Equal(t, note.CreatedAt, note.ModifiedAt)

		got, err := nb.GetNoteByID(ctx, note.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		require.Equal(t, text, got.Text)
	}

	count, err := index.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestUpsert_Update(t *testing.T) {
	now := fixedNow
	nb, _, _ := newTestNotebook(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	note, err := nb.Upsert(ctx, "", "draft")
	require.NoError(t, err)
	note, err = nb.AddCategoryToNote(ctx, note.ID, "Work")
	require.NoError(t, err)

	now = now.Add(time.Hour)
	updated, err := nb.Upsert(ctx, note.ID, "final")
	require.NoError(t, err)
	require.Equal(t, note.ID, updated.ID)
	require.Equal(t, "final", updated.Text)
	require.Equal(t, fixedNow.Unix(), updated.CreatedAt)
	require.Equal(t, now.Unix(), updated.ModifiedAt)
	require.Len(t, updated.Categories, 1)

	status, err := nb.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.Notes)
	require.Equal(t, int64(1), status.Embeddings)
}

func TestUpsert_UnknownID(t *testing.T) {
	nb, _, _ := newTestNotebook(t)
	_, err := nb.Upsert(context.Background(), "nope", "text")
	require.ErrorIs(t, err, ErrNoteNotFound)
}

func TestDeleteNote(t *testing.T) {
	nb, _, index := newTestNotebook(t)
	ctx := context.Background()

	keep, err := nb.Upsert(ctx, "", "keep me")
	require.NoError(t, err)
	gone, err := nb.Upsert(ctx, "", "delete me")
	require.NoError(t, err)
	_, err = nb.AddCategoryToNote(ctx, gone.ID, "temp")
	require.NoError(t, err)

	require.NoError(t, nb.DeleteNote(ctx, gone.ID))

	got, err := nb.GetNoteByID(ctx, gone.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	notes, err := nb.GetNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, keep.ID, notes[0].ID)

	count, err := index.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, nb.DeleteNote(ctx, gone.ID))
}

func TestAddCategoryToNote_Idempotent(t *testing.T) {
	nb, store, _ := newTestNotebook(t)
	ctx := context.Background()

	note, err := nb.Upsert(ctx, "", "tagged note")
	require.NoError(t, err)

	_, err = nb.AddCategoryToNote(ctx, note.ID, "Work")
	require.NoError(t, err)
	note, err = nb.AddCategoryToNote(ctx, note.ID, "work")
	require.NoError(t, err)

	require.Len(t, note.Categories, 1)
	require.Equal(t, "work", strings.ToLower(note.Categories[0].Label))
	require.Equal(t, "Work", note.Categories[0].Label)

	stored, err := nb.GetNoteByID(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, stored.Categories, 1)

	count, err := store.CountCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestAddCategoryToNote_Errors(t *testing.T) {
	nb, _, _ := newTestNotebook(t)
	ctx := context.Background()

	_, err := nb.AddCategoryToNote(ctx, "missing", "Work")
	require.ErrorIs(t, err, ErrNoteNotFound)

	note, err := nb.Upsert(ctx, "", "x")
	require.NoError(t, err)
	_, err = nb.AddCategoryToNote(ctx, note.ID, "   ")
	require.ErrorIs(t, err, ErrInvalidCategory)
}

func TestRemoveCategoryFromNote(t *testing.T) {
	nb, _, _ := newTestNotebook(t)
	ctx := context.Background()

	note, err := nb.Upsert(ctx, "", "x")
	require.NoError(t, err)
	note, err = nb.AddCategoryToNote(ctx, note.ID, "a")
	require.NoError(t, err)
	note, err = nb.AddCategoryToNote(ctx, note.ID, "b")
	require.NoError(t, err)
	require.Len(t, note.Categories, 2)
	aID := note.Categories[0].ID

	note, err = nb.RemoveCategoryFromNote(ctx, note.ID, aID)
	require.NoError(t, err)
	require.Len(t, note.Categories, 1)
	require.Equal(t, "b", note.Categories[0].Label)

	// Not attached: nothing changes.
	note, err = nb.RemoveCategoryFromNote(ctx, note.ID, aID)
	require.NoError(t, err)
	require.Len(t, note.Categories, 1)

	// Unknown category ids are tolerated.
	note, err = nb.RemoveCategoryFromNote(ctx, note.ID, "stale-id")
	require.NoError(t, err)
	require.Len(t, note.Categories, 1)

	stored, err := nb.GetNoteByID(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, note.Categories, stored.Categories)

	_, err = nb.RemoveCategoryFromNote(ctx, "missing", aID)
	require.ErrorIs(t, err, ErrNoteNotFound)
}

func TestReset(t *testing.T) {
	nb, _, _ := newTestNotebook(t)
	ctx := context.Background()

	for _, text := range []string{"one", "two", "three"} {
		note, err := nb.Upsert(ctx, "", text)
		require.NoError(t, err)
		_, err = nb.AddCategoryToNote(ctx, note.ID, "shared")
		require.NoError(t, err)
	}
	require.NoError(t, nb.Reset(ctx))

	status, err := nb.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, models.Status{Notes: 0, Categories: 1, Embeddings: 0}, *status)
}

type failingEngine struct {
	vector.Engine
}

func (f failingEngine) Insert(context.Context, []vector.Record) error {
	return errors.New("disk full")
}

func TestUpsert_VectorFailureLeavesRelationalRow(t *testing.T) {
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer store.Close()
	mem, err := vector.NewMemoryEngine("", testDims)
	require.NoError(t, err)
	index, err := vector.NewIndex(failingEngine{mem}, embedding.NewHashEmbedder(testDims), testDims)
	require.NoError(t, err)
	nb := New(store, index)
	ctx := context.Background()

	_, err = nb.Upsert(ctx, "", "orphan")
	require.ErrorIs(t, err, vector.ErrVectorIndex)

	status, err := nb.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), status.Notes)
	require.Equal(t, int64(0), status.Embeddings)
}

func TestMutations_IgnoreCallerCancellation(t *testing.T) {
	nb, _, _ := newTestNotebook(t)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, stop := context.WithDeadline(context.Background(), fixedNow)
	defer stop()

	note, err := nb.Upsert(cancelled, "", "hello world")
	require.NoError(t, err)
	_, err = nb.Upsert(expired, "", "second note")
	require.NoError(t, err)
	_, err = nb.Upsert(expired, note.ID, "hello again")
	require.NoError(t, err)
	_, err = nb.AddCategoryToNote(cancelled, note.ID, "Work")
	require.NoError(t, err)

	status, err := nb.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), status.Notes)
	require.Equal(t, status.Notes, status.Embeddings)

	require.NoError(t, nb.DeleteNote(cancelled, note.ID))
	status, err = nb.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), status.Notes)
	require.Equal(t, status.Notes, status.Embeddings)

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.md": "alpha", "b.md": "beta"})
	count, err := nb.ImportNotes(expired, dir)
	require.NoError(t, err)
	require.Equal(t, 2, count)
	status, err = nb.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), status.Notes)
	require.Equal(t, status.Notes, status.Embeddings)
}

func TestConcurrentOperations(t *testing.T) {
	nb, _, _ := newTestNotebook(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			note, err := nb.Upsert(ctx, "", "concurrent note")
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := nb.AddCategoryToNote(ctx, note.ID, "Shared"); err != nil {
				t.Error(err)
			}
			if _, err := nb.GetNotes(ctx); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	status, err := nb.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(8), status.Notes)
	require.Equal(t, int64(8), status.Embeddings)
	require.Equal(t, int64(1), status.Categories)
}
