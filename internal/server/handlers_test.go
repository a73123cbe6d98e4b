package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/knowling/internal/config"
	"github.com/hyperjump/knowling/internal/embedding"
	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/internal/notebook"
	"github.com/hyperjump/knowling/internal/storage"
	"github.com/hyperjump/knowling/internal/vector"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

func newTestServer(t *testing.T, opts ...Option) (http.Handler, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "notes.db")
	cfg.Storage.VectorIndexPath = filepath.Join(dir, "vectors")
	cfg.Embedding.Dimensions = 16

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	engine, err := vector.NewEngine(cfg.Vector.IndexType, cfg.Storage.VectorIndexPath, 16)
	require.NoError(t, err)
	index, err := vector.NewIndex(engine, embedding.NewHashEmbedder(16), 16)
	require.NoError(t, err)
	t.Cleanup(func() {
		index.Close()
		store.Close()
	})
	nb := notebook.New(store, index)
	return NewServer(nb, cfg, zap.NewNop(), opts...).Router(), cfg
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out), w.Body.String())
	return out
}

func TestNoteLifecycle(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/notes", map[string]string{"text": "# First\nhello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Note](t, w)
	require.NotEmpty(t, created.ID)

	w = do(t, h, http.MethodGet, "/api/v1/notes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "# First\nhello", decode[models.Note](t, w).Text)

	w = do(t, h, http.MethodPut, "/api/v1/notes/"+created.ID, map[string]string{"text": "changed"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "changed", decode[models.Note](t, w).Text)

	w = do(t, h, http.MethodPost, "/api/v1/notes/"+created.ID+"/categories", map[string]string{"label": "Work"})
	require.Equal(t, http.StatusOK, w.Code)
	tagged := decode[models.Note](t, w)
	require.Len(t, tagged.Categories, 1)

	w = do(t, h, http.MethodDelete, "/api/v1/notes/"+created.ID+"/categories/"+tagged.Categories[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[models.Note](t, w).Categories)

	w = do(t, h, http.MethodGet, "/api/v1/notes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Notes []models.Note `json:"notes"`
		Total int           `json:"total"`
	}](t, w)
	require.Equal(t, 1, list.Total)

	w = do(t, h, http.MethodDelete, "/api/v1/notes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, "/api/v1/notes/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateNote_ClientGone(t *testing.T) {
	h, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(`{"text":"sent then gone"}`))
	r.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), r.WithContext(ctx))

	w := do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[models.Status](t, w)
	require.Equal(t, int64(1), status.Notes)
	require.Equal(t, status.Notes, status.Embeddings)
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPut, "/api/v1/notes/missing", map[string]string{"text": "x"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/notes", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/notes", map[string]string{"text": "x"})
	note := decode[models.Note](t, w)
	w = do(t, h, http.MethodPost, "/api/v1/notes/"+note.ID+"/categories", map[string]string{"label": " "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/import", map[string]string{"path": filepath.Join(t.TempDir(), "none")})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/notes/"+note.ID+"/similar?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSimilarNotes(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/notes", map[string]string{"text": "grocery list apples bread"})
	query := decode[models.Note](t, w)
	w = do(t, h, http.MethodPost, "/api/v1/notes", map[string]string{"text": "Grocery list: apples, bread"})
	twin := decode[models.Note](t, w)
	do(t, h, http.MethodPost, "/api/v1/notes", map[string]string{"text": "quarterly planning meeting"})

	w = do(t, h, http.MethodGet, "/api/v1/notes/"+query.ID+"/similar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		Results []models.SimilarNote `json:"results"`
		Total   int                  `json:"total"`
	}](t, w)
	require.Equal(t, 1, out.Total)
	require.Equal(t, twin.ID, out.Results[0].Note.ID)

	w = do(t, h, http.MethodGet, "/api/v1/notes/"+query.ID+"/similar?limit=5&threshold=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, decode[struct {
		Total int `json:"total"`
	}](t, w).Total)
}

func TestImportExportResetStatus(t *testing.T) {
	h, cfg := newTestServer(t)

	src := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte("note "+name), 0644))
	}
	w := do(t, h, http.MethodPost, "/api/v1/import", map[string]string{"path": src})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, decode[struct {
		Imported int `json:"imported"`
	}](t, w).Imported)

	target := t.TempDir()
	w = do(t, h, http.MethodPost, "/api/v1/export", map[string]string{"path": target})
	require.Equal(t, http.StatusOK, w.Code)
	exported := decode[struct {
		Exported  int    `json:"exported"`
		Directory string `json:"directory"`
	}](t, w)
	require.Equal(t, 2, exported.Exported)
	entries, err := os.ReadDir(exported.Directory)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	w = do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[struct {
		Notes          int64  `json:"notes"`
		Embeddings     int64  `json:"embeddings"`
		DiskUsageBytes *int64 `json:"disk_usage_bytes"`
		Config         struct {
			DatabasePath string `json:"database_path"`
		} `json:"config"`
	}](t, w)
	require.Equal(t, int64(2), status.Notes)
	require.Equal(t, int64(2), status.Embeddings)
	require.NotNil(t, status.DiskUsageBytes)
	require.Positive(t, *status.DiskUsageBytes)
	require.Equal(t, cfg.Storage.DatabasePath, status.Config.DatabasePath)

	w = do(t, h, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, int64(0), decode[models.Status](t, w).Notes)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestWatchDirectories_NotEnabled(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodGet, "/api/v1/watch/directories", nil)
	require.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestWatchDirectories(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/tmp/inbox"}}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	h, _ := newTestServer(t, WithWatch(mock, configPath))

	w := do(t, h, http.MethodGet, "/api/v1/watch/directories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"/tmp/inbox"}, decode[struct {
		Directories []string `json:"directories"`
	}](t, w).Directories)

	dir := t.TempDir()
	w = do(t, h, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": dir})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, mock.Directories(), 2)

	saved, err := config.Load(configPath)
	require.NoError(t, err)
	require.Contains(t, saved.Watch.Directories, dir)

	w = do(t, h, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": filepath.Join(dir, "nonexistent")})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.Directories(), 1)
}
