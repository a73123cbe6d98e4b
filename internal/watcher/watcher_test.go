package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) count(suffix string) int {
	n := 0
	for _, p := range r.snapshot() {
		if strings.HasSuffix(p, suffix) {
			n++
		}
	}
	return n
}

func isMarkdown(name string) bool {
	return strings.HasSuffix(name, ".md")
}

func startWatcher(t *testing.T, roots []string, recursive bool, rec *recorder) *Watcher {
	t.Helper()
	w := NewWatcher(roots, recursive, isMarkdown, rec.record, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, nil, true, &recorder{})

	require.NoError(t, w.AddDirectory(dir, false))
	require.NoError(t, w.AddDirectory(dir, false))
	dirs := w.Directories()
	require.Len(t, dirs, 1)
	require.Equal(t, filepath.Clean(dir), filepath.Clean(dirs[0]))

	require.NoError(t, w.RemoveDirectory(dir))
	require.Empty(t, w.Directories())
}

func TestWatcher_DebounceAndPatternFilter(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, false, rec)

	note := filepath.Join(dir, "inbox.md")
	require.NoError(t, writeFile(note, "first"))
	require.NoError(t, writeFile(note, "first draft"))
	require.NoError(t, writeFile(filepath.Join(dir, "ignored.txt"), "x"))

	require.Eventually(t, func() bool { return rec.count("inbox.md") == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 1, rec.count("inbox.md"), "writes within the debounce window are delivered once")
	require.Zero(t, rec.count("ignored.txt"))
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "a.md"), "hello"))
	require.NoError(t, writeFile(filepath.Join(dir, "ignore.xyz"), "x"))
	require.NoError(t, mkdirAll(filepath.Join(dir, "sub")))
	require.NoError(t, writeFile(filepath.Join(dir, "sub", "nested.md"), "nested"))

	rec := &recorder{}
	w := startWatcher(t, []string{dir}, false, rec)
	w.SyncExistingFiles()
	w.SyncExistingFiles()

	got := rec.snapshot()
	require.Len(t, got, 1, "unchanged files are delivered once and subdirectories are skipped when not recursive")
	require.True(t, strings.HasSuffix(got[0], "a.md"))
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	startWatcher(t, []string{root}, true, &recorder{})

	_, err := os.Stat(root)
	require.NoError(t, err)
}

func TestWatcher_HandleNewDirectory_recursive(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, true, rec)

	nested := filepath.Join(dir, "level1", "level2")
	require.NoError(t, mkdirAll(nested))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, writeFile(filepath.Join(nested, "deep.md"), "deep content"))
	require.NoError(t, writeFile(filepath.Join(nested, "skip.xyz"), "skip"))

	require.Eventually(t, func() bool { return rec.count("deep.md") >= 1 }, 2*time.Second, 20*time.Millisecond)
	require.Zero(t, rec.count("skip.xyz"))
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.md", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
