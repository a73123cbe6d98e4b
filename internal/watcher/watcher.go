// Package watcher imports note files dropped into inbox directories, using fsnotify with debouncing.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches inbox directories and calls onFile once a matching file has settled.
// A file is handed over again only when its size or modification time changed.
type Watcher struct {
	match     func(name string) bool
	onFile    func(path string)
	recursive bool
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	inboxes []inbox
	pending map[string]*time.Timer
	seen    map[string]fileStamp
	done    chan struct{}
	closed  sync.Once
}

// inbox is a watched root and the directories registered with fsnotify for it.
type inbox struct {
	root string
	dirs []string
}

type fileStamp struct {
	size    int64
	modTime time.Time
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for watcher debug events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must stay unchanged before it is handed over.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher over roots. match receives a file's base name and decides
// whether it is a note file (nil matches everything). onFile is called with the file path.
func NewWatcher(roots []string, recursive bool, match func(name string) bool, onFile func(path string), opts ...WatcherOption) *Watcher {
	if match == nil {
		match = func(string) bool { return true }
	}
	w := &Watcher{
		match:     match,
		onFile:    onFile,
		recursive: recursive,
		debounce:  defaultDebounce,
		logger:    zap.NewNop(),
		pending:   map[string]*time.Timer{},
		seen:      map[string]fileStamp{},
		done:      make(chan struct{}),
	}
	for _, r := range roots {
		w.inboxes = append(w.inboxes, inbox{root: filepath.Clean(r)})
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start registers every root, creating missing ones, and processes events until ctx is
// cancelled or Stop is called. Starting twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fw != nil {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fw = fw
	for i := range w.inboxes {
		dirs, err := w.watchRootLocked(w.inboxes[i].root)
		if err != nil {
			_ = fw.Close()
			w.fw = nil
			return err
		}
		w.inboxes[i].dirs = dirs
	}
	w.logger.Debug("watcher started", zap.Strings("roots", w.rootsLocked()), zap.Bool("recursive", w.recursive))
	go w.loop(ctx, fw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.watched(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		if t := w.pending[path]; t != nil {
			t.Stop()
			delete(w.pending, path)
		}
		delete(w.seen, path)
		w.mu.Unlock()
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		w.enterDirectory(path)
		return
	}
	if w.match(filepath.Base(path)) {
		w.schedule(path)
	}
}

// enterDirectory follows a directory created or moved under a recursive root and hands
// over the note files already in it.
func (w *Watcher) enterDirectory(dir string) {
	if !w.recursive {
		return
	}
	w.mu.Lock()
	fw := w.fw
	w.mu.Unlock()
	if fw == nil {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if err := fw.Add(path); err != nil {
			w.logger.Debug("watcher failed to add directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	w.scan(dir)
}

func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, in := range w.inboxes {
		if inDir(in.root, path) {
			return true
		}
	}
	return false
}

// inDir reports whether path is dir or lies beneath it.
func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t := w.pending[path]; t != nil {
		t.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.deliver(path)
	})
}

// deliver calls onFile unless the file is gone, not regular, or unchanged since last delivery.
func (w *Watcher) deliver(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	stamp := fileStamp{size: info.Size(), modTime: info.ModTime()}

	w.mu.Lock()
	prev, ok := w.seen[path]
	if ok && prev.size == stamp.size && prev.modTime.Equal(stamp.modTime) {
		w.mu.Unlock()
		return
	}
	w.seen[path] = stamp
	w.mu.Unlock()

	w.logger.Debug("watcher handing over file", zap.String("path", path))
	if w.onFile != nil {
		w.onFile(path)
	}
}

// AddDirectory starts watching root and, if syncExisting is set, hands over the files
// already in it. Adding a watched root or adding before Start does nothing.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fw == nil || w.indexLocked(abs) >= 0 {
		return nil
	}
	dirs, err := w.watchRootLocked(abs)
	if err != nil {
		return err
	}
	w.inboxes = append(w.inboxes, inbox{root: abs, dirs: dirs})
	w.logger.Debug("watcher directory added", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		go w.scan(abs)
	}
	return nil
}

// RemoveDirectory stops watching root. Notes already imported from it are kept.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexLocked(abs)
	if w.fw == nil || i < 0 {
		return nil
	}
	for _, d := range w.inboxes[i].dirs {
		_ = w.fw.Remove(d)
	}
	w.inboxes = append(w.inboxes[:i], w.inboxes[i+1:]...)
	w.logger.Debug("watcher directory removed", zap.String("path", abs))
	return nil
}

func (w *Watcher) indexLocked(root string) int {
	for i, in := range w.inboxes {
		if in.root == root {
			return i
		}
	}
	return -1
}

// watchRootLocked creates root if needed and registers it, plus its subdirectories when
// recursive. It returns the registered directories.
func (w *Watcher) watchRootLocked(root string) ([]string, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	if !w.recursive {
		return []string{root}, w.fw.Add(root)
	}
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return err
		}
		if err := w.fw.Add(path); err != nil {
			return err
		}
		dirs = append(dirs, path)
		return nil
	})
	return dirs, err
}

// scan delivers every matching file under root, descending only when recursive.
func (w *Watcher) scan(root string) {
	w.logger.Debug("watcher scanning directory", zap.String("root", root))
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != root && !w.recursive:
			return filepath.SkipDir
		case !d.IsDir() && w.match(d.Name()):
			w.deliver(path)
		}
		return nil
	})
}

// Directories returns the watched root directories in the order they were added.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rootsLocked()
}

func (w *Watcher) rootsLocked() []string {
	roots := make([]string, len(w.inboxes))
	for i, in := range w.inboxes {
		roots[i] = in.root
	}
	return roots
}

// SyncExistingFiles hands over every matching file already present in the watched roots.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.scan(root)
	}
}

// Stop cancels pending deliveries and closes the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fw.Close()
	w.fw = nil
	w.mu.Unlock()
	w.closed.Do(func() { close(w.done) })
}
