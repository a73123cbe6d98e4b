package notebook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/knowling/internal/models"
	"github.com/hyperjump/knowling/internal/vector"
)

const (
	exportDirPrefix  = "knowling_export_"
	exportTimeLayout = "20060102_150405"
	maxParallelReads = 8
)

// ExportNotes writes every note to its own file inside a new timestamped directory under
// targetDir. It returns the number of notes written and the directory created.
func (n *Notebook) ExportNotes(ctx context.Context, targetDir string) (int, string, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	info, err := os.Stat(targetDir)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	if !info.IsDir() {
		return 0, "", fmt.Errorf("%w: not a directory: %s", ErrFileAccess, targetDir)
	}

	notes, err := n.store.GetAllNotes(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("failed to list notes: %w", err)
	}

	exportDir, err := n.makeExportDir(targetDir)
	if err != nil {
		return 0, "", err
	}
	for i, title := range ExportTitles(notes) {
		path := filepath.Join(exportDir, title+n.exportExtension)
		if err := os.WriteFile(path, []byte(notes[i].Text), 0644); err != nil {
			return i, exportDir, fmt.Errorf("%w: %w", ErrFileAccess, err)
		}
	}
	n.logger.Info("notes exported", zap.Int("count", len(notes)), zap.String("dir", exportDir))
	return len(notes), exportDir, nil
}

// makeExportDir creates knowling_export_<timestamp> under parent, adding a counter when the
// name is already taken.
func (n *Notebook) makeExportDir(parent string) (string, error) {
	base := filepath.Join(parent, exportDirPrefix+n.now().Format(exportTimeLayout))
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %w", ErrFileAccess, err)
		}
		dir = fmt.Sprintf("%s_%d", base, i)
	}
}

// ImportNotes creates one note per file in sourceDir whose name matches the import pattern.
// Subdirectories are not descended into. All notes are stored before any is embedded.
func (n *Notebook) ImportNotes(ctx context.Context, sourceDir string) (int, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	info, err := os.Stat(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("%w: not a directory: %s", ErrFileAccess, sourceDir)
	}
	if !doublestar.ValidatePattern(n.importPattern) {
		return 0, fmt.Errorf("invalid import pattern %q", n.importPattern)
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	var paths []string
	for _, e := range entries {
		if !n.matchesImport(e.Name()) {
			continue
		}
		path := filepath.Join(sourceDir, e.Name())
		// Resolve symlinks so only regular files are imported.
		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		paths = append(paths, path)
	}

	texts, err := n.readFiles(ctx, paths)
	if err != nil {
		return 0, err
	}
	notes := make([]*models.Note, len(texts))
	for i, text := range texts {
		notes[i] = n.newNote(text)
	}
	if err := n.storeAndEmbed(ctx, notes); err != nil {
		return 0, err
	}
	n.logger.Info("notes imported", zap.Int("count", len(notes)), zap.String("dir", sourceDir))
	return len(notes), nil
}

// ImportFile creates a note from a single file. The file name must match the import pattern.
func (n *Notebook) ImportFile(ctx context.Context, path string) (*models.Note, error) {
	ctx = n.lock(ctx)
	defer n.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrFileAccess, path)
	}
	if !n.matchesImport(filepath.Base(path)) {
		return nil, fmt.Errorf("%w: %s does not match %q", ErrFileAccess, path, n.importPattern)
	}
	text, err := n.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileAccess, err)
	}
	note, err := n.create(ctx, text)
	if err != nil {
		return nil, err
	}
	n.logger.Info("file imported", zap.String("path", path), zap.String("id", note.ID))
	return note, nil
}

// MatchesImport reports whether a file name would be picked up by an import.
func (n *Notebook) MatchesImport(name string) bool {
	return n.matchesImport(name)
}

func (n *Notebook) matchesImport(name string) bool {
	ok, err := doublestar.Match(n.importPattern, name)
	return err == nil && ok
}

func (n *Notebook) storeAndEmbed(ctx context.Context, notes []*models.Note) error {
	if len(notes) == 0 {
		return nil
	}
	if err := n.store.AddNotes(ctx, notes); err != nil {
		return fmt.Errorf("failed to store notes: %w", err)
	}
	docs := make([]vector.Document, len(notes))
	for i, note := range notes {
		docs[i] = note
	}
	if err := n.index.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("failed to embed notes: %w", err)
	}
	return nil
}

// readFiles extracts the text of paths concurrently and returns it in the same order.
// Plain text files are read verbatim.
func (n *Notebook) readFiles(ctx context.Context, paths []string) ([]string, error) {
	texts := make([]string, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			text, err := n.extractor.Extract(path)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrFileAccess, filepath.Base(path), err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}
