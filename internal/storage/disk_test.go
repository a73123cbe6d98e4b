package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/knowling/internal/models"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		t.Helper()
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	db := write("notes.db", "hello")
	write("notes.db-wal", "123")
	write("notes.db-shm", "4")
	write("vectors/vectors.db", "ab")
	write("vectors/index.bin", "c")
	vectors := filepath.Join(dir, "vectors")

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"database with sidecars", []string{db}, 9},
		{"directory", []string{vectors}, 3},
		{"file and directory", []string{db, vectors}, 12},
		{"missing path skipped", []string{db, filepath.Join(dir, "missing"), vectors}, 12},
		{"empty and memory skipped", []string{"", ":memory:", db}, 9},
		{"nothing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("DiskUsageBytes(%v) = %d, want %d", tt.paths, got, tt.want)
			}
		})
	}
}

func TestDiskUsageBytes_GrowsWithNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	s, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	before, err := DiskUsageBytes(path)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		note := &models.Note{ID: fmt.Sprintf("note-%d", i), Text: "some note text that takes space"}
		if err := s.AddNote(ctx, note); err != nil {
			t.Fatal(err)
		}
	}
	after, err := DiskUsageBytes(path)
	if err != nil {
		t.Fatal(err)
	}
	if after <= before {
		t.Errorf("disk usage did not grow: before %d, after %d", before, after)
	}
}
