package vector

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// MemorySnapshotFile is the file a MemoryEngine snapshots to inside its directory.
const MemorySnapshotFile = "index.bin"

var errCorruptSnapshot = errors.New("corrupt index snapshot")

// MemoryEngine is an in-memory engine using brute-force squared L2 search.
// It has no query filter, so an Index over it drops excluded IDs itself.
// When created with a directory it loads the snapshot on open and writes it on Close.
type MemoryEngine struct {
	dimensions int
	path       string
	records    []Record
	mu         sync.RWMutex
}

// NewMemoryEngine creates an in-memory engine. If dir is non-empty the snapshot in it is loaded.
func NewMemoryEngine(dir string, dimensions int) (*MemoryEngine, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m := &MemoryEngine{dimensions: dimensions}
	if dir != "" && dir != ":memory:" {
		m.path = filepath.Join(dir, MemorySnapshotFile)
		if err := m.Load(m.path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Insert appends records. Inserting an ID that already exists fails.
func (m *MemoryEngine) Insert(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(m.records)+len(records))
	for _, r := range m.records {
		seen[r.ID] = true
	}
	for _, r := range records {
		if len(r.Vector) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(r.Vector), m.dimensions)
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate record %s", r.ID)
		}
		seen[r.ID] = true
	}
	for _, r := range records {
		vec := make([]float32, m.dimensions)
		copy(vec, r.Vector)
		r.Vector = vec
		m.records = append(m.records, r)
	}
	return nil
}

// Delete removes records by ID by rebuilding the slice.
func (m *MemoryEngine) Delete(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if !removeSet[r.ID] {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

// DeleteAll removes every record.
func (m *MemoryEngine) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
	return nil
}

// Nearest returns up to limit records ordered by ascending squared L2 distance.
func (m *MemoryEngine) Nearest(ctx context.Context, query []float32, limit int) ([]Hit, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || len(m.records) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(m.records))
	for i, r := range m.records {
		hits[i] = Hit{ID: r.ID, Text: r.Text, Distance: SquaredL2(query, r.Vector)}
	}
	return sortHits(hits, limit), nil
}

// Count returns the number of records.
func (m *MemoryEngine) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close writes the snapshot when the engine was opened with a directory.
func (m *MemoryEngine) Close() error {
	return m.Save(m.path)
}

// Save persists the engine to path. Directory is created if needed. Format: dimension (4), n (4),
// then per record: idLen (4), id, textLen (4), text, created (8), modified (8), vector (dimension*4).
func (m *MemoryEngine) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := m.writeTo(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	return os.Rename(tmp, path)
}

func (m *MemoryEngine) writeTo(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(m.records))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for _, r := range m.records {
		if err := writeString(w, r.ID); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeString(w, r.Text); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, [2]int64{r.Created, r.Modified}); err != nil {
			return fmt.Errorf("write timestamps: %w", err)
		}
		if _, err := w.Write(encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the snapshot at path and replaces the in-memory contents. Dimensions must match.
// If the file does not exist, no error is returned and the engine is unchanged.
func (m *MemoryEngine) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat index file: %w", err)
	}
	size := info.Size()
	r := bufio.NewReader(f)

	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	// Every record carries two length prefixes, two timestamps and the vector.
	minRecord := int64(4 + 4 + 16 + 4*m.dimensions)
	if int64(n) > (size-8)/minRecord {
		return fmt.Errorf("%w: %d records cannot fit in %d bytes", errCorruptSnapshot, n, size)
	}
	records := make([]Record, 0, n)
	buf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var (
			rec        Record
			timestamps [2]int64
		)
		if rec.ID, err = readString(r, size); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if rec.Text, err = readString(r, size); err != nil {
			return fmt.Errorf("read text: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &timestamps); err != nil {
			return fmt.Errorf("read timestamps: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		rec.Created, rec.Modified = timestamps[0], timestamps[1]
		rec.Vector = decodeVector(buf)
		records = append(records, rec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = records
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// readString reads a length-prefixed string no longer than limit bytes.
func readString(r io.Reader, limit int64) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if int64(n) > limit {
		return "", fmt.Errorf("%w: string of %d bytes exceeds file size %d", errCorruptSnapshot, n, limit)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
