package vector

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteEngineFile is the database file an SQLiteEngine keeps inside its directory.
const SQLiteEngineFile = "vectors.db"

const deleteBatchSize = 500

// SQLiteEngine stores embeddings as little-endian float32 blobs in a SQLite table and
// answers nearest-neighbor queries with an exact scan. The exclusion filter runs in SQL.
type SQLiteEngine struct {
	db         *sql.DB
	dimensions int
}

// NewSQLiteEngine opens or creates the engine in dir. An empty dir or ":memory:" keeps
// everything in memory. The stored dimension must match dimensions.
func NewSQLiteEngine(dir string, dimensions int) (*SQLiteEngine, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	dsn := ":memory:"
	if dir != "" && dir != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create vector index directory: %w", err)
		}
		dsn = filepath.Join(dir, SQLiteEngineFile)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	e := &SQLiteEngine{db: db, dimensions: dimensions}
	if err := e.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

func (e *SQLiteEngine) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS embeddings (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		vector BLOB NOT NULL,
		created INTEGER NOT NULL,
		modified INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := e.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize vector schema: %w", err)
	}

	var stored string
	err := e.db.QueryRow(`SELECT value FROM index_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		_, err = e.db.Exec(`INSERT INTO index_meta (key, value) VALUES ('dimensions', ?)`, strconv.Itoa(e.dimensions))
		if err != nil {
			return fmt.Errorf("failed to record dimensions: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read dimensions: %w", err)
	}
	if stored != strconv.Itoa(e.dimensions) {
		return fmt.Errorf("dimension mismatch: index has %s, expected %d", stored, e.dimensions)
	}
	return nil
}

// Insert adds records. Inserting an ID that already exists fails.
func (e *SQLiteEngine) Insert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (id, text, vector, created, modified) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != e.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(r.Vector), e.dimensions)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Text, encodeVector(r.Vector), r.Created, r.Modified); err != nil {
			return fmt.Errorf("insert %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes records by ID.
func (e *SQLiteEngine) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		if _, err := e.db.ExecContext(ctx, `DELETE FROM embeddings WHERE id IN (`+placeholders+`)`, args...); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAll removes every record.
func (e *SQLiteEngine) DeleteAll(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx, `DELETE FROM embeddings`)
	return err
}

// Nearest returns up to limit records ordered by ascending squared L2 distance.
func (e *SQLiteEngine) Nearest(ctx context.Context, query []float32, limit int) ([]Hit, error) {
	return e.scan(ctx, query, limit, `SELECT id, text, vector FROM embeddings`)
}

// NearestExcluding is Nearest with excludeID filtered out by the query.
func (e *SQLiteEngine) NearestExcluding(ctx context.Context, query []float32, excludeID string, limit int) ([]Hit, error) {
	return e.scan(ctx, query, limit, `SELECT id, text, vector FROM embeddings WHERE id != ?`, excludeID)
}

func (e *SQLiteEngine) scan(ctx context.Context, query []float32, limit int, q string, args ...interface{}) ([]Hit, error) {
	if len(query) != e.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), e.dimensions)
	}
	if limit <= 0 {
		return nil, nil
	}
	rows, err := e.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			blob []byte
		)
		if err := rows.Scan(&h.ID, &h.Text, &blob); err != nil {
			return nil, err
		}
		vec := decodeVector(blob)
		if len(vec) != e.dimensions {
			return nil, fmt.Errorf("stored vector %s has %d dimensions, expected %d", h.ID, len(vec), e.dimensions)
		}
		h.Distance = SquaredL2(query, vec)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sortHits(hits, limit), nil
}

// Count returns the number of stored records.
func (e *SQLiteEngine) Count(ctx context.Context) (int, error) {
	var n int
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// Close closes the database.
func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}
