package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/semcache/semcache/pkg/types"
)

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	embedding TEXT,
	created_at DATETIME NOT NULL,
	last_accessed DATETIME NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	ttl_seconds INTEGER NOT NULL DEFAULT 0,
	tags TEXT
);
`

// NewSQLite opens (or creates) the database at path and runs migration.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open entry store: %w", err)
	}
	if _, err := db.Exec(createEntriesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate entry store: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Get retrieves an entry by key.
func (s *SQLite) Get(ctx context.Context, key string) (types.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, value, embedding, created_at, last_accessed, access_count, ttl_seconds, tags
		 FROM cache_entries WHERE key = ?`, key)

	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return types.CacheEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// Put stores or replaces an entry.
func (s *SQLite) Put(ctx context.Context, entry types.CacheEntry) error {
	embedding, tags, err := encodeFields(entry)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries
		 (key, value, embedding, created_at, last_accessed, access_count, ttl_seconds, tags)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Key, entry.Value, embedding,
		entry.CreatedAt.UTC(), entry.LastAccessed.UTC(),
		entry.AccessCount, int64(entry.TTL.Seconds()), tags,
	)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	return nil
}

// Delete removes an entry; absent keys are a no-op.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// List returns every stored entry.
func (s *SQLite) List(ctx context.Context) ([]types.CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, embedding, created_at, last_accessed, access_count, ttl_seconds, tags
		 FROM cache_entries ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []types.CacheEntry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func encodeFields(entry types.CacheEntry) (embedding, tags sql.NullString, err error) {
	if len(entry.Embedding) > 0 {
		data, merr := json.Marshal(entry.Embedding)
		if merr != nil {
			return embedding, tags, fmt.Errorf("encode embedding: %w", merr)
		}
		embedding = sql.NullString{String: string(data), Valid: true}
	}
	if len(entry.Tags) > 0 {
		data, merr := json.Marshal(entry.Tags)
		if merr != nil {
			return embedding, tags, fmt.Errorf("encode tags: %w", merr)
		}
		tags = sql.NullString{String: string(data), Valid: true}
	}
	return embedding, tags, nil
}

func scanEntry(scan func(...any) error) (types.CacheEntry, error) {
	var entry types.CacheEntry
	var embedding, tags sql.NullString
	var createdAt, lastAccessed time.Time
	var ttlSeconds int64

	if err := scan(&entry.Key, &entry.Value, &embedding, &createdAt, &lastAccessed,
		&entry.AccessCount, &ttlSeconds, &tags); err != nil {
		return types.CacheEntry{}, err
	}

	entry.CreatedAt = createdAt
	entry.LastAccessed = lastAccessed
	entry.TTL = time.Duration(ttlSeconds) * time.Second

	if embedding.Valid {
		if err := json.Unmarshal([]byte(embedding.String), &entry.Embedding); err != nil {
			return types.CacheEntry{}, fmt.Errorf("decode embedding: %w", err)
		}
	}
	if tags.Valid {
		if err := json.Unmarshal([]byte(tags.String), &entry.Tags); err != nil {
			return types.CacheEntry{}, fmt.Errorf("decode tags: %w", err)
		}
	}
	return entry, nil
}
