package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/semcache/semcache/pkg/types"
)

// SQLiteStore persists records in a SQLite database. The full record
// travels as compact JSON; timestamp and type are lifted into indexed
// columns for window queries.
type SQLiteStore struct {
	db *sql.DB
}

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS operation_records (
	operation_id TEXT PRIMARY KEY,
	ts DATETIME NOT NULL,
	operation_type TEXT NOT NULL,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_ts ON operation_records(ts);
CREATE INDEX IF NOT EXISTS idx_records_type ON operation_records(operation_type);
`

// NewSQLiteStore opens (or creates) the database at path and runs migration.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	if _, err := db.Exec(createRecordsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate record store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append persists one record. A duplicate operation ID is rejected by the
// primary key, preserving immutability.
func (s *SQLiteStore) Append(ctx context.Context, record types.OperationRecord) error {
	payload, err := json.Marshal(record.Compact())
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO operation_records (operation_id, ts, operation_type, payload)
		 VALUES (?, ?, ?, ?)`,
		record.OperationID, record.Timestamp.UTC(), string(record.Type), string(payload),
	)
	if err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// Query returns records with from <= Timestamp < to, ordered by timestamp
// then operation ID.
func (s *SQLiteStore) Query(ctx context.Context, from, to time.Time) ([]types.OperationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM operation_records
		 WHERE ts >= ? AND ts < ?
		 ORDER BY ts, operation_id`,
		from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []types.OperationRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var compact types.CompactRecord
		if err := json.Unmarshal([]byte(payload), &compact); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, compact.Expand())
	}
	return records, rows.Err()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
