package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteRecordStore is a durable RecordStore backed by a local SQLite file.
// Save replaces the table contents inside one transaction, keeping the
// whole-collection write semantics of the other backends.
type SQLiteRecordStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS login_records (
	position     INTEGER PRIMARY KEY,
	url          TEXT NOT NULL,
	origin       TEXT NOT NULL,
	username     TEXT NOT NULL,
	password     TEXT NOT NULL,
	last_updated TIMESTAMP NOT NULL
);`

// NewSQLiteRecordStore opens (and if needed creates) the database at path.
// WAL mode and a busy timeout keep a reading admin surface from tripping
// over the single writer.
func NewSQLiteRecordStore(path string) (*SQLiteRecordStore, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteRecordStore{db: db}, nil
}

// Load returns all records in insertion order.
func (s *SQLiteRecordStore) Load(ctx context.Context) ([]Record, error) {
	const query = `SELECT url, origin, username, password, last_updated
		FROM login_records ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.URL, &rec.Origin, &rec.Username, &rec.Password, &rec.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

// Save replaces the whole collection atomically.
func (s *SQLiteRecordStore) Save(ctx context.Context, records []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM login_records`); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}

	const insert = `INSERT INTO login_records (position, url, origin, username, password, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)`
	for i, rec := range records {
		if _, err := tx.ExecContext(ctx, insert, i, rec.URL, rec.Origin, rec.Username, rec.Password, rec.LastUpdated); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *SQLiteRecordStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM login_records`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}
