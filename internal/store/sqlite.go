package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"msgbar/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements dedup.Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS processed (
	uuid      TEXT NOT NULL,
	id        TEXT NOT NULL,
	type      TEXT NOT NULL,
	timestamp TEXT NOT NULL DEFAULT '',
	username  TEXT NOT NULL COLLATE NOCASE,
	sender    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (type, username, uuid)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, source model.SourceType, account string) ([]model.ProcessedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT uuid, id, type, timestamp, username, sender FROM processed WHERE type = ? AND username = ?",
		string(source), account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProcessedRecord
	for rows.Next() {
		var (
			r       model.ProcessedRecord
			typ, ts string
		)
		if err := rows.Scan(&r.Key, &r.ID, &typ, &ts, &r.Account, &r.Sender); err != nil {
			return nil, err
		}
		r.Source = model.SourceType(typ)
		r.Timestamp, _ = time.ParseInLocation(model.LocalLayout, ts, time.Local)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Replace(ctx context.Context, source model.SourceType, account string, records []model.ProcessedRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM processed WHERE type = ? AND username = ?", string(source), account); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO processed (uuid, id, type, timestamp, username, sender)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(type, username, uuid) DO UPDATE SET
			id        = excluded.id,
			timestamp = excluded.timestamp,
			sender    = excluded.sender
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Key, r.ID, string(r.Source), formatTime(r.Timestamp), r.Account, r.Sender); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Purge(ctx context.Context, source model.SourceType) error {
	var err error
	if source == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM processed")
	} else {
		_, err = s.db.ExecContext(ctx, "DELETE FROM processed WHERE type = ?", string(source))
	}
	return err
}
