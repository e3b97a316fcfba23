package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"msgbar/internal/model"
)

// PostgresStore keeps processed records in a shared Postgres table, for
// installs that sync dedup state between machines.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres store requires a dsn")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS processed (
	uuid      TEXT NOT NULL,
	id        TEXT NOT NULL,
	type      TEXT NOT NULL,
	timestamp TIMESTAMPTZ,
	username  TEXT NOT NULL,
	sender    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (type, username, uuid)
)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, source model.SourceType, account string) ([]model.ProcessedRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT uuid, id, type, timestamp, username, sender FROM processed WHERE type = $1 AND lower(username) = lower($2)`,
		string(source), account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProcessedRecord
	for rows.Next() {
		var (
			r   model.ProcessedRecord
			typ string
			ts  *time.Time
		)
		if err := rows.Scan(&r.Key, &r.ID, &typ, &ts, &r.Account, &r.Sender); err != nil {
			return nil, err
		}
		r.Source = model.SourceType(typ)
		if ts != nil {
			r.Timestamp = ts.In(time.Local)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Replace(ctx context.Context, source model.SourceType, account string, records []model.ProcessedRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM processed WHERE type = $1 AND lower(username) = lower($2)`, string(source), account); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		var ts *time.Time
		if !r.Timestamp.IsZero() {
			t := r.Timestamp
			ts = &t
		}
		batch.Queue(`INSERT INTO processed (uuid, id, type, timestamp, username, sender)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (type, username, uuid) DO UPDATE SET id = EXCLUDED.id, timestamp = EXCLUDED.timestamp, sender = EXCLUDED.sender`,
			r.Key, r.ID, string(r.Source), ts, r.Account, r.Sender)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Purge(ctx context.Context, source model.SourceType) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM processed WHERE $1::text = '' OR type = $1`, string(source))
	return err
}
