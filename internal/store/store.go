// Package store persists processed-message records.
package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"msgbar/internal/dedup"
	"msgbar/internal/model"
)

// Store is a dedup.Store that holds resources.
type Store interface {
	dedup.Store
	// Purge drops every partition of source, or of all sources when source
	// is empty.
	Purge(ctx context.Context, source model.SourceType) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendCSV      = "csv"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Columns of the processed table, in file order.
var columns = []string{"uuid", "id", "type", "timestamp", "username", "sender"}

// Open returns the store for backend. path is used by file backends, dsn by postgres.
func Open(ctx context.Context, backend, path, dsn string, log *zap.Logger) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendCSV:
		return NewCSVStore(path, log)
	case BackendSQLite:
		return NewSQLiteStore(path)
	case BackendPostgres:
		return NewPostgresStore(ctx, dsn)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

func samePartition(r model.ProcessedRecord, source model.SourceType, account string) bool {
	return r.Source == source && strings.EqualFold(r.Account, account)
}
