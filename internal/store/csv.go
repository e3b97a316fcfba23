package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.uber.org/zap"

	"msgbar/internal/model"
)

// CSVStore keeps all partitions in one CSV file. It assumes a single writer.
type CSVStore struct {
	path string
	log  *zap.Logger
}

// NewCSVStore prepares a store at path. The file itself is created on first write.
func NewCSVStore(path string, log *zap.Logger) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("csv store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CSVStore{path: path, log: log}, nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) Load(_ context.Context, source model.SourceType, account string) ([]model.ProcessedRecord, error) {
	var out []model.ProcessedRecord
	for _, r := range s.readAll() {
		if samePartition(r, source, account) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *CSVStore) Replace(_ context.Context, source model.SourceType, account string, records []model.ProcessedRecord) error {
	all := s.readAll()
	kept := make([]model.ProcessedRecord, 0, len(all)+len(records))
	for _, r := range all {
		if !samePartition(r, source, account) {
			kept = append(kept, r)
		}
	}
	kept = append(kept, records...)
	return s.writeAll(kept)
}

func (s *CSVStore) Purge(_ context.Context, source model.SourceType) error {
	var kept []model.ProcessedRecord
	if source != "" {
		for _, r := range s.readAll() {
			if r.Source != source {
				kept = append(kept, r)
			}
		}
	}
	return s.writeAll(kept)
}

// readAll treats a missing or empty file, a foreign header or a quoting error
// as holding no records. Rows with the wrong number of fields are skipped so
// one damaged line does not cost the other partitions.
func (s *CSVStore) readAll() []model.ProcessedRecord {
	f, err := os.Open(s.path)
	if err != nil {
		s.log.Debug("processed store not readable, starting empty", zap.String("path", s.path), zap.Error(err))
		return nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil || !slices.Equal(header, columns) {
		s.log.Debug("processed store malformed, starting empty", zap.String("path", s.path), zap.Error(err))
		return nil
	}

	var out []model.ProcessedRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.log.Debug("processed store malformed, starting empty", zap.String("path", s.path), zap.Error(err))
			return nil
		}
		if len(row) != len(columns) {
			line, _ := reader.FieldPos(0)
			s.log.Debug("skipping malformed processed record", zap.String("path", s.path), zap.Int("line", line), zap.Int("fields", len(row)))
			continue
		}
		ts, _ := time.ParseInLocation(model.LocalLayout, row[3], time.Local)
		out = append(out, model.ProcessedRecord{
			Key:       row[0],
			ID:        row[1],
			Source:    model.SourceType(row[2]),
			Timestamp: ts,
			Account:   row[4],
			Sender:    row[5],
		})
	}
	return out
}

// writeAll replaces the file atomically via a temp file and rename. The temp
// file is removed when any step fails.
func (s *CSVStore) writeAll(records []model.ProcessedRecord) (err error) {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create processed store: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("write processed store: %w", err)
	}
	for _, r := range records {
		row := []string{r.Key, r.ID, string(r.Source), formatTime(r.Timestamp), r.Account, r.Sender}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write processed store: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write processed store: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close processed store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace processed store: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(time.Local).Format(model.LocalLayout)
}
