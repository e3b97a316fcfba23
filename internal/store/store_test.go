package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"msgbar/internal/dedup"
	"msgbar/internal/model"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	csvStore, err := NewCSVStore(filepath.Join(dir, "processed.csv"), nil)
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	sqliteStore, err := NewSQLiteStore(filepath.Join(dir, "processed.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { sqliteStore.Close() })
	return map[string]Store{"csv": csvStore, "sqlite": sqliteStore}
}

func rec(source model.SourceType, account, id, sender string) model.ProcessedRecord {
	return model.ProcessedRecord{
		Key:       dedup.Key(source, id),
		ID:        strings.ToLower(id),
		Source:    source,
		Timestamp: time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local),
		Account:   account,
		Sender:    sender,
	}
}

func TestReplaceAndLoad(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := s.Load(ctx, model.SourceText, "me")
			if err != nil || len(empty) != 0 {
				t.Fatalf("fresh store: %v %v", empty, err)
			}

			recs := []model.ProcessedRecord{
				rec(model.SourceText, "me", "A", "Alice, Smith"),
				rec(model.SourceText, "me", "B", "Bob"),
			}
			if err := s.Replace(ctx, model.SourceText, "me", recs); err != nil {
				t.Fatalf("Replace: %v", err)
			}
			loaded, err := s.Load(ctx, model.SourceText, "ME")
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(loaded) != 2 {
				t.Fatalf("expected 2, got %d", len(loaded))
			}
			byID := map[string]model.ProcessedRecord{}
			for _, r := range loaded {
				byID[r.ID] = r
			}
			a := byID["a"]
			if a.Key != recs[0].Key || a.Sender != "Alice, Smith" || a.Source != model.SourceText {
				t.Fatalf("round trip mismatch: %+v", a)
			}
			if !a.Timestamp.Equal(recs[0].Timestamp) {
				t.Fatalf("timestamp want %v got %v", recs[0].Timestamp, a.Timestamp)
			}

			if err := s.Replace(ctx, model.SourceText, "me", recs[1:]); err != nil {
				t.Fatalf("Replace shrink: %v", err)
			}
			loaded, _ = s.Load(ctx, model.SourceText, "me")
			if len(loaded) != 1 || loaded[0].ID != "b" {
				t.Fatalf("partition not replaced: %+v", loaded)
			}
		})
	}
}

func TestCatchUpLeavesOtherPartitions(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Replace(ctx, model.SourceReddit, "one", []model.ProcessedRecord{rec(model.SourceReddit, "one", "x", "a")})
			s.Replace(ctx, model.SourceReddit, "two", []model.ProcessedRecord{rec(model.SourceReddit, "two", "y", "b")})
			s.Replace(ctx, model.SourceText, "one", []model.ProcessedRecord{rec(model.SourceText, "one", "x", "c")})

			in := dedup.Input{Source: model.SourceReddit, Account: "one"}
			if err := dedup.Apply(ctx, s, in, dedup.Decide(in)); err != nil {
				t.Fatalf("Apply: %v", err)
			}

			if got, _ := s.Load(ctx, model.SourceReddit, "one"); len(got) != 0 {
				t.Fatalf("caught-up partition not purged: %+v", got)
			}
			if got, _ := s.Load(ctx, model.SourceReddit, "two"); len(got) != 1 || got[0].ID != "y" {
				t.Fatalf("other account touched: %+v", got)
			}
			if got, _ := s.Load(ctx, model.SourceText, "one"); len(got) != 1 {
				t.Fatalf("other source touched: %+v", got)
			}
		})
	}
}

func TestCrossSourceIDsDoNotCollide(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			s.Replace(ctx, model.SourceText, "me", []model.ProcessedRecord{rec(model.SourceText, "me", "X", "a")})
			known, _ := s.Load(ctx, model.SourceReddit, "me")
			c := model.NewConversation(model.Message{ID: "X", ConversationID: "c", Sender: "a"})
			d := dedup.Decide(dedup.Input{
				Source: model.SourceReddit, Account: "me",
				Conversations: []*model.Conversation{c}, Known: known,
			})
			if !d.Notify {
				t.Fatal("reddit message X should be new despite text message X")
			}
		})
	}
}

func TestCSVStore_UnreadableFileIsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "processed.csv")
	s, err := NewCSVStore(path, nil)
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}

	for _, content := range []string{"", "garbage\n", "uuid,id\n1,2\n", "uuid,id,type,timestamp,username,sender\n\"broken\n"} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := s.Load(ctx, model.SourceText, "me")
		if err != nil || len(got) != 0 {
			t.Fatalf("content %q: got %v err %v", content, got, err)
		}
	}

	// The next write recreates a valid file.
	if err := s.Replace(ctx, model.SourceText, "me", []model.ProcessedRecord{rec(model.SourceText, "me", "a", "x")}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	b, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(b), "uuid,id,type,timestamp,username,sender\n") {
		t.Fatalf("header missing: %q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestCSVStore_DamagedRowKeepsOtherPartitions(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "processed.csv")
	s, err := NewCSVStore(path, nil)
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	if err := s.Replace(ctx, model.SourceReddit, "one", []model.ProcessedRecord{rec(model.SourceReddit, "one", "r1", "bob")}); err != nil {
		t.Fatal(err)
	}
	if err := s.Replace(ctx, model.SourceText, "me", []model.ProcessedRecord{rec(model.SourceText, "me", "t1", "ann")}); err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("bad,row\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	if got, err := s.Load(ctx, model.SourceReddit, "one"); err != nil || len(got) != 1 {
		t.Fatalf("load with damaged row: got %v err %v", got, err)
	}
	if err := s.Replace(ctx, model.SourceSlack, "x", nil); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	for _, p := range []struct {
		source  model.SourceType
		account string
	}{{model.SourceReddit, "one"}, {model.SourceText, "me"}} {
		got, err := s.Load(ctx, p.source, p.account)
		if err != nil || len(got) != 1 {
			t.Fatalf("%s/%s after unrelated write: got %v err %v", p.source, p.account, got, err)
		}
	}
	b, _ := os.ReadFile(path)
	if strings.Contains(string(b), "bad,row") {
		t.Fatalf("damaged row should be dropped on rewrite: %q", b)
	}
}

func TestCSVStore_FailedWriteRemovesTempFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "processed.csv")
	// A non-empty directory in place of the table makes the final rename fail.
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0o755); err != nil {
		t.Fatal(err)
	}
	s, err := NewCSVStore(path, nil)
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	if err := s.Replace(ctx, model.SourceText, "me", []model.ProcessedRecord{rec(model.SourceText, "me", "a", "x")}); err == nil {
		t.Fatal("expected error replacing a directory")
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), "bolt", "", "", nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := Open(context.Background(), BackendPostgres, "", "", nil); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			must := func(err error) {
				t.Helper()
				if err != nil {
					t.Fatal(err)
				}
			}
			must(s.Replace(ctx, model.SourceText, "me", []model.ProcessedRecord{rec(model.SourceText, "me", "A", "Ann")}))
			must(s.Replace(ctx, model.SourceReddit, "u1", []model.ProcessedRecord{rec(model.SourceReddit, "u1", "B", "Bo")}))

			must(s.Purge(ctx, model.SourceText))
			if got, _ := s.Load(ctx, model.SourceText, "me"); len(got) != 0 {
				t.Fatalf("text partition not purged: %v", got)
			}
			if got, _ := s.Load(ctx, model.SourceReddit, "u1"); len(got) != 1 {
				t.Fatalf("reddit partition touched: %v", got)
			}

			must(s.Purge(ctx, ""))
			if got, _ := s.Load(ctx, model.SourceReddit, "u1"); len(got) != 0 {
				t.Fatalf("purge all left %v", got)
			}
		})
	}
}
