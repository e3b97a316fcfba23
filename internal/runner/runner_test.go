package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"msgbar/internal/model"
	"msgbar/internal/pipeline"
	"msgbar/internal/source"
)

type fakeSource struct {
	typ      model.SourceType
	accounts []string
	batches  map[string]*source.Batch
	errs     map[string]error
	calls    int
}

func (f *fakeSource) Type() model.SourceType { return f.typ }
func (f *fakeSource) Accounts() []string     { return f.accounts }
func (f *fakeSource) Fetch(_ context.Context, account string) (*source.Batch, error) {
	f.calls++
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	if b, ok := f.batches[account]; ok {
		return b, nil
	}
	return &source.Batch{}, nil
}

type memStore struct {
	data      map[string][]model.ProcessedRecord
	replaceFn func() error
}

func newMemStore() *memStore { return &memStore{data: make(map[string][]model.ProcessedRecord)} }

func (m *memStore) Load(_ context.Context, s model.SourceType, account string) ([]model.ProcessedRecord, error) {
	return m.data[string(s)+"/"+account], nil
}

func (m *memStore) Replace(_ context.Context, s model.SourceType, account string, recs []model.ProcessedRecord) error {
	if m.replaceFn != nil {
		if err := m.replaceFn(); err != nil {
			return err
		}
	}
	m.data[string(s)+"/"+account] = recs
	return nil
}

type fakeNotifier struct{ titles, bodies []string }

func (f *fakeNotifier) Notify(title, body string) error {
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return nil
}

func strp(s string) *string { return &s }

func row(id, cid, sender string) model.RawMessage {
	return model.RawMessage{
		ID:             id,
		ConversationID: cid,
		Senders:        []string{sender},
		Timestamp:      model.RawTimestamp{Time: time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)},
		Body:           strp("hello " + id),
	}
}

func batch(account string, rows ...model.RawMessage) *source.Batch {
	return &source.Batch{Account: account, Raw: rows}
}

func newRunner(st *memStore, n *fakeNotifier, srcs ...source.Source) *Runner {
	return New(Options{
		Sources:       srcs,
		Store:         st,
		Notifier:      n,
		Normalizer:    pipeline.NewNormalizer(20),
		Timeout:       time.Second,
		NotifyEnabled: true,
		StrictSenders: true,
	})
}

func TestRun_NotifiesOnceAndPersists(t *testing.T) {
	src := &fakeSource{
		typ:      model.SourceReddit,
		accounts: []string{"reddit-1"},
		batches: map[string]*source.Batch{
			"reddit-1": batch("SomeUser", row("a", "c1", "ann"), row("b", "c1", "bo")),
		},
	}
	st := newMemStore()
	n := &fakeNotifier{}
	r := newRunner(st, n, src)

	rep := r.Run(context.Background())
	require.NoError(t, rep.Err())
	require.Len(t, rep.Accounts, 1)
	res := rep.Accounts[0]
	require.Equal(t, "SomeUser", res.Name())
	require.Equal(t, 2, res.Unread)
	require.True(t, res.Notified)
	require.Equal(t, []string{"Messages: 2 unread messages"}, n.titles)
	require.Equal(t, []string{"Messages from: ann, bo"}, n.bodies)
	require.Len(t, st.data["reddit/someuser"], 2)

	// Same messages again: nothing new.
	rep = r.Run(context.Background())
	require.False(t, rep.Accounts[0].Notified)
	require.Len(t, n.titles, 1)
	require.Equal(t, 2, rep.UnreadTotal())
}

func TestRun_CatchUpPurgesPartition(t *testing.T) {
	src := &fakeSource{typ: model.SourceText, accounts: []string{"me"}}
	st := newMemStore()
	st.data["text/me"] = []model.ProcessedRecord{{Key: "k", Source: model.SourceText, Account: "me"}}
	st.data["text/other"] = []model.ProcessedRecord{{Key: "k2", Source: model.SourceText, Account: "other"}}

	rep := newRunner(st, &fakeNotifier{}, src).Run(context.Background())
	require.True(t, rep.Accounts[0].Decision.Purge)
	require.Empty(t, st.data["text/me"])
	require.Len(t, st.data["text/other"], 1)
	require.Zero(t, rep.UnreadTotal())
}

func TestRun_FetchErrorIsolated(t *testing.T) {
	failing := &fakeSource{
		typ:      model.SourceSlack,
		accounts: []string{"work"},
		errs:     map[string]error{"work": errors.New("invalid_auth")},
	}
	ok := &fakeSource{
		typ:      model.SourceText,
		accounts: []string{"me"},
		batches:  map[string]*source.Batch{"me": batch("", row("x", "c", "ann"))},
	}
	st := newMemStore()
	st.data["slack/work"] = []model.ProcessedRecord{{Key: "keep"}}

	rep := newRunner(st, &fakeNotifier{}, failing, ok).Run(context.Background())
	require.Len(t, rep.Accounts, 2)

	var aerr *AccountError
	require.ErrorAs(t, rep.Err(), &aerr)
	require.Equal(t, KindFetch, aerr.Kind)
	require.Equal(t, "work", aerr.Account)
	require.Len(t, st.data["slack/work"], 1, "store must not change after a failed fetch")

	require.Nil(t, rep.Accounts[1].Err)
	require.Equal(t, 1, rep.UnreadTotal())
}

func TestRun_StoreErrorReported(t *testing.T) {
	src := &fakeSource{
		typ:      model.SourceText,
		accounts: []string{"me"},
		batches:  map[string]*source.Batch{"me": batch("", row("x", "c", "ann"))},
	}
	st := newMemStore()
	st.replaceFn = func() error { return errors.New("disk full") }

	rep := newRunner(st, &fakeNotifier{}, src).Run(context.Background())
	res := rep.Accounts[0]
	require.NotNil(t, res.Err)
	require.Equal(t, KindStore, res.Err.Kind)
	require.Len(t, res.Conversations, 1)
	require.Equal(t, 1, rep.UnreadTotal())
}

func TestRun_DryRunLeavesStore(t *testing.T) {
	src := &fakeSource{
		typ:      model.SourceText,
		accounts: []string{"me"},
		batches:  map[string]*source.Batch{"me": batch("", row("x", "c", "ann"))},
	}
	st := newMemStore()
	n := &fakeNotifier{}
	r := newRunner(st, n, src)
	r.opts.DryRun = true

	var progress []int
	r.opts.Progress = func(done, total int) { progress = append(progress, done, total) }

	rep := r.Run(context.Background())
	require.True(t, rep.Accounts[0].Decision.Notify)
	require.Empty(t, n.titles)
	require.Empty(t, st.data)
	require.Equal(t, []int{1, 1}, progress)
}

func TestAccountError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := &AccountError{Kind: KindFetch, Source: model.SourceGmail, Account: "me@example.com", Err: base}
	require.ErrorIs(t, err, base)
	require.Equal(t, "gmail me@example.com (fetch): boom", err.Error())
}
