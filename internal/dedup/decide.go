package dedup

import (
	"context"
	"strings"

	"msgbar/internal/model"
)

// Store persists processed records partitioned by source and account.
type Store interface {
	// Load returns the records for exactly this source and account. A missing
	// or unreadable backing file yields no records and no error.
	Load(ctx context.Context, source model.SourceType, account string) ([]model.ProcessedRecord, error)
	// Replace swaps the partition for source and account with records,
	// leaving all other partitions untouched. Nil records purge the partition.
	Replace(ctx context.Context, source model.SourceType, account string, records []model.ProcessedRecord) error
}

// Input is everything Decide needs for one source and account.
type Input struct {
	Source        model.SourceType
	Account       string
	Conversations []*model.Conversation
	Known         []model.ProcessedRecord
	// ExplicitSenders, when set, is used as the notification sender list.
	ExplicitSenders []string
	// StrictSenders limits the fallback sender list to senders of messages
	// that were not known before this run.
	StrictSenders bool
}

// Decision is the outcome for one source and account.
type Decision struct {
	Notify bool
	// Purge is set when the account has caught up and its history is dropped.
	Purge   bool
	Senders []string
	NewKeys []string
	// Records is the full partition to persist. Empty when Purge is set.
	Records []model.ProcessedRecord
}

// Decide compares the keys of the current messages with the known keys.
func Decide(in Input) Decision {
	if len(in.Conversations) == 0 {
		return Decision{Purge: true}
	}

	known := make(map[string]struct{}, len(in.Known))
	for _, r := range in.Known {
		known[r.Key] = struct{}{}
	}

	var (
		d          Decision
		seen       = make(map[string]struct{})
		allSenders = newOrderedSet()
		newSenders = newOrderedSet()
	)
	for _, c := range in.Conversations {
		for _, m := range c.Messages {
			k := Key(in.Source, m.ID)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			d.Records = append(d.Records, model.ProcessedRecord{
				Key:       k,
				ID:        strings.ToLower(m.ID),
				Source:    in.Source,
				Timestamp: m.Timestamp,
				Account:   in.Account,
				Sender:    m.Sender,
			})
			allSenders.add(m.Sender)
			if _, ok := known[k]; !ok {
				d.NewKeys = append(d.NewKeys, k)
				newSenders.add(m.Sender)
			}
		}
	}

	if len(d.NewKeys) == 0 {
		return d
	}
	d.Notify = true
	switch {
	case len(in.ExplicitSenders) > 0:
		explicit := newOrderedSet()
		for _, s := range in.ExplicitSenders {
			explicit.add(s)
		}
		d.Senders = explicit.items
	case in.StrictSenders:
		d.Senders = newSenders.items
	default:
		d.Senders = allSenders.items
	}
	return d
}

// Apply persists a decision. Callers run it only after a successful fetch.
func Apply(ctx context.Context, s Store, in Input, d Decision) error {
	if d.Purge {
		return s.Replace(ctx, in.Source, in.Account, nil)
	}
	return s.Replace(ctx, in.Source, in.Account, d.Records)
}

type orderedSet struct {
	items []string
	set   map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{set: make(map[string]struct{})}
}

func (o *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := o.set[v]; ok {
		return
	}
	o.set[v] = struct{}{}
	o.items = append(o.items, v)
}
