// Package source holds the adapters that fetch unread messages from each
// messaging service and hand them to the pipeline as raw rows.
package source

import (
	"context"

	"msgbar/internal/model"
	"msgbar/internal/pipeline"
)

// Source fetches unread messages for the accounts it was configured with.
type Source interface {
	Type() model.SourceType
	// Accounts lists the configured account labels, in config order.
	Accounts() []string
	// Fetch returns the unread messages of one account. It must not touch
	// the processed store.
	Fetch(ctx context.Context, account string) (*Batch, error)
}

// Batch is the result of one Fetch.
type Batch struct {
	// Account is the resolved account identity, e.g. the reddit username.
	// The configured label is used when empty.
	Account string
	Raw     []model.RawMessage
	// UnreadCount is the number of unread messages the service reports.
	// len(Raw) is used when zero.
	UnreadCount int
	// ExplicitSenders is the list of unread senders when the service
	// provides one independently of conversation grouping.
	ExplicitSenders []string
	// InboxLink opens the account's inbox.
	InboxLink string

	// Per conversation hints applied after aggregation.
	Groups  map[string]bool
	Rosters map[string][]string
	Kinds   map[string]string
}

func newBatch() *Batch {
	return &Batch{
		Groups:  make(map[string]bool),
		Rosters: make(map[string][]string),
		Kinds:   make(map[string]string),
	}
}

// Unread returns the unread count, falling back to the number of rows.
func (b *Batch) Unread() int {
	if b.UnreadCount > 0 {
		return b.UnreadCount
	}
	return len(b.Raw)
}

// Annotate applies the batch hints to aggregated conversations. It is meant
// to be passed as a pipeline.Build hook.
func (b *Batch) Annotate(a *pipeline.Aggregator) {
	a.Each(func(c *model.Conversation) {
		if b.Groups[c.ID] {
			c.MarkGroup()
		}
		c.AddParticipants(b.Rosters[c.ID]...)
		if k, ok := b.Kinds[c.ID]; ok {
			c.Kind = k
		}
	})
}
