package pipeline

import (
	"sort"

	"msgbar/internal/model"
)

// Order returns copies of the aggregated conversations, most recently active
// first with insertion order breaking ties, each with its messages oldest
// first. The aggregator is not modified.
func Order(a *Aggregator) []*model.Conversation {
	out := make([]*model.Conversation, 0, a.Len())
	a.Each(func(c *model.Conversation) {
		cp := c.Clone()
		sort.SliceStable(cp.Messages, func(i, j int) bool {
			return cp.Messages[i].Timestamp.Before(cp.Messages[j].Timestamp)
		})
		out = append(out, cp)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MostRecent.After(out[j].MostRecent)
	})
	return out
}

// Result is the output of Build.
type Result struct {
	Conversations []*model.Conversation
	// Skipped joins the errors of rows dropped as malformed.
	Skipped error
}

// Build normalizes, aggregates and orders rows in one pass. Hooks run after
// aggregation and before ordering. A contract violation aborts the build.
func Build(n Normalizer, rows []model.RawMessage, hooks ...func(*Aggregator)) (Result, error) {
	msgs, skipped := n.NormalizeAll(rows)
	a := NewAggregator()
	if err := a.AddAll(msgs); err != nil {
		return Result{Skipped: skipped}, err
	}
	for _, h := range hooks {
		h(a)
	}
	return Result{Conversations: Order(a), Skipped: skipped}, nil
}
