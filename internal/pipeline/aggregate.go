package pipeline

import (
	"msgbar/internal/model"
)

// Aggregator groups messages by conversation id in arrival order.
type Aggregator struct {
	convs map[string]*model.Conversation
	order []string
}

func NewAggregator() *Aggregator {
	return &Aggregator{convs: make(map[string]*model.Conversation)}
}

// Add routes m to its conversation, creating it on first sight. Duplicate
// message ids are ignored.
func (a *Aggregator) Add(m model.Message) error {
	c, ok := a.convs[m.ConversationID]
	if !ok {
		a.convs[m.ConversationID] = model.NewConversation(m)
		a.order = append(a.order, m.ConversationID)
		return nil
	}
	_, err := c.Add(m)
	return err
}

// AddAll adds messages in order and stops at the first contract violation.
func (a *Aggregator) AddAll(msgs []model.Message) error {
	for _, m := range msgs {
		if err := a.Add(m); err != nil {
			return err
		}
	}
	return nil
}

// Conversation returns the conversation for id, or nil.
func (a *Aggregator) Conversation(id string) *model.Conversation {
	return a.convs[id]
}

// Len is the number of conversations.
func (a *Aggregator) Len() int { return len(a.order) }

// Each visits conversations in insertion order.
func (a *Aggregator) Each(fn func(*model.Conversation)) {
	for _, id := range a.order {
		fn(a.convs[id])
	}
}
