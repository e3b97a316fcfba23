package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// GroupTitle is assigned to an untitled conversation once it has more than one participant.
const GroupTitle = "Group Message"

// ErrConversationMismatch is returned when a message is added to a
// conversation it does not belong to. It signals a partitioning bug upstream.
var ErrConversationMismatch = errors.New("message conversation id does not match conversation")

// Conversation groups messages that share a conversation id.
type Conversation struct {
	ID    string
	Title string
	// Kind is an optional source label such as "comment" or "message".
	Kind         string
	Participants []string
	IsGroup      bool
	Messages     []Message
	MostRecent   time.Time

	ids          map[string]struct{}
	participants map[string]struct{}
}

// NewConversation starts a conversation seeded from its first message.
func NewConversation(first Message) *Conversation {
	c := &Conversation{
		ID:           first.ConversationID,
		Title:        first.Title,
		ids:          make(map[string]struct{}),
		participants: make(map[string]struct{}),
	}
	c.append(first)
	return c
}

// Add appends m. It reports false without error when a message with the same
// id is already present.
func (c *Conversation) Add(m Message) (bool, error) {
	if m.ConversationID != c.ID {
		return false, fmt.Errorf("add message %s to conversation %s: %w", m.ID, c.ID, ErrConversationMismatch)
	}
	if c.Has(m.ID) {
		return false, nil
	}
	c.append(m)
	return true, nil
}

func (c *Conversation) append(m Message) {
	c.ids[m.ID] = struct{}{}
	c.Messages = append(c.Messages, m)
	if m.Timestamp.After(c.MostRecent) {
		c.MostRecent = m.Timestamp
	}
	c.AddParticipants(m.Sender)
}

// AddParticipants records names as participants, e.g. a roster looked up by
// the source. Empty names are ignored.
func (c *Conversation) AddParticipants(names ...string) {
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := c.participants[n]; ok {
			continue
		}
		c.participants[n] = struct{}{}
		c.Participants = append(c.Participants, n)
	}
	if len(c.Participants) > 1 {
		c.MarkGroup()
	}
}

// MarkGroup flags the conversation as a group conversation. The flag never
// reverts and the generic title is only set if no title exists yet.
func (c *Conversation) MarkGroup() {
	if c.IsGroup {
		return
	}
	c.IsGroup = true
	if c.Title == "" {
		c.Title = GroupTitle
	}
}

// Has reports whether a message id is part of the conversation.
func (c *Conversation) Has(id string) bool {
	_, ok := c.ids[id]
	return ok
}

// ParticipantNames joins participant names for display. Group conversations
// are truncated to max names (max <= 0 means no limit) with a trailing ", ..."
// which is also shown for a group where only one participant is known.
func (c *Conversation) ParticipantNames(max int) string {
	if !c.IsGroup {
		return strings.Join(c.Participants, "")
	}
	names := c.Participants
	if max > 0 && len(names) > max {
		return strings.Join(names[:max], ", ") + ", ..."
	}
	if len(names) == 1 {
		return names[0] + ", ..."
	}
	return strings.Join(names, ", ")
}

// Clone returns a copy whose message slice can be reordered independently.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	cp.Participants = append([]string(nil), c.Participants...)
	cp.ids = make(map[string]struct{}, len(c.ids))
	for k := range c.ids {
		cp.ids[k] = struct{}{}
	}
	cp.participants = make(map[string]struct{}, len(c.participants))
	for k := range c.participants {
		cp.participants[k] = struct{}{}
	}
	return &cp
}
