package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"msgbar/internal/model"
)

// messageItem wraps a normalized message for the list display.
type messageItem struct {
	model.Message
}

func (m messageItem) FilterValue() string { return m.Sender + " " + m.Body }
func (m messageItem) Title() string {
	if m.Sender == "" {
		return m.BodyShort
	}
	return fmt.Sprintf("%s: %s", m.Sender, m.BodyShort)
}
func (m messageItem) Description() string {
	desc := trimDate(m.Timestamp)
	if m.HasAttachment {
		desc += "  [attachment]"
	}
	return desc
}

func messagesFooter() string {
	return footerStyle.Render("enter: view body  o: open  esc: back  q: quit")
}

// messageItems keeps the transcript order of the conversation, oldest first.
func messageItems(c *model.Conversation) []list.Item {
	items := make([]list.Item, len(c.Messages))
	for i, m := range c.Messages {
		items[i] = messageItem{m}
	}
	return items
}
