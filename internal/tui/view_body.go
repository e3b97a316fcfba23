package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"msgbar/internal/model"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	PaddingBottom(1)

func bodyHeader(conv *model.Conversation, m model.Message) string {
	title := conv.Title
	if title == "" {
		title = conv.ParticipantNames(0)
	}
	return headerStyle.Render(fmt.Sprintf("From: %s\nConversation: %s\nDate: %s", m.Sender, title, trimDate(m.Timestamp)))
}

// bodyText is the full body, wrapped to the normalizer width, with the
// attachment noted after it.
func bodyText(m model.Message) string {
	var b strings.Builder
	b.WriteString(strings.Join(m.BodyWrapped, "\n"))
	if m.HasAttachment {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[attachment")
		if m.AttachmentKind != "" {
			b.WriteString(": " + m.AttachmentKind)
		}
		b.WriteString("]")
	}
	return b.String()
}

func bodyFooter() string {
	return footerStyle.Render("o: open  esc: back  q: quit")
}
