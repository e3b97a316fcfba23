package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"msgbar/internal/model"
	"msgbar/internal/runner"
)

// conversationItem is one conversation of one account.
type conversationItem struct {
	source  model.SourceType
	account string
	conv    *model.Conversation
	// participants is the display string, truncated like the menu.
	participants string
}

func (c conversationItem) FilterValue() string {
	return c.conv.Title + " " + c.participants + " " + c.account
}

func (c conversationItem) Title() string {
	name := c.participants
	if c.conv.Title != "" {
		name = c.conv.Title
	}
	return fmt.Sprintf("[%s] %s (%d)", c.source, name, len(c.conv.Messages))
}

func (c conversationItem) Description() string {
	last := c.conv.Messages[len(c.conv.Messages)-1]
	return fmt.Sprintf("%s  %s  %s", c.account, humanize.Time(c.conv.MostRecent), last.BodyShort)
}

var footerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("241")).
	PaddingTop(1)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

func conversationsFooter() string {
	return footerStyle.Render("enter: open  r: refresh  q: quit")
}

// reportToItems flattens the report in account order, keeping the
// conversation order of each account.
func reportToItems(rep runner.Report, maxParticipants int) []list.Item {
	var items []list.Item
	for _, a := range rep.Accounts {
		for _, c := range a.Conversations {
			items = append(items, conversationItem{
				source:       a.Source,
				account:      a.Name(),
				conv:         c,
				participants: c.ParticipantNames(maxParticipants),
			})
		}
	}
	return items
}

// reportErrors lists failed accounts, one per line.
func reportErrors(rep runner.Report) string {
	var lines []string
	for _, a := range rep.Accounts {
		if a.Err != nil {
			lines = append(lines, errorStyle.Render(a.Err.Error()))
		}
	}
	return strings.Join(lines, "\n")
}
