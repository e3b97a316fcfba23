// Package tui is the interactive terminal view behind `msgbar browse`.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"msgbar/internal/model"
	"msgbar/internal/runner"
	"msgbar/internal/util"
)

type viewState int

const (
	viewLoading       viewState = iota
	viewConversations           // all unread conversations
	viewMessages                // messages within a conversation
	viewBody                    // single message body
)

// Loader runs the pipeline without side effects and reports progress.
type Loader func(ctx context.Context, progress runner.Progress) runner.Report

type AppModel struct {
	// Core state
	load            Loader
	maxParticipants int
	report          runner.Report
	Err             error
	status          string

	// View state machine
	view         viewState
	selectedConv *conversationItem
	selectedMsg  *model.Message

	// Sub-models
	convList     list.Model
	messagesList list.Model
	bodyViewport viewport.Model

	// Layout
	width, height int

	// openURL is swapped in tests.
	openURL func(string) error

	// Program reference for sending messages from goroutines
	program *tea.Program
}

// SetProgram stores a reference to the tea.Program so the loader can send
// progress messages back to the Update loop.
func (m *AppModel) SetProgram(p *tea.Program) {
	m.program = p
}

func NewAppModel(load Loader, maxParticipants int) AppModel {
	cl := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	// Remove esc from the list's built-in Quit binding so it doesn't exit on home
	cl.KeyMap.Quit.SetKeys("q")

	return AppModel{
		load:            load,
		maxParticipants: maxParticipants,
		status:          "Fetching unread messages...",
		view:            viewLoading,
		convList:        cl,
		messagesList:    list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0),
		bodyViewport:    viewport.New(0, 0),
		openURL:         util.OpenURL,
	}
}

func (m *AppModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		listH := msg.Height - 4 // room for footer
		m.convList.SetSize(msg.Width, listH)
		m.messagesList.SetSize(msg.Width, listH)
		m.bodyViewport.Width = msg.Width
		m.bodyViewport.Height = msg.Height - 6 // room for header + footer
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case loadProgressMsg:
		m.status = fmt.Sprintf("Fetching... %d / %d accounts", msg.done, msg.total)
		return m, nil

	case loadCompleteMsg:
		m.report = msg.report
		items := reportToItems(msg.report, m.maxParticipants)
		m.convList.SetItems(items)
		m.convList.Title = fmt.Sprintf("Unread (%d messages, %d conversations)", msg.report.UnreadTotal(), len(items))
		m.view = viewConversations
		m.status = reportErrors(msg.report)
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s complete", msg.action)
		}
		return m, clearStatusAfter(2 * time.Second)

	case statusMsg:
		if string(msg) == "" {
			m.status = ""
		}
		return m, nil
	}

	// Delegate to active sub-model
	var cmd tea.Cmd
	switch m.view {
	case viewConversations:
		m.convList, cmd = m.convList.Update(msg)
	case viewMessages:
		m.messagesList, cmd = m.messagesList.Update(msg)
	case viewBody:
		m.bodyViewport, cmd = m.bodyViewport.Update(msg)
	}
	return m, cmd
}

func (m *AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// Global keys
	switch key {
	case "ctrl+c":
		return m, tea.Quit
	}

	switch m.view {
	case viewLoading:
		if key == "q" {
			return m, tea.Quit
		}
		return m, nil

	case viewConversations:
		// When the list is filtering, let it handle all keys except ctrl+c
		if m.convList.FilterState() == list.Filtering {
			var cmd tea.Cmd
			m.convList, cmd = m.convList.Update(msg)
			return m, cmd
		}
		switch key {
		case "q":
			return m, tea.Quit
		case "enter":
			return m.enterConversation()
		case "r":
			m.view = viewLoading
			m.status = "Fetching unread messages..."
			return m, m.loadCmd()
		}
		var cmd tea.Cmd
		m.convList, cmd = m.convList.Update(msg)
		return m, cmd

	case viewMessages:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewConversations
			m.selectedConv = nil
			return m, nil
		case "enter":
			return m.enterMessage()
		case "o":
			if sel, ok := m.messagesList.SelectedItem().(messageItem); ok {
				return m, m.openCmd(sel.Link)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.messagesList, cmd = m.messagesList.Update(msg)
		return m, cmd

	case viewBody:
		switch key {
		case "q":
			return m, tea.Quit
		case "esc":
			m.view = viewMessages
			m.selectedMsg = nil
			return m, nil
		case "o":
			if m.selectedMsg != nil {
				return m, m.openCmd(m.selectedMsg.Link)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.bodyViewport, cmd = m.bodyViewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *AppModel) enterConversation() (tea.Model, tea.Cmd) {
	ci, ok := m.convList.SelectedItem().(conversationItem)
	if !ok {
		return m, nil
	}
	m.selectedConv = &ci
	m.messagesList.SetItems(messageItems(ci.conv))
	m.messagesList.Title = fmt.Sprintf("%s (%d messages)", ci.Title(), len(ci.conv.Messages))
	m.view = viewMessages
	return m, nil
}

func (m *AppModel) enterMessage() (tea.Model, tea.Cmd) {
	mi, ok := m.messagesList.SelectedItem().(messageItem)
	if !ok || m.selectedConv == nil {
		return m, nil
	}
	msg := mi.Message
	m.selectedMsg = &msg
	m.bodyViewport.SetContent(bodyHeader(m.selectedConv.conv, msg) + "\n\n" + bodyText(msg))
	m.bodyViewport.GotoTop()
	m.view = viewBody
	return m, nil
}

// Commands

func (m *AppModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		progress := func(done, total int) {
			if m.program != nil {
				m.program.Send(loadProgressMsg{done: done, total: total})
			}
		}
		return loadCompleteMsg{report: m.load(context.Background(), progress)}
	}
}

func (m *AppModel) openCmd(link string) tea.Cmd {
	return func() tea.Msg {
		if link == "" {
			return actionResultMsg{action: "Open", err: fmt.Errorf("message has no link")}
		}
		return actionResultMsg{action: "Open", err: m.openURL(link)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return statusMsg("")
	})
}

// View renders the appropriate view based on current state.
func (m *AppModel) View() string {
	// Error state
	if m.Err != nil {
		return "Error: " + m.Err.Error() + "\n"
	}

	// Loading
	if m.view == viewLoading {
		if m.status != "" {
			return m.status + "\n"
		}
		return "Loading...\n"
	}

	var b strings.Builder

	switch m.view {
	case viewConversations:
		b.WriteString(m.convList.View())
		b.WriteString("\n")
		b.WriteString(conversationsFooter())
	case viewMessages:
		b.WriteString(m.messagesList.View())
		b.WriteString("\n")
		b.WriteString(messagesFooter())
	case viewBody:
		b.WriteString(m.bodyViewport.View())
		b.WriteString("\n")
		b.WriteString(bodyFooter())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(m.status)
	}

	return b.String()
}

// trimDate formats a message time for list rows.
func trimDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 3:04 PM")
}
