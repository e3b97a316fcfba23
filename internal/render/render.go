// Package render writes a run report as SwiftBar/xbar menu markup.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"msgbar/internal/model"
	"msgbar/internal/runner"
	"msgbar/internal/util"
)

const (
	accent       = "#e05415"
	refreshColor = "#7FC3D8"
	iconUnread   = "envelope.badge"
	iconRead     = "envelope.open"
	iconError    = "exclamationmark.triangle"
	// blank is U+2800, which the host renders as an empty spacer row.
	blank = "⠀"
)

type Options struct {
	MaxLineChars      int
	MaxParticipants   int
	TimestampFontSize int
	// Now is used for relative timestamps; time.Now when nil.
	Now func() time.Time
}

// Renderer turns reports into menu markup. Text colors are ANSI escapes,
// which the host honors on lines carrying ansi=true.
type Renderer struct {
	opts  Options
	title cases.Caser

	green, red, yellow, cyan, magenta, white, gray lipgloss.Style
}

func New(opts Options) *Renderer {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TimestampFontSize <= 0 {
		opts.TimestampFontSize = 8
	}
	// Stdout is read by the host, not a terminal, so the profile is forced.
	lr := lipgloss.NewRenderer(io.Discard)
	lr.SetColorProfile(termenv.ANSI)
	color := func(c string) lipgloss.Style { return lr.NewStyle().Foreground(lipgloss.Color(c)) }
	return &Renderer{
		opts:    opts,
		title:   cases.Title(language.English),
		green:   color("2"),
		red:     color("1"),
		yellow:  color("3"),
		cyan:    color("6"),
		magenta: color("5"),
		white:   color("7"),
		gray:    color("8"),
	}
}

// Render writes the menubar title line followed by one section per account.
func (r *Renderer) Render(w io.Writer, rep runner.Report) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { fmt.Fprintf(bw, format+"\n", args...) }

	total := rep.UnreadTotal()
	switch {
	case total > 0:
		p("%d | color=%s sfimage=%s", total, accent, iconUnread)
	case rep.Err() != nil:
		p("| sfimage=%s", iconError)
	default:
		p("| sfimage=%s", iconRead)
	}

	for _, a := range rep.Accounts {
		p("---")
		r.account(p, a)
	}

	p("---")
	p("Refresh | font=HelveticaNeue-Italic color=%s refresh=true", refreshColor)
	return bw.Flush()
}

// Failure writes the menu shown when the run could not start at all, e.g.
// because the configuration is invalid.
func Failure(w io.Writer, err error) error {
	_, werr := fmt.Fprintf(w, "| sfimage=%s\n---\nmsgbar could not start | color=red\n--%s | font=Menlo size=10\n---\nRefresh | font=HelveticaNeue-Italic color=%s refresh=true\n",
		iconError, sanitize(err.Error()), refreshColor)
	return werr
}

type printer func(format string, args ...any)

func (r *Renderer) account(p printer, a runner.AccountResult) {
	src := r.title.String(string(a.Source))
	name := a.Name()
	inbox := link(a.InboxLink)

	if a.Err != nil {
		switch a.Err.Kind {
		case runner.KindFetch:
			p("Could not fetch %s messages for %s | color=red", src, name)
		case runner.KindContract:
			p("%s returned inconsistent conversations for %s | color=red", src, name)
		case runner.KindStore:
			p("Could not save %s notification state for %s | color=orange", src, name)
		}
		p("--%s | color=gray font=Menlo size=10", sanitize(a.Err.Err.Error()))
		if a.Err.Kind != runner.KindStore {
			return
		}
	}

	if len(a.Conversations) == 0 {
		p("No unread %s messages for %s! (Go to messages ↗︎) | color=teal %s", src, name, inbox)
		return
	}

	p("Go to %s messages for %s ↗︎ | font=HelveticaNeue-Italic color=%s %s", src, name, accent, inbox)
	p("%s %s | ansi=true %s",
		r.green.Render(fmt.Sprintf("Unread %s messages for %s:", src, name)),
		r.red.Render(fmt.Sprint(a.Unread)),
		inbox)

	for _, c := range a.Conversations {
		r.conversation(p, c)
		p("-----")
	}
}

func (r *Renderer) conversation(p printer, c *model.Conversation) {
	var href string
	if len(c.Messages) > 0 {
		href = link(c.Messages[len(c.Messages)-1].Link)
	}
	if c.Title != "" {
		p("--%s | ansi=true font=Menlo size=10 %s", sanitize(c.Title), href)
	}
	who := c.ParticipantNames(r.opts.MaxParticipants)
	if c.Kind != "" {
		who = fmt.Sprintf("%s (%s)", who, c.Kind)
	}
	p("--%s | ansi=true %s", r.yellow.Render(sanitize(who)), href)

	for i, m := range c.Messages {
		mhref := link(m.Link)
		p("--%s | ansi=true size=%d %s", r.cyan.Render(r.timestamp(m.Timestamp)), r.opts.TimestampFontSize, mhref)

		var line strings.Builder
		if c.IsGroup && m.Sender != "" {
			line.WriteString(r.red.Render("(" + sanitize(m.Sender) + ")"))
			line.WriteString(" ")
		}
		long := util.DisplayWidth(m.Body) > r.opts.MaxLineChars
		body := m.Body
		if long {
			body = m.BodyShort
		}
		switch {
		case m.IsSystemEvent:
			line.WriteString(r.gray.Render(sanitize(body)))
		case body != "":
			line.WriteString(r.green.Render(sanitize(body)))
		}
		if m.HasAttachment {
			if body != "" {
				line.WriteString(" ")
			}
			line.WriteString(r.magenta.Render(attachmentLabel(m.AttachmentKind)))
		}
		p("--%s | ansi=true %s", line.String(), mhref)

		if long {
			for _, w := range m.BodyWrapped {
				p("----%s | ansi=true %s", r.white.Render(sanitize(w)), mhref)
			}
		}
		if m.AttachmentPreview != "" {
			p("----| image=%s %s", m.AttachmentPreview, mhref)
		}
		if i != len(c.Messages)-1 {
			p("--%s| size=2", blank)
		}
	}
}

// timestamp formats t as "05-01-2024 09:00:00 am (Today - 3 hours ago)".
func (r *Renderer) timestamp(t time.Time) string {
	now := r.opts.Now()
	day := t.Weekday().String()
	if sameDay(t, now) {
		day = "Today"
	}
	stamp := strings.ToLower(t.Format("01-02-2006 03:04:05 PM"))
	return fmt.Sprintf("%s (%s - %s)", stamp, day, humanize.RelTime(t, now, "ago", "from now"))
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func attachmentLabel(kind string) string {
	if kind == "" {
		return "(attachment)"
	}
	return "(attachment - " + kind + ")"
}

var menuUnsafe = strings.NewReplacer("|", "│", "\r", " ", "\n", " ")

// sanitize keeps text on one menu line and out of the parameter section.
func sanitize(s string) string {
	return menuUnsafe.Replace(s)
}

func link(u string) string {
	if u == "" {
		return ""
	}
	return "href=" + strings.ReplaceAll(u, " ", "%20")
}
