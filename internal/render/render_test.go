package render

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"msgbar/internal/model"
	"msgbar/internal/pipeline"
	"msgbar/internal/runner"
)

var ansi = regexp.MustCompile(`\x1b\[[0-9;]*m`)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)

func renderLines(t *testing.T, rep runner.Report) []string {
	t.Helper()
	r := New(Options{MaxLineChars: 20, MaxParticipants: 2, TimestampFontSize: 9, Now: func() time.Time { return now }})
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, rep))
	return strings.Split(strings.TrimRight(ansi.ReplaceAllString(buf.String(), ""), "\n"), "\n")
}

func conversation(t *testing.T, msgs ...model.Message) *model.Conversation {
	t.Helper()
	c := model.NewConversation(msgs[0])
	for _, m := range msgs[1:] {
		_, err := c.Add(m)
		require.NoError(t, err)
	}
	return c
}

func msg(n pipeline.Normalizer, id, sender, body string, at time.Time) model.Message {
	return n.SetBody(model.Message{
		ID:             id,
		ConversationID: "c1",
		Sender:         sender,
		Timestamp:      at,
		Link:           "https://example.com/" + id,
	}, body)
}

func TestRender_Conversations(t *testing.T) {
	n := pipeline.NewNormalizer(20)
	long := "this body is definitely longer than twenty cells"
	c := conversation(t,
		msg(n, "a", "ann", "hi | there", now.Add(-3*time.Hour)),
		msg(n, "b", "bo", long, now.Add(-time.Hour)),
	)
	att := msg(n, "c", "cy", "", now.Add(-30*time.Minute))
	att.ConversationID = "c2"
	att.HasAttachment = true
	att.AttachmentKind = "image/png"
	att.AttachmentPreview = "aGVsbG8="
	c2 := conversation(t, att)
	c2.Kind = "direct"

	rep := runner.Report{Accounts: []runner.AccountResult{{
		Source:        model.SourceText,
		Label:         "me",
		Unread:        3,
		InboxLink:     "messages://",
		Conversations: []*model.Conversation{c2, c},
	}}}
	lines := renderLines(t, rep)

	require.Equal(t, "3 | color=#e05415 sfimage=envelope.badge", lines[0])
	require.Equal(t, "---", lines[1])
	require.Equal(t, "Go to Text messages for me ↗︎ | font=HelveticaNeue-Italic color=#e05415 href=messages://", lines[2])
	require.Equal(t, "Unread Text messages for me: 3 | ansi=true href=messages://", lines[3])

	out := strings.Join(lines, "\n")
	require.Contains(t, out, "--cy (direct) | ansi=true href=https://example.com/c")
	require.Contains(t, out, "--(attachment - image/png) | ansi=true href=https://example.com/c")
	require.Contains(t, out, "----| image=aGVsbG8= href=https://example.com/c")

	require.Contains(t, out, "--Group Message | ansi=true font=Menlo size=10 href=https://example.com/b")
	require.Contains(t, out, "--ann, bo | ansi=true href=https://example.com/b")
	require.Contains(t, out, "--05-01-2024 09:00:00 am (Today - 3 hours ago) | ansi=true size=9 href=https://example.com/a")
	require.Contains(t, out, "--(ann) hi │ there | ansi=true href=https://example.com/a")
	require.Contains(t, out, "--(bo) this body is definit... | ansi=true href=https://example.com/b")
	require.Contains(t, out, "----this body is | ansi=true href=https://example.com/b")
	require.Contains(t, out, "--⠀| size=2")

	require.Equal(t, "Refresh | font=HelveticaNeue-Italic color=#7FC3D8 refresh=true", lines[len(lines)-1])
}

func TestRender_EmptyAndErrors(t *testing.T) {
	rep := runner.Report{Accounts: []runner.AccountResult{
		{Source: model.SourceReddit, Label: "reddit-1", Account: "SomeUser", InboxLink: "https://www.reddit.com/message/inbox/"},
		{Source: model.SourceSlack, Label: "work", Err: &runner.AccountError{
			Kind: runner.KindFetch, Source: model.SourceSlack, Account: "work", Err: errors.New("invalid_auth\nretry"),
		}},
	}}
	lines := renderLines(t, rep)

	require.Equal(t, "| sfimage=exclamationmark.triangle", lines[0])
	out := strings.Join(lines, "\n")
	require.Contains(t, out, "No unread Reddit messages for SomeUser! (Go to messages ↗︎) | color=teal href=https://www.reddit.com/message/inbox/")
	require.Contains(t, out, "Could not fetch Slack messages for work | color=red")
	require.Contains(t, out, "--invalid_auth retry | color=gray font=Menlo size=10")
	require.NotContains(t, out, "No unread Slack")

	lines = renderLines(t, runner.Report{Accounts: rep.Accounts[:1]})
	require.Equal(t, "| sfimage=envelope.open", lines[0])
}

func TestTimestamp(t *testing.T) {
	r := New(Options{Now: func() time.Time { return now }})
	got := r.timestamp(time.Date(2024, 4, 29, 18, 30, 5, 0, time.Local))
	require.Equal(t, "04-29-2024 06:30:05 pm (Monday - 1 day ago)", got)
}

func TestFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Failure(&buf, errors.New("max_line_chars must be positive\nfetch_timeout must be positive")))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, "| sfimage=exclamationmark.triangle", lines[0])
	require.Equal(t, "--max_line_chars must be positive fetch_timeout must be positive | font=Menlo size=10", lines[3])
	require.Contains(t, lines[len(lines)-1], "refresh=true")
}
