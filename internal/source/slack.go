package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"msgbar/internal/model"
	"msgbar/internal/util"
)

var slackSystemSubtypes = map[string]bool{
	"channel_join":    true,
	"channel_leave":   true,
	"channel_topic":   true,
	"channel_purpose": true,
	"channel_name":    true,
	"group_join":      true,
	"group_leave":     true,
	"pinned_item":     true,
}

type SlackAccount struct {
	Name  string
	Token string
}

// SlackSource reports messages newer than the read marker of every
// conversation the user belongs to.
type SlackSource struct {
	accounts []SlackAccount
	apiURL   string
	log      *zap.Logger
}

func NewSlackSource(accounts []SlackAccount, apiURL string, log *zap.Logger) *SlackSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &SlackSource{accounts: accounts, apiURL: apiURL, log: log}
}

func (s *SlackSource) Type() model.SourceType { return model.SourceSlack }

func (s *SlackSource) Accounts() []string {
	out := make([]string, len(s.accounts))
	for i, a := range s.accounts {
		out[i] = accountLabel(a.Name, "slack", i)
	}
	return out
}

func (s *SlackSource) client(token string) *slack.Client {
	var opts []slack.Option
	if s.apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(s.apiURL, "/")+"/"))
	}
	return slack.New(token, opts...)
}

func (s *SlackSource) Fetch(ctx context.Context, account string) (*Batch, error) {
	var token string
	for i, a := range s.accounts {
		if accountLabel(a.Name, "slack", i) == account {
			token = a.Token
		}
	}
	if token == "" {
		return nil, fmt.Errorf("slack: unknown account %q", account)
	}
	api := s.client(token)

	auth, err := api.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("slack: auth test: %w", err)
	}

	var channels []slack.Channel
	cursor := ""
	for {
		page, next, err := api.GetConversationsForUserContext(ctx, &slack.GetConversationsForUserParameters{
			UserID:          auth.UserID,
			Cursor:          cursor,
			Types:           []string{"im", "mpim", "private_channel", "public_channel"},
			Limit:           200,
			ExcludeArchived: true,
		})
		if err != nil {
			return nil, fmt.Errorf("slack: list conversations: %w", err)
		}
		channels = append(channels, page...)
		if next == "" {
			break
		}
		cursor = next
	}

	b := newBatch()
	b.Account = util.FirstNonEmpty(strings.TrimSpace(auth.User+"@"+auth.Team), account)
	b.InboxLink = "slack://open?team=" + auth.TeamID
	users := &slackUsers{api: api, names: make(map[string]string)}

	for _, ch := range channels {
		info, err := api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: ch.ID})
		if err != nil {
			return nil, fmt.Errorf("slack: conversation %s: %w", ch.ID, err)
		}
		if info.LastRead == "" {
			continue
		}
		hist, err := api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: ch.ID,
			Oldest:    info.LastRead,
			Limit:     100,
		})
		if err != nil {
			return nil, fmt.Errorf("slack: history %s: %w", ch.ID, err)
		}

		title := ""
		switch {
		case info.IsIM:
		case info.IsMpIM:
			title = info.Name
		default:
			title = "#" + info.Name
		}
		link := fmt.Sprintf("slack://channel?team=%s&id=%s", auth.TeamID, ch.ID)
		for _, m := range hist.Messages {
			if m.User != "" && m.User == auth.UserID {
				continue
			}
			body := m.Text
			raw := model.RawMessage{
				ID:             ch.ID + ":" + m.Timestamp,
				ConversationID: ch.ID,
				Title:          title,
				Timestamp:      slackTime(m.Timestamp),
				Senders:        []string{users.name(ctx, m.User), m.Username, m.User, m.BotID},
				Body:           &body,
				IsSystemEvent:  slackSystemSubtypes[m.SubType],
				Link:           link,
			}
			if len(m.Files) > 0 {
				raw.HasAttachment = true
				raw.AttachmentKind = m.Files[0].Mimetype
			}
			b.Raw = append(b.Raw, raw)
		}
		if !info.IsIM {
			b.Groups[ch.ID] = true
			b.Kinds[ch.ID] = "channel"
		} else {
			b.Kinds[ch.ID] = "direct"
		}
	}
	b.UnreadCount = len(b.Raw)
	return b, nil
}

// slackTime parses a "seconds.micros" message timestamp. Unparseable values
// are passed through as text so the normalizer rejects the row.
func slackTime(ts string) model.RawTimestamp {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil || f <= 0 {
		return model.RawTimestamp{Text: ts}
	}
	return model.RawTimestamp{Unix: f}
}

type slackUsers struct {
	api   *slack.Client
	names map[string]string
}

// name resolves a user id to a display name, caching lookups for the run.
// Lookup failures fall back to the next sender candidate.
func (u *slackUsers) name(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if n, ok := u.names[id]; ok {
		return n
	}
	n := ""
	if user, err := u.api.GetUserInfoContext(ctx, id); err == nil {
		n = util.FirstNonEmpty(user.Profile.DisplayName, user.RealName, user.Profile.RealName, user.Name)
	}
	u.names[id] = n
	return n
}
