package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"msgbar/internal/model"
	"msgbar/internal/util"
)

const (
	redditAPIURL   = "https://oauth.reddit.com"
	redditTokenURL = "https://www.reddit.com/api/v1/access_token"
	redditWebURL   = "https://www.reddit.com"
	// Listing pages are capped at 100 items by reddit.
	redditPageSize = 100
	redditMaxPages = 10
)

// RedditAccount holds the script app credentials of one reddit login.
type RedditAccount struct {
	Name         string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// RedditSource reads the unread inbox of one or more reddit accounts.
type RedditSource struct {
	accounts  []RedditAccount
	apiURL    string
	tokenURL  string
	userAgent string
	// client is the base transport for token refreshes and API calls.
	client *http.Client
	log    *zap.Logger
}

type RedditOptions struct {
	Accounts  []RedditAccount
	APIURL    string
	TokenURL  string
	UserAgent string
	Client    *http.Client
}

func NewRedditSource(opts RedditOptions, log *zap.Logger) *RedditSource {
	if log == nil {
		log = zap.NewNop()
	}
	s := &RedditSource{
		accounts:  opts.Accounts,
		apiURL:    strings.TrimRight(util.FirstNonEmpty(opts.APIURL, redditAPIURL), "/"),
		tokenURL:  util.FirstNonEmpty(opts.TokenURL, redditTokenURL),
		userAgent: util.FirstNonEmpty(opts.UserAgent, "msgbar reddit notifier"),
		client:    opts.Client,
		log:       log,
	}
	if s.client == nil {
		s.client = &http.Client{}
	}
	// Reddit rejects requests without a descriptive user agent, token
	// refreshes included.
	base := s.client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	s.client = &http.Client{
		Transport: userAgentTransport{base: base, agent: s.userAgent},
		Timeout:   s.client.Timeout,
	}
	return s
}

func (s *RedditSource) Type() model.SourceType { return model.SourceReddit }

// Accounts returns the configured labels. Unnamed accounts are labeled by
// position until their username is resolved.
func (s *RedditSource) Accounts() []string {
	out := make([]string, len(s.accounts))
	for i, a := range s.accounts {
		out[i] = accountLabel(a.Name, "reddit", i)
	}
	return out
}

func (s *RedditSource) Fetch(ctx context.Context, account string) (*Batch, error) {
	acct, ok := s.lookup(account)
	if !ok {
		return nil, fmt.Errorf("reddit: unknown account %q", account)
	}

	cfg := &oauth2.Config{
		ClientID:     acct.ClientID,
		ClientSecret: acct.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  s.tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)
	client := cfg.Client(ctx, &oauth2.Token{RefreshToken: acct.RefreshToken})

	var me struct {
		Name string `json:"name"`
	}
	if err := s.get(ctx, client, "/api/v1/me", nil, &me); err != nil {
		return nil, fmt.Errorf("reddit: identify account: %w", err)
	}

	b := newBatch()
	b.Account = util.FirstNonEmpty(me.Name, account)
	b.InboxLink = redditWebURL + "/message/unread/"
	senders := make(map[string]struct{})

	after := ""
	for page := 0; page < redditMaxPages; page++ {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(redditPageSize))
		q.Set("raw_json", "1")
		if after != "" {
			q.Set("after", after)
		}
		var listing redditListing
		if err := s.get(ctx, client, "/message/unread", q, &listing); err != nil {
			return nil, fmt.Errorf("reddit: list unread: %w", err)
		}
		for _, child := range listing.Data.Children {
			raw, kind, sender := child.Data.raw()
			b.Raw = append(b.Raw, raw)
			b.Kinds[raw.ConversationID] = kind
			if _, ok := senders[sender]; !ok && sender != "" {
				senders[sender] = struct{}{}
				b.ExplicitSenders = append(b.ExplicitSenders, sender)
			}
		}
		after = listing.Data.After
		if after == "" {
			break
		}
	}
	b.UnreadCount = len(b.Raw)
	s.log.Debug("reddit unread fetched", zap.String("account", b.Account), zap.Int("count", b.UnreadCount))
	return b, nil
}

func (s *RedditSource) lookup(label string) (RedditAccount, bool) {
	for i, a := range s.accounts {
		if accountLabel(a.Name, "reddit", i) == label {
			return a, true
		}
	}
	return RedditAccount{}, false
}

func (s *RedditSource) get(ctx context.Context, client *http.Client, path string, q url.Values, out any) error {
	u := s.apiURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string      `json:"kind"`
			Data redditThing `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	ParentID         string  `json:"parent_id"`
	FirstMessageName string  `json:"first_message_name"`
	Subject          string  `json:"subject"`
	CreatedUTC       float64 `json:"created_utc"`
	Author           string  `json:"author"`
	Distinguished    string  `json:"distinguished"`
	Body             string  `json:"body"`
	Subreddit        string  `json:"subreddit"`
	WasComment       bool    `json:"was_comment"`
	Context          string  `json:"context"`
}

// raw maps a reddit inbox item. Comment replies each form their own
// conversation; private messages are threaded by their first message.
func (t redditThing) raw() (model.RawMessage, string, string) {
	sender := util.FirstNonEmpty(t.Author, t.Distinguished)
	kind := "message"
	cid := util.FirstNonEmpty(t.FirstMessageName, t.ParentID, t.Name, t.ID)
	if t.WasComment {
		kind = "comment"
		cid = t.ID
	}
	link := t.Context
	if link == "" {
		link = "/message/messages/" + t.ID
	}
	if u, err := url.Parse(link); err == nil {
		link = u.RequestURI()
	}
	body := t.Body
	title := t.Subject
	if t.WasComment && t.Subreddit != "" {
		title = "r/" + t.Subreddit
	}
	return model.RawMessage{
		ID:             t.ID,
		ConversationID: cid,
		Title:          title,
		Timestamp:      model.RawTimestamp{Unix: t.CreatedUTC},
		Senders:        []string{sender, "reddit"},
		Body:           &body,
		Link:           redditWebURL + link,
	}, kind, sender
}

type userAgentTransport struct {
	base  http.RoundTripper
	agent string
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(r)
}

func accountLabel(name, prefix string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s-%d", prefix, i+1)
}
