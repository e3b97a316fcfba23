package source

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"msgbar/internal/config"
	"msgbar/internal/model"
)

// Factory builds a source from configuration. It returns nil, nil when the
// source has nothing configured.
type Factory func(cfg config.Config, log *zap.Logger) (Source, error)

var registry = map[model.SourceType]Factory{
	model.SourceText:   newText,
	model.SourceReddit: newReddit,
	model.SourceSlack:  newSlack,
	model.SourceGmail:  newGmail,
}

// Build resolves cfg.Sources to adapters, in order. Unknown tags are an error;
// sources without accounts are skipped.
func Build(cfg config.Config, log *zap.Logger) ([]Source, error) {
	var out []Source
	seen := make(map[model.SourceType]bool)
	for _, tag := range cfg.Sources {
		t := model.SourceType(strings.ToLower(strings.TrimSpace(tag)))
		f, ok := registry[t]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", tag)
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		src, err := f(cfg, log.With(zap.String("source", string(t))))
		if err != nil {
			return nil, fmt.Errorf("configure %s source: %w", t, err)
		}
		if src != nil {
			out = append(out, src)
		}
	}
	return out, nil
}

func newText(cfg config.Config, log *zap.Logger) (Source, error) {
	return NewTextSource(TextOptions{
		Username:    cfg.Text.Username,
		ChatDB:      cfg.Text.ChatDB,
		ContactsDir: cfg.Text.ContactsDir,
		RosterLimit: cfg.MaxGroupSearchResults,
		Previewer:   ImagePreviewer{MaxBytes: cfg.Text.MaxPreviewBytes},
	}, log)
}

func newReddit(cfg config.Config, log *zap.Logger) (Source, error) {
	if len(cfg.Reddit.Accounts) == 0 {
		return nil, nil
	}
	accounts := make([]RedditAccount, len(cfg.Reddit.Accounts))
	for i, a := range cfg.Reddit.Accounts {
		accounts[i] = RedditAccount(a)
	}
	return NewRedditSource(RedditOptions{
		Accounts:  accounts,
		APIURL:    cfg.Reddit.APIURL,
		TokenURL:  cfg.Reddit.TokenURL,
		UserAgent: cfg.Reddit.UserAgent,
	}, log), nil
}

func newSlack(cfg config.Config, log *zap.Logger) (Source, error) {
	if len(cfg.Slack.Accounts) == 0 {
		return nil, nil
	}
	accounts := make([]SlackAccount, len(cfg.Slack.Accounts))
	for i, a := range cfg.Slack.Accounts {
		accounts[i] = SlackAccount(a)
	}
	return NewSlackSource(accounts, cfg.Slack.APIURL, log), nil
}

func newGmail(cfg config.Config, log *zap.Logger) (Source, error) {
	if !cfg.Gmail.Enabled {
		return nil, nil
	}
	return NewGmailSource(cfg.Gmail.CredentialsDir, cfg.Gmail.MaxResults, log), nil
}
