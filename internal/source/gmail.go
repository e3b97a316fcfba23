package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	gmailv1 "google.golang.org/api/gmail/v1"

	"msgbar/internal/gmail"
	"msgbar/internal/model"
)

// GmailSource reports unread inbox mail, one conversation per thread.
type GmailSource struct {
	maxResults int64
	newService func(ctx context.Context) (*gmailv1.Service, error)
	log        *zap.Logger
}

func NewGmailSource(credentialsDir string, maxResults int64, log *zap.Logger) *GmailSource {
	return newGmailSource(func(ctx context.Context) (*gmailv1.Service, error) {
		return gmail.NewService(ctx, credentialsDir)
	}, maxResults, log)
}

func newGmailSource(fn func(context.Context) (*gmailv1.Service, error), maxResults int64, log *zap.Logger) *GmailSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &GmailSource{maxResults: maxResults, newService: fn, log: log}
}

func (s *GmailSource) Type() model.SourceType { return model.SourceGmail }

// Accounts has a single entry; the address is resolved on fetch.
func (s *GmailSource) Accounts() []string { return []string{"me"} }

func (s *GmailSource) Fetch(ctx context.Context, account string) (*Batch, error) {
	svc, err := s.newService(ctx)
	if err != nil {
		return nil, fmt.Errorf("gmail: %w", err)
	}
	addr, err := gmail.Profile(ctx, svc)
	if err != nil {
		return nil, fmt.Errorf("gmail: %w", err)
	}
	rows, err := gmail.FetchUnread(ctx, svc, s.maxResults)
	if err != nil {
		return nil, fmt.Errorf("gmail: %w", err)
	}
	b := newBatch()
	b.Account = addr
	b.Raw = rows
	b.UnreadCount = len(rows)
	b.InboxLink = "https://mail.google.com/mail/u/0/#inbox"
	for _, r := range rows {
		b.Kinds[r.ConversationID] = "mail"
	}
	return b, nil
}
