package gmail

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"msgbar/internal/model"
	"msgbar/internal/util"

	gmailv1 "google.golang.org/api/gmail/v1"
)

// UnreadQuery selects the messages reported by FetchUnread.
const UnreadQuery = "is:unread in:inbox"

const workerCount = 8

// Profile returns the email address of the authenticated user.
func Profile(ctx context.Context, svc *gmailv1.Service) (string, error) {
	p, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	return p.EmailAddress, nil
}

// FetchUnread lists up to max unread inbox messages and fetches each one with
// a bounded worker pool. Rows are returned in list order. Threads become
// conversations. The function respects ctx for cancelation.
func FetchUnread(ctx context.Context, svc *gmailv1.Service, max int64) ([]model.RawMessage, error) {
	user := "me"
	if max <= 0 {
		max = 100
	}

	var ids []string
	pageToken := ""
	for int64(len(ids)) < max {
		call := svc.Users.Messages.List(user).
			Q(UnreadQuery).
			MaxResults(min(max-int64(len(ids)), 500)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	type job struct {
		idx int
		id  string
	}
	out := make([]model.RawMessage, len(ids))
	errs := make([]error, len(ids))
	jobs := make(chan job)

	// Worker pool to fetch full messages.
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				msg, err := svc.Users.Messages.Get(user, j.id).Format("full").Context(ctx).Do()
				if err != nil {
					errs[j.idx] = fmt.Errorf("get message %s: %w", j.id, err)
					continue
				}
				out[j.idx] = rawFromMessage(msg)
			}
		}()
	}

queue:
	for i, id := range ids {
		select {
		case <-ctx.Done():
			break queue
		case jobs <- job{idx: i, id: id}:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func rawFromMessage(msg *gmailv1.Message) model.RawMessage {
	var from, subject, date string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				from = h.Value
			case "subject":
				subject = h.Value
			case "date":
				date = h.Value
			}
		}
	}
	sender := util.ParseSender(from)

	raw := model.RawMessage{
		ID:             msg.Id,
		ConversationID: msg.ThreadId,
		Title:          subject,
		Senders:        []string{sender.Display(), sender.Address, from},
		Link:           "https://mail.google.com/mail/u/0/#inbox/" + msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		raw.Timestamp = model.RawTimestamp{Time: time.UnixMilli(msg.InternalDate)}
	} else if t, ok := parseDate(date); ok {
		raw.Timestamp = model.RawTimestamp{Time: t}
	}

	body := messageBody(msg)
	raw.Body = &body
	if kind := attachmentKind(msg.Payload); kind != "" {
		raw.HasAttachment = true
		raw.AttachmentKind = kind
	}
	return raw
}

// messageBody prefers text/plain, falls back to text extracted from HTML, then the snippet.
func messageBody(msg *gmailv1.Message) string {
	if body := partBody(msg.Payload, "text/plain"); body != "" {
		return body
	}
	if doc := partBody(msg.Payload, "text/html"); doc != "" {
		if text := htmlText(doc); text != "" {
			return text
		}
	}
	return msg.Snippet
}

// Helpers

func parseDate(h string) (time.Time, bool) {
	if h == "" {
		return time.Time{}, false
	}
	// Try common formats Gmail uses in Date header.
	layouts := []string{
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		time.RFC850,
		time.RFC3339,
		"Mon, 2 Jan 2006 15:04:05 -0700",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, h); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
