// Package pipeline turns raw source rows into ordered conversations.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"msgbar/internal/model"
	"msgbar/internal/util"
)

// ErrMalformedRow is returned when a raw row lacks a field the pipeline needs.
var ErrMalformedRow = errors.New("malformed message row")

// Normalizer converts raw rows into model.Message values.
type Normalizer struct {
	// Width is the preview width in display cells.
	Width    int
	Location *time.Location
}

// NewNormalizer returns a Normalizer for the local time zone.
func NewNormalizer(width int) Normalizer {
	return Normalizer{Width: width, Location: time.Local}
}

// Normalize maps one raw row to a Message. It has no side effects.
func (n Normalizer) Normalize(raw model.RawMessage) (model.Message, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return model.Message{}, fmt.Errorf("%w: empty id", ErrMalformedRow)
	}
	if raw.ConversationID == "" {
		return model.Message{}, fmt.Errorf("%w: message %s has no conversation id", ErrMalformedRow, id)
	}
	ts, err := util.ToLocal(raw.Timestamp, n.Location)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: message %s: %v", ErrMalformedRow, id, err)
	}

	m := model.Message{
		ID:                id,
		ConversationID:    raw.ConversationID,
		Timestamp:         ts,
		Sender:            util.FirstNonEmpty(raw.Senders...),
		Title:             strings.TrimSpace(raw.Title),
		HasAttachment:     raw.HasAttachment,
		AttachmentKind:    raw.AttachmentKind,
		AttachmentPreview: raw.AttachmentPreview,
		IsSystemEvent:     raw.IsSystemEvent,
		Link:              raw.Link,
	}
	return n.SetBody(m, util.CleanBody(raw.Body)), nil
}

// SetBody replaces the body of m and recomputes its derived previews.
func (n Normalizer) SetBody(m model.Message, body string) model.Message {
	m.Body = body
	m.BodyShort = util.Truncate(body, n.Width)
	m.BodyWrapped = util.WrapWords(body, n.Width+1)
	return m
}

// NormalizeAll normalizes rows in order. Malformed rows are skipped and
// returned joined in the error so callers can log them.
func (n Normalizer) NormalizeAll(rows []model.RawMessage) ([]model.Message, error) {
	out := make([]model.Message, 0, len(rows))
	var errs []error
	for _, r := range rows {
		m, err := n.Normalize(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, m)
	}
	return out, errors.Join(errs...)
}
