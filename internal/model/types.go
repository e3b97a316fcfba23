package model

import "time"

// SourceType tags where a message came from. It partitions the processed
// record store and namespaces deterministic keys.
type SourceType string

const (
	SourceText   SourceType = "text"
	SourceReddit SourceType = "reddit"
	SourceSlack  SourceType = "slack"
	SourceGmail  SourceType = "gmail"
)

// RawTimestamp carries a source timestamp in whichever representation the
// source produced. The first populated field wins: Time, then Text, then Unix.
type RawTimestamp struct {
	Time     time.Time
	Text     string
	Layout   string         // layout for Text; RFC3339 and LocalLayout are tried when empty
	Location *time.Location // zone Text is expressed in; local when nil
	Unix     float64        // seconds since the Unix epoch, fractional allowed
}

// RawMessage is one row handed over by a source adapter before normalization.
type RawMessage struct {
	ID             string
	ConversationID string
	Title          string
	Timestamp      RawTimestamp
	Senders        []string // fallback chain; first non-empty wins
	Body           *string
	HasAttachment  bool
	AttachmentKind string
	// AttachmentPreview is filled by adapters that could render one.
	AttachmentPreview string
	IsSystemEvent     bool
	Link              string
}

// Message is the normalized, source-independent shape.
type Message struct {
	ID             string
	ConversationID string
	Timestamp      time.Time // local zone, second precision
	Sender         string
	Title          string
	Body           string
	BodyShort      string
	BodyWrapped    []string
	HasAttachment  bool
	AttachmentKind string
	// AttachmentPreview is a base64 encoded image, empty when no preview exists.
	AttachmentPreview string
	IsSystemEvent     bool
	Link              string
}

// ProcessedRecord is one row of the processed-message store.
type ProcessedRecord struct {
	Key       string // deterministic key derived from the message id
	ID        string // lower-cased source message id
	Source    SourceType
	Timestamp time.Time
	Account   string
	Sender    string
}

// LocalLayout is the timestamp layout used in the processed store and by
// sources that hand over already-local strings.
const LocalLayout = "01-02-2006 15:04:05"
