package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"msgbar/internal/model"

	_ "modernc.org/sqlite"
)

// appleEpoch is 2001-01-01T00:00:00Z in Unix seconds.
const appleEpoch = 978307200

// TextSource reads unread iMessage/SMS rows from the local Messages database.
type TextSource struct {
	username    string
	chatDB      string
	contactsDB  string
	rosterLimit int
	previewer   AttachmentPreviewer
	log         *zap.Logger
}

type TextOptions struct {
	Username string
	// ChatDB defaults to ~username/Library/Messages/chat.db.
	ChatDB string
	// ContactsDir is an AddressBook directory. When empty the largest source
	// under ~/Library/Application Support/AddressBook/Sources is used if any.
	ContactsDir string
	// RosterLimit bounds how many recent messages are searched for a group roster.
	RosterLimit int
	Previewer   AttachmentPreviewer
}

func NewTextSource(opts TextOptions, log *zap.Logger) (*TextSource, error) {
	if log == nil {
		log = zap.NewNop()
	}
	username := opts.Username
	if username == "" {
		username = os.Getenv("USER")
	}
	if username == "" {
		return nil, errors.New("text source: username is required")
	}
	chatDB := opts.ChatDB
	if chatDB == "" {
		chatDB = filepath.Join("/Users", username, "Library", "Messages", "chat.db")
	}
	contactsDir := opts.ContactsDir
	if contactsDir == "" {
		contactsDir = largestAddressBook(filepath.Join("/Users", username, "Library", "Application Support", "AddressBook", "Sources"))
	}
	contactsDB := ""
	if contactsDir != "" {
		p := filepath.Join(contactsDir, "AddressBook-v22.abcddb")
		if _, err := os.Stat(p); err == nil {
			contactsDB = p
		} else {
			log.Debug("contacts database not found", zap.String("path", p))
		}
	}
	limit := opts.RosterLimit
	if limit <= 0 {
		limit = 10
	}
	return &TextSource{
		username:    username,
		chatDB:      chatDB,
		contactsDB:  contactsDB,
		rosterLimit: limit,
		previewer:   opts.Previewer,
		log:         log,
	}, nil
}

func (s *TextSource) Type() model.SourceType { return model.SourceText }

func (s *TextSource) Accounts() []string { return []string{s.username} }

func (s *TextSource) Fetch(ctx context.Context, account string) (*Batch, error) {
	db, err := sql.Open("sqlite", readOnlyURI(s.chatDB))
	if err != nil {
		return nil, fmt.Errorf("open messages database: %w", err)
	}
	defer db.Close()
	// ATTACH and PRAGMA are per connection.
	db.SetMaxOpenConns(1)

	contacts := false
	if s.contactsDB != "" {
		if _, err := db.ExecContext(ctx, "ATTACH DATABASE ? AS adb", readOnlyURI(s.contactsDB)); err != nil {
			s.log.Warn("attach contacts database", zap.String("path", s.contactsDB), zap.Error(err))
		} else {
			contacts = true
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return nil, fmt.Errorf("open messages database: %w", err)
	}

	b := newBatch()
	b.Account = account
	b.InboxLink = "messages://"
	groups, err := s.unread(ctx, db, contacts, b)
	if err != nil {
		return nil, err
	}
	for _, cid := range groups {
		b.Groups[cid] = true
		roster, err := s.roster(ctx, db, cid, contacts)
		if err != nil {
			s.log.Warn("group roster lookup failed", zap.String("cid", cid), zap.Error(err))
		}
		b.Rosters[cid] = roster
	}
	return b, nil
}

// readOnlyURI opens path without creating it and without write access to
// the live database.
func readOnlyURI(path string) string {
	return (&url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}).String()
}

// unread fills b with the unread rows and returns the group chat ids seen.
func (s *TextSource) unread(ctx context.Context, db *sql.DB, contacts bool, b *Batch) ([]string, error) {
	rows, err := db.QueryContext(ctx, unreadQuery(contacts))
	if err != nil {
		return nil, fmt.Errorf("query unread messages: %w", err)
	}
	defer rows.Close()

	var groups []string
	seen := make(map[string]struct{})
	for rows.Next() {
		var (
			guid, cid, title, contact string
			sender, org               sql.NullString
			date                      int64
			hasAttachment             bool
			mime, file                string
			body                      sql.NullString
		)
		if err := rows.Scan(&guid, &cid, &title, &date, &contact, &sender, &org, &hasAttachment, &mime, &file, &body); err != nil {
			return nil, fmt.Errorf("scan unread message: %w", err)
		}
		// One row per attachment; the pipeline drops the duplicates but the
		// unread count must not include them.
		if _, dup := seen[guid]; !dup {
			seen[guid] = struct{}{}
			b.UnreadCount++
		}

		raw := model.RawMessage{
			ID:             guid,
			ConversationID: cid,
			Title:          title,
			Timestamp:      model.RawTimestamp{Unix: appleTime(date)},
			Senders:        []string{strings.TrimSpace(sender.String), org.String, contact},
			HasAttachment:  hasAttachment,
			AttachmentKind: mime,
			Link:           textLink(cid),
		}
		if body.Valid {
			text := strings.ReplaceAll(body.String, "\ufffc", "")
			raw.Body = &text
		}
		if hasAttachment && file != "" && s.previewer != nil {
			raw.AttachmentPreview = s.previewer.Preview(mime, file)
		}
		b.Raw = append(b.Raw, raw)

		if isGroupChat(cid) {
			if _, ok := b.Groups[cid]; !ok {
				b.Groups[cid] = true
				groups = append(groups, cid)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read unread messages: %w", err)
	}
	return groups, nil
}

func (s *TextSource) roster(ctx context.Context, db *sql.DB, cid string, contacts bool) ([]string, error) {
	rows, err := db.QueryContext(ctx, rosterQuery(contacts), cid, s.rosterLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			contact     string
			sender, org sql.NullString
		)
		if err := rows.Scan(&contact, &sender, &org); err != nil {
			return names, err
		}
		for _, n := range []string{strings.TrimSpace(sender.String), org.String, contact} {
			if n != "" {
				names = append(names, n)
				break
			}
		}
	}
	return names, rows.Err()
}

// isGroupChat reports whether a chat identifier names a group chat, e.g.
// "chat123456789".
func isGroupChat(cid string) bool {
	return strings.Contains(cid, "chat")
}

func textLink(cid string) string {
	if isGroupChat(cid) {
		return "messages://"
	}
	return "sms:" + cid
}

// appleTime converts a Messages date to Unix seconds. Newer databases store
// nanoseconds since the Apple epoch, older ones seconds.
func appleTime(date int64) float64 {
	if date > 1e11 || date < -1e11 {
		return appleEpoch + float64(date)/1e9
	}
	return appleEpoch + float64(date)
}

// largestAddressBook picks the AddressBook source directory with the most
// data, which is the synced account on machines that have several.
func largestAddressBook(root string) string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return ""
	}
	type candidate struct {
		path string
		size int64
	}
	var cands []candidate
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) != 36 {
			continue
		}
		p := filepath.Join(root, e.Name())
		var size int64
		filepath.WalkDir(p, func(_ string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
			return nil
		})
		cands = append(cands, candidate{p, size})
	}
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].size > cands[j].size })
	return cands[0].path
}

const contactExpr = `CASE WHEN instr(hdl.id, '@') > 0 THEN hdl.id ELSE substr(hdl.id, -10) END`

const contactNameExprs = `
	replace(
		trim(COALESCE(rcrd.ZFIRSTNAME, '') || ' ' || COALESCE(rcrd.ZMIDDLENAME, '') || ' ' || COALESCE(rcrd.ZLASTNAME, '')),
		'  ', ' ') AS sender,
	rcrd.ZORGANIZATION AS org`

const contactJoins = `
LEFT JOIN adb.ZABCDPHONENUMBER pnmbr
	ON substr(replace(replace(replace(replace(pnmbr.ZFULLNUMBER, '-', ''), ' ', ''), '(', ''), ')', ''), -10) = ` + contactExpr + `
LEFT JOIN adb.ZABCDEMAILADDRESS eml
	ON eml.ZADDRESSNORMALIZED = hdl.id
LEFT JOIN adb.ZABCDRECORD rcrd
	ON (rcrd.Z_PK = pnmbr.ZOWNER OR rcrd.Z_PK = eml.ZOWNER)`

func unreadQuery(contacts bool) string {
	names, joins := "NULL AS sender, NULL AS org", ""
	if contacts {
		names, joins = contactNameExprs, contactJoins
	}
	return `
SELECT
	msg.guid,
	COALESCE(cht.chat_identifier, hdl.id),
	COALESCE(cht.display_name, ''),
	msg.date,
	` + contactExpr + ` AS contact,
	` + names + `,
	msg.cache_has_attachments,
	COALESCE(atc.mime_type, ''),
	COALESCE(atc.filename, ''),
	msg.text
FROM message msg
INNER JOIN handle hdl ON hdl.ROWID = msg.handle_id
LEFT JOIN chat_message_join cmj ON cmj.message_id = msg.ROWID
LEFT JOIN chat cht ON cht.ROWID = cmj.chat_id
LEFT JOIN message_attachment_join maj ON (maj.message_id = msg.ROWID AND msg.cache_has_attachments = 1)
LEFT JOIN attachment atc ON atc.ROWID = maj.attachment_id` + joins + `
WHERE msg.is_read = 0
	AND msg.is_from_me != 1
	AND (msg.text IS NOT NULL OR msg.cache_has_attachments = 1)
ORDER BY msg.date`
}

func rosterQuery(contacts bool) string {
	names, joins := "NULL AS sender, NULL AS org", ""
	if contacts {
		names, joins = contactNameExprs, contactJoins
	}
	return `
SELECT
	` + contactExpr + ` AS contact,
	` + names + `
FROM message msg
INNER JOIN handle hdl ON hdl.ROWID = msg.handle_id
LEFT JOIN chat_message_join cmj ON cmj.message_id = msg.ROWID
LEFT JOIN chat cht ON cht.ROWID = cmj.chat_id` + joins + `
WHERE cht.chat_identifier = ?
ORDER BY msg.date DESC
LIMIT ?`
}
