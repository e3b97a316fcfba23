package gmail

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	gmailv1 "google.golang.org/api/gmail/v1"
)

// partBody returns the decoded body of the first part of mimeType with
// inline data. Direct children of a multipart are checked before recursing,
// so the text/plain of a multipart/alternative wins over nested parts.
func partBody(part *gmailv1.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.EqualFold(part.MimeType, mimeType) && part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}
	for _, sub := range part.Parts {
		if strings.EqualFold(sub.MimeType, mimeType) {
			if body := partBody(sub, mimeType); body != "" {
				return body
			}
		}
	}
	for _, sub := range part.Parts {
		if body := partBody(sub, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// attachmentKind returns the MIME type of the first part that carries a
// filename, or "" when the message has no attachments.
func attachmentKind(part *gmailv1.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.Filename != "" {
		return part.MimeType
	}
	for _, sub := range part.Parts {
		if kind := attachmentKind(sub); kind != "" {
			return kind
		}
	}
	return ""
}

var blockEnds = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Tr: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// htmlText extracts readable text from an HTML body. Entities are decoded,
// script and style contents dropped and block elements end a line.
func htmlText(src string) string {
	var (
		b    strings.Builder
		skip int
		z    = html.NewTokenizer(strings.NewReader(src))
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return collapseBlankLines(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken:
			name, _ := z.TagName()
			switch a := atom.Lookup(name); {
			case a == atom.Script || a == atom.Style:
				skip++
			case a == atom.Br:
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if name, _ := z.TagName(); atom.Lookup(name) == atom.Br {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch a := atom.Lookup(name); {
			case (a == atom.Script || a == atom.Style) && skip > 0:
				skip--
			case blockEnds[a]:
				b.WriteByte('\n')
			}
		}
	}
}

func collapseBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

// decodeBase64URL accepts padded and unpadded base64url, Gmail sends both.
func decodeBase64URL(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
