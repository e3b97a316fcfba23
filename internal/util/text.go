package util

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Ellipsis marks a truncated preview.
const Ellipsis = "..."

// FirstNonEmpty returns the first value that is not blank after trimming.
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// CleanBody collapses line breaks into single spaces and trims the result.
// A nil body is treated as empty.
func CleanBody(body *string) string {
	if body == nil {
		return ""
	}
	return strings.TrimSpace(lineBreaks.Replace(*body))
}

// Truncate clips s to width display cells and appends Ellipsis.
func Truncate(s string, width int) string {
	if width < 0 {
		width = 0
	}
	return runewidth.Truncate(s, width, "") + Ellipsis
}

// WrapWords splits s into lines no wider than width cells without breaking
// words. A single word wider than width gets a line of its own.
func WrapWords(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var (
		lines []string
		cur   strings.Builder
		curW  int
	)
	for _, w := range words {
		ww := runewidth.StringWidth(w)
		if curW > 0 && curW+1+ww > width {
			lines = append(lines, cur.String())
			cur.Reset()
			curW = 0
		}
		if curW > 0 {
			cur.WriteByte(' ')
			curW++
		}
		cur.WriteString(w)
		curW += ww
	}
	if curW > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}

// DisplayWidth is the number of terminal cells s occupies.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(s)
}
