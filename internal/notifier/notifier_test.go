package notifier

import (
	"strings"
	"testing"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		unread    int
		senders   []string
		wantTitle string
		wantBody  string
	}{
		{1, []string{"Ann"}, "Messages: 1 unread message", "Message from: Ann"},
		{3, []string{"Ann"}, "Messages: 3 unread messages", "Message from: Ann"},
		{2, []string{"Ann", "Bo"}, "Messages: 2 unread messages", "Messages from: Ann, Bo"},
	}
	for _, tc := range tests {
		title, body := Compose(tc.unread, tc.senders)
		if title != tc.wantTitle || body != tc.wantBody {
			t.Errorf("Compose(%d, %v) = %q, %q; want %q, %q", tc.unread, tc.senders, title, body, tc.wantTitle, tc.wantBody)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("a\n  b", 10); got != "a b" {
		t.Errorf("got %q", got)
	}
	got := truncate(strings.Repeat("x", 20), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("got %q", got)
	}
}
