// Package notifier raises desktop notifications for new unread messages.
package notifier

import (
	"fmt"
	"strings"

	"github.com/gen2brain/beeep"
)

// Notifier delivers one notification.
type Notifier interface {
	Notify(title, body string) error
}

// maxBody keeps the banner readable; the OS clips longer text anyway.
const maxBody = 200

// Desktop sends notifications through the OS notification center.
type Desktop struct {
	// Icon is an optional path to an image shown next to the text.
	Icon string
}

func (d Desktop) Notify(title, body string) error {
	if err := beeep.Notify(title, truncate(body, maxBody), d.Icon); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}

// Compose builds the notification text for unread messages from senders.
func Compose(unread int, senders []string) (title, body string) {
	noun := "message"
	if unread > 1 {
		noun = "messages"
	}
	title = fmt.Sprintf("Messages: %d unread %s", unread, noun)

	prefix := "Message from: "
	if len(senders) > 1 && unread > 1 {
		prefix = "Messages from: "
	}
	return title, prefix + strings.Join(senders, ", ")
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
