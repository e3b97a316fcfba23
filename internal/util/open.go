package util

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// openSchemes are the link schemes message sources produce.
var openSchemes = map[string]bool{
	"http":     true,
	"https":    true,
	"sms":      true,
	"messages": true,
	"slack":    true,
}

// OpenURL opens a message link with the platform's default handler.
func OpenURL(link string) error {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{link}
	case "linux":
		cmd = "xdg-open"
		args = []string{link}
	case "windows":
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", link}
	default:
		return fmt.Errorf("unsupported platform %s", runtime.GOOS)
	}

	// Validate URL scheme to prevent command injection
	u, err := url.Parse(link)
	if err != nil || !openSchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("refusing to open link: %s", link)
	}

	return exec.Command(cmd, args...).Start()
}
