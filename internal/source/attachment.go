package source

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
)

// AttachmentPreviewer renders an attachment as an inline image. It returns ""
// whenever no preview can be produced; it never fails a fetch.
type AttachmentPreviewer interface {
	Preview(mimeType, path string) string
}

// ImagePreviewer base64 encodes image attachments the menubar host can show
// directly.
type ImagePreviewer struct {
	MaxBytes int64
}

var previewTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

func (p ImagePreviewer) Preview(mimeType, path string) string {
	if !previewTypes[strings.ToLower(mimeType)] || path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		path = filepath.Join(home, path[2:])
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	if p.MaxBytes > 0 && info.Size() > p.MaxBytes {
		return ""
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(b)
}
