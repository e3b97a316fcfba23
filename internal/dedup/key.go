// Package dedup decides whether unread messages warrant a notification and
// what the processed-message store should hold afterwards.
package dedup

import (
	"strings"

	"github.com/google/uuid"

	"msgbar/internal/model"
)

// keyNamespace roots all record keys. Changing it invalidates every stored key.
var keyNamespace = uuid.MustParse("6f1c2b1e-3a57-4f0e-9d8e-5b7f2a4c9e11")

// Key derives the stable record key for a message id. Ids are compared
// case-insensitively and namespaced by source so equal ids from different
// sources never collide.
func Key(source model.SourceType, id string) string {
	ns := uuid.NewSHA1(keyNamespace, []byte(source))
	return uuid.NewSHA1(ns, []byte(strings.ToLower(id))).String()
}
