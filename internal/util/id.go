package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier like "task_4f8c...". Prefixes keep
// ids self-describing in logs and the event trail.
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
