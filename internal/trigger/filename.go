package trigger

import (
	"fmt"
	"strings"
	"time"
)

const (
	// FilePrefix starts every pending trigger file name.
	FilePrefix = "trigger_"
	// FileExt ends every pending trigger file name.
	FileExt = ".json"
	// ProcessedSuffix is appended once a trigger has been handled.
	ProcessedSuffix = ".processed"
)

// ValidActionName reports whether action is non-empty and made only of
// lowercase ASCII letters, digits and underscores, so it can be embedded
// in a file name.
func ValidActionName(action string) bool {
	if action == "" {
		return false
	}
	for _, r := range action {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return true
}

// FileName returns trigger_<action>_<unix-seconds>.json.
// Two triggers for the same action in the same second share a name.
func FileName(action string, t time.Time) string {
	return fmt.Sprintf("%s%s_%d%s", FilePrefix, action, t.Unix(), FileExt)
}

// CollisionName derives the n-th alternative for a taken file name:
// trigger_x_1000.json becomes trigger_x_1000-n.json.
func CollisionName(name string, n int) string {
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, FileExt), n, FileExt)
}

// IsPending reports whether name is an unhandled trigger file.
func IsPending(name string) bool {
	return strings.HasPrefix(name, FilePrefix) && strings.HasSuffix(name, FileExt)
}

// IsProcessed reports whether name carries the processed marker suffix.
func IsProcessed(name string) bool {
	return strings.HasSuffix(name, ProcessedSuffix)
}

// ProcessedPath returns the tombstone path for a trigger file.
func ProcessedPath(path string) string {
	return path + ProcessedSuffix
}
