package exchange

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/roach88/cascbridge/internal/trigger"
)

// DefaultRetention is how long processed markers are kept.
const DefaultRetention = 24 * time.Hour

// SweepResult counts what one sweep did.
type SweepResult struct {
	Scanned int // processed markers and leftover temp files looked at
	Removed int
	Failed  int // markers that could not be inspected or deleted
}

// Sweep deletes processed markers older than maxAge from both trigger
// folders, together with temp files an interrupted atomic write left
// behind. Missing folders count as nothing to clean and per-file
// failures are tallied, not returned. An unreadable trigger folder does
// not stop the other one from being swept; those errors are joined.
func Sweep(fs afero.Fs, layout Layout, maxAge time.Duration, now time.Time) (SweepResult, error) {
	var (
		res  SweepResult
		errs []error
	)
	cutoff := now.Add(-maxAge)

	for _, role := range []Role{RoleBlender, RoleCascadeur} {
		dir := layout.TriggerDir(role)
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("sweep %s: %w", dir, err))
			}
			continue
		}

		for _, info := range entries {
			if info.IsDir() || !sweepable(info.Name()) {
				continue
			}
			res.Scanned++
			if !info.ModTime().Before(cutoff) {
				continue
			}
			if err := fs.Remove(filepath.Join(dir, info.Name())); err != nil && !os.IsNotExist(err) {
				res.Failed++
				continue
			}
			res.Removed++
		}
	}
	return res, errors.Join(errs...)
}

func sweepable(name string) bool {
	if trigger.IsProcessed(name) {
		return true
	}
	return strings.HasPrefix(name, pendingPrefix) && strings.HasSuffix(name, pendingSuffix)
}
