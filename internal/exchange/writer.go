package exchange

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/roach88/cascbridge/internal/clock"
	"github.com/roach88/cascbridge/internal/trigger"
)

// WriteMode controls how a trigger file is published.
type WriteMode string

const (
	// WriteAtomic writes to a hidden temporary name and renames it into
	// place, so a watcher never sees a partially written trigger.
	WriteAtomic WriteMode = "atomic"
	// WritePlain writes the final name directly, like older producers.
	WritePlain WriteMode = "plain"
)

const (
	pendingPrefix = ".pending-"
	pendingSuffix = ".tmp"
)

// maxCollisions bounds the search for a free name within one second.
const maxCollisions = 1000

// Writer publishes triggers into the writing role's trigger folder.
type Writer struct {
	fs     afero.Fs
	layout Layout
	role   Role
	clock  clock.Clock
	mode   WriteMode
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterClock sets the clock used for timestamps and file names.
func WithWriterClock(c clock.Clock) WriterOption {
	return func(w *Writer) { w.clock = c }
}

// WithWriteMode selects atomic (default) or plain publication.
func WithWriteMode(m WriteMode) WriterOption {
	return func(w *Writer) { w.mode = m }
}

// NewWriter creates a writer for role inside layout.
func NewWriter(fs afero.Fs, layout Layout, role Role, opts ...WriterOption) *Writer {
	w := &Writer{
		fs:     fs,
		layout: layout,
		role:   role,
		clock:  clock.Real(),
		mode:   WriteAtomic,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteTrigger writes one trigger with default options and returns its path.
func WriteTrigger(fs afero.Fs, folder string, role Role, action string, payload map[string]any) (string, error) {
	return NewWriter(fs, Layout{Root: folder}, role).Write(action, payload)
}

// Write builds {action, timestamp=now, data=payload}, stores it as
// trigger_<action>_<unix>.json and returns the path. When that name is
// already taken within the same second a -N suffix is added.
func (w *Writer) Write(action string, payload map[string]any) (string, error) {
	if action == "" {
		return "", errors.New("write trigger: action is required")
	}
	if !trigger.ValidActionName(action) {
		return "", fmt.Errorf("write trigger: invalid action name %q: only a-z, 0-9 and _ are allowed", action)
	}

	dir := w.layout.TriggerDir(w.role)
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("write trigger: create %s: %w", dir, err)
	}

	now := w.clock.Now()
	data, err := trigger.Encode(trigger.NewRecord(action, now, payload))
	if err != nil {
		return "", fmt.Errorf("write trigger: %w", err)
	}

	path, err := w.freePath(dir, trigger.FileName(action, now))
	if err != nil {
		return "", err
	}

	if w.mode == WritePlain {
		if err := afero.WriteFile(w.fs, path, data, 0o644); err != nil {
			return "", fmt.Errorf("write trigger: %w", err)
		}
		return path, nil
	}

	tmp := filepath.Join(dir, pendingPrefix+uuid.NewString()+pendingSuffix)
	if err := afero.WriteFile(w.fs, tmp, data, 0o644); err != nil {
		_ = w.fs.Remove(tmp)
		return "", fmt.Errorf("write trigger: %w", err)
	}
	if err := w.fs.Rename(tmp, path); err != nil {
		_ = w.fs.Remove(tmp)
		return "", fmt.Errorf("write trigger: publish %s: %w", path, err)
	}
	return path, nil
}

// WriteCommand writes a typed command after validating it.
func (w *Writer) WriteCommand(cmd trigger.Command) (string, error) {
	if err := cmd.Validate(); err != nil {
		return "", fmt.Errorf("write trigger: %w", err)
	}
	payload, err := trigger.PayloadOf(cmd)
	if err != nil {
		return "", fmt.Errorf("write trigger: %w", err)
	}
	return w.Write(string(cmd.Action()), payload)
}

// freePath returns dir/name, or the first free collision alternative.
// A processed tombstone with the same name also counts as taken.
func (w *Writer) freePath(dir, name string) (string, error) {
	candidate := name
	for n := 1; n <= maxCollisions; n++ {
		path := filepath.Join(dir, candidate)
		taken, err := w.exists(path)
		if err != nil {
			return "", fmt.Errorf("write trigger: %w", err)
		}
		if !taken {
			return path, nil
		}
		candidate = trigger.CollisionName(name, n)
	}
	return "", fmt.Errorf("write trigger: no free name for %s after %d attempts", name, maxCollisions)
}

func (w *Writer) exists(path string) (bool, error) {
	for _, p := range []string{path, trigger.ProcessedPath(path)} {
		_, err := w.fs.Stat(p)
		if err == nil {
			return true, nil
		}
		if !os.IsNotExist(err) {
			return false, err
		}
	}
	return false, nil
}
