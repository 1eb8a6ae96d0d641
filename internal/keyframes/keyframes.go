// Package keyframes models the per-scene Keyframe Mark Set: which frames
// an animator has marked for export or cleanup.
//
// A Set maps a frame number to its marked flag. Frame numbers are unique
// and insertion order is irrelevant; only the flag matters when the set
// is turned into a trigger payload.
package keyframes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Payload is the wire form of the marked frames inside a trigger:
// frame number as a decimal string mapped to an (empty) metadata object.
//
//	{"12": {}, "40": {}}
type Payload map[string]map[string]any

// Set is a Keyframe Mark Set. The zero value is not usable; use New.
type Set struct {
	frames map[int]bool
}

// New creates a set containing the given frames, all unmarked.
func New(frames ...int) *Set {
	s := &Set{frames: make(map[int]bool, len(frames))}
	for _, f := range frames {
		s.frames[f] = false
	}
	return s
}

// Marked creates a set containing the given frames, all marked.
func Marked(frames ...int) *Set {
	s := New()
	for _, f := range frames {
		s.frames[f] = true
	}
	return s
}

// Mark marks frame, adding it if absent. It reports whether the frame was
// newly added.
func (s *Set) Mark(frame int) bool {
	_, existed := s.frames[frame]
	s.frames[frame] = true
	return !existed
}

// Clear unmarks frame. It reports false when the frame is unknown.
func (s *Set) Clear(frame int) bool {
	if _, ok := s.frames[frame]; !ok {
		return false
	}
	s.frames[frame] = false
	return true
}

// MarkAll marks every known frame and returns how many changed.
func (s *Set) MarkAll() int {
	n := 0
	for f, marked := range s.frames {
		if !marked {
			s.frames[f] = true
			n++
		}
	}
	return n
}

// ClearAll unmarks every known frame and returns how many changed.
func (s *Set) ClearAll() int {
	n := 0
	for f, marked := range s.frames {
		if marked {
			s.frames[f] = false
			n++
		}
	}
	return n
}

// IsMarked reports whether frame is present and marked.
func (s *Set) IsMarked(frame int) bool {
	return s.frames[frame]
}

// Len returns the number of known frames, marked or not.
func (s *Set) Len() int {
	return len(s.frames)
}

// MarkedFrames returns the marked frames in ascending order.
func (s *Set) MarkedFrames() []int {
	out := make([]int, 0, len(s.frames))
	for f, marked := range s.frames {
		if marked {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return out
}

// Filter splits frames into those to keep (marked) and those to remove.
// Duplicates in frames are preserved so callers can count removed keys
// per curve.
func (s *Set) Filter(frames []int) (kept, removed []int) {
	for _, f := range frames {
		if s.frames[f] {
			kept = append(kept, f)
		} else {
			removed = append(removed, f)
		}
	}
	return kept, removed
}

// Payload returns the marked frames in trigger wire form.
func (s *Set) Payload() Payload {
	p := make(Payload)
	for _, f := range s.MarkedFrames() {
		p[strconv.Itoa(f)] = map[string]any{}
	}
	return p
}

// String renders the marked frames as a comma separated list.
func (s *Set) String() string {
	frames := s.MarkedFrames()
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = strconv.Itoa(f)
	}
	return strings.Join(parts, ",")
}

// FromPayload builds a set with every payload frame marked.
// Keys must be decimal integers.
func FromPayload(p Payload) (*Set, error) {
	s := New()
	for key := range p {
		f, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("invalid frame %q: %w", key, err)
		}
		s.frames[f] = true
	}
	return s, nil
}

// ParseList parses a comma separated frame list ("1,5, 12") into a set of
// marked frames. Empty items are skipped.
func ParseList(list string) (*Set, error) {
	s := New()
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		f, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("invalid frame %q: %w", item, err)
		}
		s.frames[f] = true
	}
	return s, nil
}

// Load reads a keyframe metadata file written by Save.
func Load(fs afero.Fs, path string) (*Set, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read keyframes: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse keyframes %s: %w", path, err)
	}
	return FromPayload(p)
}

// Save writes the marked frames as a metadata file, appending ".json"
// when path has no such extension. It returns the path written.
func Save(fs afero.Fs, path string, s *Set) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		path += ".json"
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("save keyframes: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Payload()); err != nil {
		return "", fmt.Errorf("save keyframes: %w", err)
	}
	if err := afero.WriteFile(fs, path, bytes.TrimRight(buf.Bytes(), "\n"), os.FileMode(0o644)); err != nil {
		return "", fmt.Errorf("save keyframes: %w", err)
	}
	return path, nil
}
