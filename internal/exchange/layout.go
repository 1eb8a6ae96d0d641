// Package exchange owns the shared exchange folder: where it lives, how it
// is laid out, how triggers are published into it and how old processed
// markers are swept out of it.
//
// Layout:
//
//	<exchange_folder>/
//	  blender_triggers/    written by the Blender side
//	  cascadeur_triggers/  written by the Cascadeur side
//	  fbx/ json/           copied artifacts, named by file extension
//
// All filesystem access goes through an afero.Fs so the same code runs
// against the OS or an in-memory filesystem.
package exchange

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Role identifies which side of the exchange a process plays.
type Role string

const (
	RoleBlender   Role = "blender"
	RoleCascadeur Role = "cascadeur"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBlender, RoleCascadeur:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q: must be %q or %q", s, RoleBlender, RoleCascadeur)
	}
}

// Peer returns the other side of the exchange.
func (r Role) Peer() Role {
	if r == RoleBlender {
		return RoleCascadeur
	}
	return RoleBlender
}

// TriggerDirName returns "<role>_triggers".
func (r Role) TriggerDirName() string {
	return string(r) + "_triggers"
}

// Layout resolves paths inside one exchange folder.
type Layout struct {
	Root string
}

// TriggerDir is the folder the given role writes its triggers into.
func (l Layout) TriggerDir(r Role) string {
	return filepath.Join(l.Root, r.TriggerDirName())
}

// ArtifactDir is the subfolder for copied files of the given kind
// (file extension without the dot, e.g. "fbx").
func (l Layout) ArtifactDir(kind string) string {
	return filepath.Join(l.Root, strings.ToLower(strings.TrimPrefix(kind, ".")))
}

// Ensure creates the root and both trigger folders.
func (l Layout) Ensure(fs afero.Fs) error {
	for _, dir := range []string{l.Root, l.TriggerDir(RoleBlender), l.TriggerDir(RoleCascadeur)} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
