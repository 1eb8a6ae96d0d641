package processor

import (
	"context"
	"fmt"

	"github.com/roach88/cascbridge/internal/keyframes"
)

// Level is the severity of a user-facing report.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Host is the application the processor drives. Every method is called
// from the main loop goroutine only.
type Host interface {
	// ImportObject imports one exported object.
	ImportObject(ctx context.Context, fbxPath, objectName string) error

	// ImportAnimation imports an animation for objectName and keeps the
	// marked frames as keys.
	ImportAnimation(ctx context.Context, fbxPath, objectName string, marks *keyframes.Set) error

	// ImportScene imports one exported scene.
	ImportScene(ctx context.Context, fbxPath string) error

	// CleanKeyframes drops every key except the marked frames.
	CleanKeyframes(ctx context.Context, marks *keyframes.Set) error

	// Report shows msg to the user.
	Report(level Level, msg string)
}
