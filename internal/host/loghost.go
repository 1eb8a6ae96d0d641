package host

import (
	"context"
	"log/slog"

	"github.com/roach88/cascbridge/internal/keyframes"
	"github.com/roach88/cascbridge/internal/processor"
)

// LogHost acknowledges requests by logging them. It stands in for a host
// that has no scripting entry point reachable from this process, such as
// Blender, so the exchange can still be drained and journaled.
type LogHost struct {
	logger *slog.Logger
}

var _ processor.Host = (*LogHost)(nil)

// NewLogHost creates a LogHost. A nil logger means slog.Default().
func NewLogHost(logger *slog.Logger) *LogHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHost{logger: logger}
}

func (h *LogHost) ImportObject(_ context.Context, fbxPath, objectName string) error {
	h.logger.Info("import object requested", "fbx", fbxPath, "object", objectName)
	return nil
}

func (h *LogHost) ImportAnimation(_ context.Context, fbxPath, objectName string, marks *keyframes.Set) error {
	h.logger.Info("import animation requested", "fbx", fbxPath, "object", objectName, "marked", marks.String())
	return nil
}

func (h *LogHost) ImportScene(_ context.Context, fbxPath string) error {
	h.logger.Info("import scene requested", "fbx", fbxPath)
	return nil
}

func (h *LogHost) CleanKeyframes(_ context.Context, marks *keyframes.Set) error {
	h.logger.Info("clean keyframes requested", "marked", marks.String())
	return nil
}

func (h *LogHost) Report(level processor.Level, msg string) {
	h.logger.Log(context.Background(), slogLevel(level), msg)
}

func slogLevel(level processor.Level) slog.Level {
	switch level {
	case processor.LevelError:
		return slog.LevelError
	case processor.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
