package host

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/roach88/cascbridge/internal/clock"
	"github.com/roach88/cascbridge/internal/config"
	"github.com/roach88/cascbridge/internal/exchange"
	"github.com/roach88/cascbridge/internal/keyframes"
	"github.com/roach88/cascbridge/internal/processor"
)

// Environment variables handed to Cascadeur commands.
const (
	EnvFBXPath    = "CASCBRIDGE_FBX_PATH"
	EnvObjectName = "CASCBRIDGE_OBJECT_NAME"
	EnvJSONPath   = "CASCBRIDGE_JSON_PATH"
	EnvExchange   = "CASCBRIDGE_EXCHANGE_FOLDER"
)

// ScriptHost drives Cascadeur by running one Python command per trigger.
// Keyframe sets are written into the exchange json/ folder and passed by
// path.
type ScriptHost struct {
	launcher *Launcher
	scripts  config.Scripts
	fs       afero.Fs
	layout   exchange.Layout
	clock    clock.Clock
	logger   *slog.Logger
}

var _ processor.Host = (*ScriptHost)(nil)

// NewScriptHost creates a host running scripts through launcher.
func NewScriptHost(launcher *Launcher, scripts config.Scripts, fs afero.Fs, layout exchange.Layout, c clock.Clock, logger *slog.Logger) *ScriptHost {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScriptHost{
		launcher: launcher,
		scripts:  scripts,
		fs:       fs,
		layout:   layout,
		clock:    c,
		logger:   logger,
	}
}

func (h *ScriptHost) run(command string, env map[string]string) error {
	env[EnvExchange] = h.layout.Root
	return h.launcher.RunScript(command, env)
}

// ImportObject runs the import_object command.
func (h *ScriptHost) ImportObject(_ context.Context, fbxPath, objectName string) error {
	return h.run(h.scripts.ImportObject, map[string]string{
		EnvFBXPath:    fbxPath,
		EnvObjectName: objectName,
	})
}

// ImportAnimation saves marks next to the other artifacts and runs the
// import_animation command.
func (h *ScriptHost) ImportAnimation(_ context.Context, fbxPath, objectName string, marks *keyframes.Set) error {
	jsonPath, err := h.saveMarks(marks)
	if err != nil {
		return err
	}
	return h.run(h.scripts.ImportAnimation, map[string]string{
		EnvFBXPath:    fbxPath,
		EnvObjectName: objectName,
		EnvJSONPath:   jsonPath,
	})
}

// ImportScene runs the import_scene command.
func (h *ScriptHost) ImportScene(_ context.Context, fbxPath string) error {
	return h.run(h.scripts.ImportScene, map[string]string{EnvFBXPath: fbxPath})
}

// CleanKeyframes saves marks and runs the keyframe cleaner command.
func (h *ScriptHost) CleanKeyframes(_ context.Context, marks *keyframes.Set) error {
	jsonPath, err := h.saveMarks(marks)
	if err != nil {
		return err
	}
	return h.run(h.scripts.CleanKeyframes, map[string]string{EnvJSONPath: jsonPath})
}

// Report logs msg at the matching level.
func (h *ScriptHost) Report(level processor.Level, msg string) {
	h.logger.Log(context.Background(), slogLevel(level), msg)
}

func (h *ScriptHost) saveMarks(marks *keyframes.Set) (string, error) {
	path, err := exchange.ExportPath(h.fs, h.layout, "json", h.clock.Now())
	if err != nil {
		return "", fmt.Errorf("save keyframes: %w", err)
	}
	return keyframes.Save(h.fs, path, marks)
}
