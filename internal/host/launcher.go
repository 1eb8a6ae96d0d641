// Package host talks to the Cascadeur application: finding its executable,
// launching it and running its Python commands, and acting as the
// processor.Host that turns triggers into those commands.
package host

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

var (
	// ErrExecutableNotSet means no executable path is configured.
	ErrExecutableNotSet = errors.New("cascadeur executable path is not set")
	// ErrExecutableNotFound means the configured path does not exist.
	ErrExecutableNotFound = errors.New("cascadeur executable not found")
)

// StartFunc starts name with args and extra environment entries
// ("KEY=value") without waiting for it to finish.
type StartFunc func(name string, args []string, env []string) error

// StartProcess is the default StartFunc. The child is reaped in the
// background and keeps running after this process exits.
func StartProcess(name string, args []string, env []string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Launcher starts the Cascadeur executable.
type Launcher struct {
	exe    string
	fs     afero.Fs
	goos   string
	start  StartFunc
	logger *slog.Logger
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithStarter replaces process creation, for tests.
func WithStarter(f StartFunc) LauncherOption {
	return func(l *Launcher) {
		l.start = f
	}
}

// WithFs sets the filesystem used to check the executable path.
func WithFs(fs afero.Fs) LauncherOption {
	return func(l *Launcher) {
		l.fs = fs
	}
}

// WithGOOS overrides the target operating system layout.
func WithGOOS(goos string) LauncherOption {
	return func(l *Launcher) {
		l.goos = goos
	}
}

// WithLauncherLogger sets the logger. Default: slog.Default().
func WithLauncherLogger(logger *slog.Logger) LauncherOption {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLauncher creates a launcher for exe. On macOS exe may be the .app
// bundle.
func NewLauncher(exe string, opts ...LauncherOption) *Launcher {
	l := &Launcher{
		exe:    exe,
		fs:     afero.NewOsFs(),
		goos:   runtime.GOOS,
		start:  StartProcess,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DefaultCandidates lists the usual install locations for goos, most
// likely first. home expands "~".
func DefaultCandidates(goos, home string) []string {
	switch goos {
	case "windows":
		return []string{
			`C:\Program Files\Cascadeur\cascadeur.exe`,
			`C:\Program Files (x86)\Cascadeur\cascadeur.exe`,
		}
	case "darwin":
		return []string{
			"/Applications/Cascadeur.app",
			filepath.Join(home, "Applications", "Cascadeur.app"),
		}
	case "linux":
		return []string{
			"/opt/cascadeur/cascadeur",
			filepath.Join(home, "cascadeur", "cascadeur"),
		}
	default:
		return nil
	}
}

// FindDefault returns the first default candidate that exists, or "".
func FindDefault(fs afero.Fs, goos, home string) string {
	for _, p := range DefaultCandidates(goos, home) {
		if ok, _ := afero.Exists(fs, p); ok {
			return p
		}
	}
	return ""
}

// Executable returns the configured path.
func (l *Launcher) Executable() string {
	return l.exe
}

// Check reports why the executable cannot be used, or nil.
func (l *Launcher) Check() error {
	if l.exe == "" {
		return ErrExecutableNotSet
	}
	if ok, _ := afero.Exists(l.fs, l.exe); !ok {
		return fmt.Errorf("%w: %s", ErrExecutableNotFound, l.exe)
	}
	return nil
}

// Valid reports whether the executable path is set and exists.
func (l *Launcher) Valid() bool {
	return l.Check() == nil
}

func (l *Launcher) isBundle() bool {
	return l.goos == "darwin" && strings.HasSuffix(l.exe, ".app")
}

// InstallDir is the Cascadeur installation root: the .app bundle on macOS,
// the executable's folder elsewhere.
func (l *Launcher) InstallDir() (string, error) {
	if err := l.Check(); err != nil {
		return "", err
	}
	if l.isBundle() {
		return l.exe, nil
	}
	return filepath.Dir(l.exe), nil
}

// CommandsDir is where Cascadeur looks up Python commands.
func (l *Launcher) CommandsDir() (string, error) {
	dir, err := l.InstallDir()
	if err != nil {
		return "", err
	}
	resources := filepath.Join(dir, "resources")
	if l.goos == "darwin" {
		resources = filepath.Join(dir, "Contents", "MacOS", "resources")
	}
	return filepath.Join(resources, "scripts", "python", "commands"), nil
}

// binary is the file actually executed.
func (l *Launcher) binary() string {
	if l.isBundle() {
		return filepath.Join(l.exe, "Contents", "MacOS", "cascadeur")
	}
	return l.exe
}

// Start launches Cascadeur.
func (l *Launcher) Start() error {
	if err := l.Check(); err != nil {
		return fmt.Errorf("start cascadeur: %w", err)
	}
	l.logger.Info("starting cascadeur", "exe", l.exe)
	if err := l.start(l.binary(), nil, nil); err != nil {
		return fmt.Errorf("start cascadeur: %w", err)
	}
	return nil
}

// RunScript launches Cascadeur with --run-script command. env entries are
// added to the child's environment.
func (l *Launcher) RunScript(command string, env map[string]string) error {
	if command == "" {
		return errors.New("run script: command is required")
	}
	if err := l.Check(); err != nil {
		return fmt.Errorf("run script %s: %w", command, err)
	}

	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	slices.Sort(pairs)

	l.logger.Info("running cascadeur command", "command", command)
	if err := l.start(l.binary(), []string{"--run-script", command}, pairs); err != nil {
		return fmt.Errorf("run script %s: %w", command, err)
	}
	return nil
}
