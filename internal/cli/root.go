// Package cli implements the cascbridge command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/cascbridge/internal/clock"
	"github.com/roach88/cascbridge/internal/config"
	"github.com/roach88/cascbridge/internal/exchange"
	"github.com/roach88/cascbridge/internal/host"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	EnvFile    string
	Role       string // overrides the configured role when set

	// Fs is the filesystem every command works on. Nil means the OS.
	Fs afero.Fs
	// Clock stamps triggers and exports. Nil means the wall clock.
	Clock clock.Clock
	// Starter replaces process creation for Cascadeur launches (for testing).
	Starter host.StartFunc
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the cascbridge CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cascbridge",
		Short: "Blender to Cascadeur file exchange",
		Long: `cascbridge moves requests between Blender and Cascadeur through a shared
exchange folder. Each side writes trigger files into its own
<role>_triggers folder and watches the folder of its peer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file with CASCBRIDGE_* overrides")
	cmd.PersistentFlags().StringVar(&opts.Role, "role", "", "role of this process (blender|cascadeur)")

	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewCopyCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewLaunchCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are rendered in the selected format: JSON on stdout, text on
// stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	code := GetExitCode(err)
	formatter := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		formatter.Writer = stdout
	}
	var verrs config.ValidationErrors
	var details any
	if errors.As(err, &verrs) {
		details = verrs
	}
	_ = formatter.Error(errorCode(code), err.Error(), details)
	return code
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) fs() afero.Fs {
	if o.Fs == nil {
		return afero.NewOsFs()
	}
	return o.Fs
}

func (o *RootOptions) clock() clock.Clock {
	if o.Clock == nil {
		return clock.Real()
	}
	return o.Clock
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes text logs to the command's stderr; --verbose enables debug.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadConfig merges defaults, the config file, the environment and the
// global flags, then validates the result.
func (o *RootOptions) loadConfig() (config.Config, error) {
	cfg, err := config.LoadAll(o.fs(), o.ConfigPath, o.EnvFile)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.Role != "" {
		role, err := exchange.ParseRole(o.Role)
		if err != nil {
			return cfg, WrapExitError(ExitCommandError, "invalid --role", err)
		}
		cfg.Role = role
	}
	return cfg, nil
}

// resolveLayout resolves the exchange folder for cfg. A fallback to the
// temp folder is logged, not returned.
func resolveLayout(fs afero.Fs, cfg config.Config, logger *slog.Logger) (exchange.Layout, exchange.Resolution, error) {
	res, err := exchange.Resolve(fs, cfg.ResolveOptions())
	if err != nil {
		return exchange.Layout{}, res, WrapExitError(ExitFailure, "failed to resolve exchange folder", err)
	}
	if res.Fallback != nil {
		logger.Warn("using temp exchange folder", "path", res.Path, "reason", res.Fallback)
	}
	return exchange.Layout{Root: res.Path}, res, nil
}

// newLauncher builds the Cascadeur launcher, looking in the default
// install locations when no executable is configured.
func (o *RootOptions) newLauncher(cfg config.Config, logger *slog.Logger) *host.Launcher {
	fs := o.fs()
	exe := cfg.CascadeurExe
	if exe == "" {
		home, _ := os.UserHomeDir()
		exe = host.FindDefault(fs, runtime.GOOS, home)
	}

	opts := []host.LauncherOption{host.WithFs(fs), host.WithLauncherLogger(logger)}
	if o.Starter != nil {
		opts = append(opts, host.WithStarter(o.Starter))
	}
	return host.NewLauncher(exe, opts...)
}
