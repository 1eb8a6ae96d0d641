package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// LaunchOptions holds flags for the launch command.
type LaunchOptions struct {
	*RootOptions
	Script string
}

// LaunchResult reports what was started.
type LaunchResult struct {
	Executable  string `json:"executable"`
	CommandsDir string `json:"commands_dir"`
	Script      string `json:"script,omitempty"`
}

func (r LaunchResult) String() string {
	if r.Script != "" {
		return fmt.Sprintf("started %s --run-script %s", r.Executable, r.Script)
	}
	return "started " + r.Executable
}

// NewLaunchCommand creates the launch command.
func NewLaunchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LaunchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start Cascadeur",
		Long: `Start the configured Cascadeur executable, or the first one found in the
default install locations. With --script, start it with --run-script so
it executes one Python command from its commands folder.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLaunch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Script, "script", "", "Cascadeur command to run, e.g. commands.externals.import_scene")

	return cmd
}

func runLaunch(opts *LaunchOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	launcher := opts.newLauncher(cfg, logger)
	commandsDir, err := launcher.CommandsDir()
	if err != nil {
		return WrapExitError(ExitCommandError, "cascadeur executable unavailable", err)
	}

	if opts.Script != "" {
		err = launcher.RunScript(opts.Script, nil)
	} else {
		err = launcher.Start()
	}
	if err != nil {
		return WrapExitError(ExitFailure, "failed to start cascadeur", err)
	}

	return opts.formatter(cmd).Success(LaunchResult{
		Executable:  launcher.Executable(),
		CommandsDir: commandsDir,
		Script:      opts.Script,
	})
}
