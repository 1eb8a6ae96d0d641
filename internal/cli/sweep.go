package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cascbridge/internal/exchange"
)

// SweepOptions holds flags for the sweep command.
type SweepOptions struct {
	*RootOptions
	MaxAge time.Duration
}

// SweepResult reports one cleanup pass.
type SweepResult struct {
	Path    string `json:"path"`
	MaxAge  string `json:"max_age"`
	Scanned int    `json:"scanned"`
	Removed int    `json:"removed"`
	Failed  int    `json:"failed"`
}

func (r SweepResult) String() string {
	return fmt.Sprintf("removed %d of %d processed triggers older than %s (%d failed)",
		r.Removed, r.Scanned, r.MaxAge, r.Failed)
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete old processed triggers",
		Long: `Delete *.processed trigger markers older than the cleanup interval from
both trigger folders. Pending triggers are never touched.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.MaxAge, "max-age", 0, "age limit (default: cleanup_hours)")

	return cmd
}

func runSweep(opts *SweepOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	fs := opts.fs()
	layout, _, err := resolveLayout(fs, cfg, logger)
	if err != nil {
		return err
	}

	maxAge := cfg.Retention()
	if opts.MaxAge > 0 {
		maxAge = opts.MaxAge
	}

	res, err := exchange.Sweep(fs, layout, maxAge, opts.clock().Now())
	if err != nil {
		return WrapExitError(ExitFailure, "sweep failed", err)
	}
	return opts.formatter(cmd).Success(SweepResult{
		Path:    layout.Root,
		MaxAge:  maxAge.String(),
		Scanned: res.Scanned,
		Removed: res.Removed,
		Failed:  res.Failed,
	})
}
