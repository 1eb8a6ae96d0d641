package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cascbridge/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Limit   int
	Prune   time.Duration
}

// HistoryResult lists journal entries, newest first.
type HistoryResult struct {
	Entries []journal.Entry `json:"entries"`
	Pruned  int64           `json:"pruned,omitempty"`
}

func (r HistoryResult) String() string {
	var b strings.Builder
	if r.Pruned > 0 {
		fmt.Fprintf(&b, "pruned %d entries\n", r.Pruned)
	}
	if len(r.Entries) == 0 {
		b.WriteString("no handled triggers")
		return b.String()
	}
	for i, e := range r.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %-13s  %-17s  %s",
			e.HandledAt.Format(time.RFC3339), e.Outcome, e.Action, e.Name)
		if e.Detail != "" {
			fmt.Fprintf(&b, "  %s", e.Detail)
		}
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List handled triggers from the journal",
		Long: `List the triggers recorded in the journal, newest first, with their
outcome: handled, missing_input, ignored, rejected or failed.

Example:
  cascbridge history --journal ./cascbridge.db --limit 50
  cascbridge history --prune 720h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum entries to show (0 for all)")
	cmd.Flags().DurationVar(&opts.Prune, "prune", 0, "first delete entries handled longer ago than this")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Journal
	if opts.Journal != "" {
		path = opts.Journal
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no journal configured: set journal in the config or pass --journal")
	}

	j, err := journal.Open(path)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to open journal", err)
	}
	defer j.Close()

	ctx := cmd.Context()
	var result HistoryResult
	if opts.Prune > 0 {
		if result.Pruned, err = j.Prune(ctx, opts.clock().Now().Add(-opts.Prune)); err != nil {
			return WrapExitError(ExitFailure, "failed to prune journal", err)
		}
	}
	if result.Entries, err = j.List(ctx, opts.Limit); err != nil {
		return WrapExitError(ExitFailure, "failed to read journal", err)
	}
	return opts.formatter(cmd).Success(result)
}
