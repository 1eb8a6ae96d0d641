package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/roach88/cascbridge/internal/config"
	"github.com/roach88/cascbridge/internal/exchange"
	"github.com/roach88/cascbridge/internal/host"
	"github.com/roach88/cascbridge/internal/journal"
	"github.com/roach88/cascbridge/internal/processor"
	"github.com/roach88/cascbridge/internal/watcher"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Once    bool
	Journal string
}

// WatchResult summarises a single poll (--once).
type WatchResult struct {
	Dir       string `json:"dir"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
	Malformed int    `json:"malformed"`
	Handled   int    `json:"handled"`
	Swept     int    `json:"swept"`
}

func (r WatchResult) String() string {
	return fmt.Sprintf("%s: delivered=%d handled=%d failed=%d malformed=%d swept=%d",
		r.Dir, r.Delivered, r.Handled, r.Failed, r.Malformed, r.Swept)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the peer's trigger folder and handle requests",
		Long: `Poll the peer's trigger folder and hand every trigger to the host on a
single main loop. The cascadeur role runs the configured Cascadeur
commands; the blender role logs the requests it receives.

Processed triggers are renamed to *.processed and swept once older than
cleanup_hours. When a journal is configured every outcome is recorded.

Example:
  cascbridge watch --role cascadeur
  cascbridge watch --once --journal ./cascbridge.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "poll once, run the queued work and exit")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "SQLite journal path (overrides config)")

	return cmd
}

// session is everything one watch run wires together.
type session struct {
	layout  exchange.Layout
	loop    *processor.Loop
	watcher *watcher.Watcher
	journal *journal.Journal
}

func (s *session) close(logger *slog.Logger) {
	if err := s.journal.Close(); err != nil {
		logger.Error("error closing journal", "error", err)
	}
}

func (opts *WatchOptions) newSession(cfg config.Config, logger *slog.Logger) (*session, error) {
	fs := opts.fs()
	layout, _, err := resolveLayout(fs, cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &session{layout: layout, loop: processor.NewLoop(logger)}

	path := cfg.Journal
	if opts.Journal != "" {
		path = opts.Journal
	}
	if path != "" {
		if s.journal, err = journal.Open(path); err != nil {
			return nil, WrapExitError(ExitFailure, "failed to open journal", err)
		}
		logger.Info("journal ready", "path", path)
	}

	procOpts := []processor.Option{
		processor.WithClock(opts.clock()),
		processor.WithLogger(logger),
	}
	if s.journal != nil {
		procOpts = append(procOpts, processor.WithJournal(s.journal))
	}
	proc := processor.New(fs, opts.newHost(fs, layout, cfg, logger), s.loop, procOpts...)

	s.watcher = watcher.New(fs, layout, cfg.Role.Peer(), proc.Handle,
		watcher.WithClock(opts.clock()),
		watcher.WithInterval(cfg.Interval()),
		watcher.WithRetention(cfg.Retention()),
		watcher.WithLogger(logger),
	)
	return s, nil
}

// newHost picks the host for the role: Cascadeur runs scripts, Blender
// only acknowledges.
func (opts *WatchOptions) newHost(fs afero.Fs, layout exchange.Layout, cfg config.Config, logger *slog.Logger) processor.Host {
	if cfg.Role == exchange.RoleCascadeur {
		return host.NewScriptHost(opts.newLauncher(cfg, logger), cfg.Scripts, fs, layout, opts.clock(), logger)
	}
	return host.NewLogHost(logger)
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	logger := opts.logger(cmd)
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	s, err := opts.newSession(cfg, logger)
	if err != nil {
		return err
	}
	defer s.close(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Once {
		res := s.watcher.Poll(ctx)
		handled := s.loop.Pump(ctx)
		return opts.formatter(cmd).Success(WatchResult{
			Dir:       s.watcher.Dir(),
			Delivered: res.Delivered,
			Failed:    res.Failed,
			Malformed: res.Malformed,
			Handled:   handled,
			Swept:     res.Sweep.Removed,
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	registry := watcher.NewRegistry()
	name := string(cfg.Role.Peer())
	if err := registry.Create(name, s.watcher); err != nil {
		return WrapExitError(ExitFailure, "failed to register watcher", err)
	}
	defer func() { _ = registry.Dispose(name) }()

	// Stop polling first, then let the loop finish what was already posted.
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
		case <-ctx.Done():
		}
		registry.StopAll()
		s.loop.Close()
	}()

	if err := registry.Start(ctx, name); err != nil {
		return WrapExitError(ExitFailure, "failed to start watcher", err)
	}
	logger.Info("watching", "dir", s.watcher.Dir(), "role", cfg.Role, "interval", cfg.Interval())
	opts.formatter(cmd).VerboseLog("Watching %s. Press Ctrl-C to stop.", s.watcher.Dir())

	if err := s.loop.Run(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "main loop error", err)
	}
	cancel()
	logger.Info("watch stopped")
	return nil
}
