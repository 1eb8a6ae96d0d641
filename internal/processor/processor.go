// Package processor turns delivered triggers into host work.
//
// The watcher goroutine only decodes: Handle turns the record into a typed
// command and posts a task onto the main Loop. Every call into the Host
// happens on the loop goroutine. A missing input file is reported to the
// user and the trigger still counts as handled; nothing is retried once a
// task has been posted.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/roach88/cascbridge/internal/clock"
	"github.com/roach88/cascbridge/internal/journal"
	"github.com/roach88/cascbridge/internal/keyframes"
	"github.com/roach88/cascbridge/internal/trigger"
)

// Processor dispatches triggers to a Host through a Loop.
type Processor struct {
	fs      afero.Fs
	host    Host
	loop    *Loop
	journal *journal.Journal
	clock   clock.Clock
	logger  *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithJournal records every outcome in j.
func WithJournal(j *journal.Journal) Option {
	return func(p *Processor) {
		p.journal = j
	}
}

// WithClock sets the clock used for journal timestamps.
func WithClock(c clock.Clock) Option {
	return func(p *Processor) {
		p.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a processor. Input files are checked on fs.
func New(fs afero.Fs, host Host, loop *Loop, opts ...Option) *Processor {
	p := &Processor{
		fs:     fs,
		host:   host,
		loop:   loop,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle decodes d and schedules its work on the main loop. It has the
// watcher.Handler signature.
//
// Unknown actions and invalid payloads are not errors: the trigger is
// consumed and the outcome journaled. The only error is a closed loop,
// which leaves the trigger file in place for a later session.
func (p *Processor) Handle(ctx context.Context, d trigger.Delivery) error {
	cmd, err := trigger.Decode(d.Record)
	if err != nil {
		return p.rejectLater(d, err)
	}

	p.logger.Debug("scheduling trigger", "file", d.Name, "action", d.Record.Action)
	err = p.loop.Post(func(ctx context.Context) {
		outcome, detail := p.execute(ctx, cmd)
		p.record(ctx, d, outcome, detail)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", d.Name, err)
	}
	return nil
}

func (p *Processor) rejectLater(d trigger.Delivery, decodeErr error) error {
	var task Task
	if trigger.IsUnknownAction(decodeErr) {
		p.logger.Warn("ignoring trigger with unknown action",
			"file", d.Name,
			"action", d.Record.Action,
		)
		task = func(ctx context.Context) {
			p.record(ctx, d, journal.OutcomeIgnored, decodeErr.Error())
		}
	} else {
		p.logger.Warn("rejecting trigger with invalid payload",
			"file", d.Name,
			"action", d.Record.Action,
			"error", decodeErr,
		)
		task = func(ctx context.Context) {
			p.host.Report(LevelError, fmt.Sprintf("Invalid %s request: %v", d.Record.Action, decodeErr))
			p.record(ctx, d, journal.OutcomeRejected, decodeErr.Error())
		}
	}

	if err := p.loop.Post(task); err != nil {
		return fmt.Errorf("schedule %s: %w", d.Name, err)
	}
	return nil
}

// execute runs cmd against the host. Called on the loop goroutine only.
func (p *Processor) execute(ctx context.Context, cmd trigger.Command) (journal.Outcome, string) {
	switch c := cmd.(type) {
	case *trigger.ImportObject:
		if missing := p.missing(c.FBXPath); missing != "" {
			return journal.OutcomeMissingInput, missing
		}
		if err := p.host.ImportObject(ctx, c.FBXPath, c.ObjectName); err != nil {
			return p.failed("import object", err)
		}
		p.host.Report(LevelInfo, fmt.Sprintf("Imported %s from %s", c.ObjectName, c.FBXPath))
		return journal.OutcomeHandled, ""

	case *trigger.ImportAnimation:
		for _, path := range []string{c.FBXPath, c.JSONPath} {
			if missing := p.missing(path); missing != "" {
				return journal.OutcomeMissingInput, missing
			}
		}
		marks, err := keyframes.Load(p.fs, c.JSONPath)
		if err != nil {
			return p.failed("read keyframes", err)
		}
		if err := p.host.ImportAnimation(ctx, c.FBXPath, c.ObjectName, marks); err != nil {
			return p.failed("import animation", err)
		}
		p.host.Report(LevelInfo, fmt.Sprintf("Imported animation for %s with %d marked keyframes", c.ObjectName, marks.Len()))
		return journal.OutcomeHandled, ""

	case *trigger.ImportScene:
		if missing := p.missing(c.FBXPath); missing != "" {
			return journal.OutcomeMissingInput, missing
		}
		if err := p.host.ImportScene(ctx, c.FBXPath); err != nil {
			return p.failed("import scene", err)
		}
		p.host.Report(LevelInfo, fmt.Sprintf("Imported scene from %s", c.FBXPath))
		return journal.OutcomeHandled, ""

	case *trigger.ImportAllScenes:
		return p.importAll(ctx, c.FBXPaths)

	case *trigger.CleanKeyframes:
		marks, outcome, detail := p.cleanMarks(c)
		if marks == nil {
			return outcome, detail
		}
		if err := p.host.CleanKeyframes(ctx, marks); err != nil {
			return p.failed("clean keyframes", err)
		}
		p.host.Report(LevelInfo, fmt.Sprintf("Kept %d marked keyframes", marks.Len()))
		return journal.OutcomeHandled, ""

	default:
		p.logger.Error("no executor for command", "action", cmd.Action())
		return journal.OutcomeIgnored, fmt.Sprintf("no executor for %s", cmd.Action())
	}
}

func (p *Processor) importAll(ctx context.Context, paths []string) (journal.Outcome, string) {
	var imported, missing, failed int
	for _, path := range paths {
		if m := p.missing(path); m != "" {
			missing++
			continue
		}
		if err := p.host.ImportScene(ctx, path); err != nil {
			failed++
			p.host.Report(LevelError, fmt.Sprintf("Import scene %s failed: %v", path, err))
			continue
		}
		imported++
	}

	detail := fmt.Sprintf("imported %d of %d scenes", imported, len(paths))
	p.host.Report(LevelInfo, fmt.Sprintf("Imported %d of %d scenes", imported, len(paths)))
	switch {
	case failed > 0:
		return journal.OutcomeFailed, detail
	case imported == 0 && missing > 0:
		return journal.OutcomeMissingInput, detail
	default:
		return journal.OutcomeHandled, detail
	}
}

// cleanMarks resolves the frames to keep. A nil set means the trigger is
// finished with the returned outcome.
func (p *Processor) cleanMarks(c *trigger.CleanKeyframes) (*keyframes.Set, journal.Outcome, string) {
	if len(c.Keyframes) > 0 {
		marks, err := c.Marks()
		if err != nil {
			p.host.Report(LevelError, fmt.Sprintf("Invalid keyframes: %v", err))
			return nil, journal.OutcomeRejected, err.Error()
		}
		return marks, "", ""
	}

	if missing := p.missing(c.JSONPath); missing != "" {
		return nil, journal.OutcomeMissingInput, missing
	}
	marks, err := keyframes.Load(p.fs, c.JSONPath)
	if err != nil {
		outcome, detail := p.failed("read keyframes", err)
		return nil, outcome, detail
	}
	return marks, "", ""
}

// missing reports a missing input file to the user and returns the
// journal detail, or "" when path exists.
func (p *Processor) missing(path string) string {
	_, err := p.fs.Stat(path)
	if err == nil {
		return ""
	}
	if !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("stat input file failed", "path", path, "error", err)
	}
	msg := fmt.Sprintf("File not found: %s", path)
	p.host.Report(LevelWarning, msg)
	return msg
}

func (p *Processor) failed(what string, err error) (journal.Outcome, string) {
	p.logger.Error(what+" failed", "error", err)
	p.host.Report(LevelError, fmt.Sprintf("%s failed: %v", what, err))
	return journal.OutcomeFailed, err.Error()
}

func (p *Processor) record(ctx context.Context, d trigger.Delivery, outcome journal.Outcome, detail string) {
	p.logger.Info("trigger handled",
		"file", d.Name,
		"action", d.Record.Action,
		"outcome", outcome,
	)
	if p.journal == nil {
		return
	}

	digest, err := trigger.Digest(d.Record)
	if err != nil {
		p.logger.Warn("digest trigger failed", "file", d.Name, "error", err)
	}
	_, err = p.journal.Record(ctx, journal.Entry{
		Digest:    digest,
		Name:      d.Name,
		Action:    d.Record.Action,
		Timestamp: d.Record.Timestamp,
		HandledAt: p.clock.Now(),
		Outcome:   outcome,
		Detail:    detail,
	})
	if err != nil {
		p.logger.Error("journal write failed", "file", d.Name, "error", err)
	}
}
