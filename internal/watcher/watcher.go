// Package watcher polls a trigger folder and hands every new trigger file
// to a handler exactly once per watcher lifetime.
//
// A Watcher owns one background goroutine while running. Each cycle it
// lists trigger_*.json in the watched folder, parses the files it has not
// seen, dispatches them in timestamp order, renames each handled file to
// <name>.processed and finally sweeps old processed markers. Nothing in a
// cycle is fatal: a malformed file is left in place and retried, a failing
// handler is logged, a failing sweep is logged.
//
// Thread-safety model:
//   - Start(), Stop(), State(): safe from any goroutine
//   - Poll(): serialised internally, safe to call while stopped
package watcher

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/roach88/cascbridge/internal/clock"
	"github.com/roach88/cascbridge/internal/exchange"
	"github.com/roach88/cascbridge/internal/trigger"
)

const (
	// DefaultInterval is the pause between two poll cycles.
	DefaultInterval = time.Second
	// DefaultJoinTimeout bounds how long Stop waits for the poll goroutine.
	DefaultJoinTimeout = time.Second
)

// Handler receives one parsed trigger. Returning an error leaves the file
// unrenamed; it is not redelivered while the watcher keeps running.
type Handler func(ctx context.Context, d trigger.Delivery) error

// State is the lifecycle state of a Watcher.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PollResult summarises one poll cycle.
type PollResult struct {
	Delivered int // handler succeeded and the file was renamed
	Failed    int // handler returned an error
	Malformed int // file could not be read or parsed
	Sweep     exchange.SweepResult
}

// Watcher polls one trigger folder.
type Watcher struct {
	fs      afero.Fs
	layout  exchange.Layout
	dir     string
	handler Handler

	clock       clock.Clock
	interval    time.Duration
	retention   time.Duration
	joinTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	pollMu sync.Mutex
	seen   map[string]struct{}
	warned map[string]time.Time // malformed path -> mtime already reported
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithClock replaces the wall clock used for sleeping and sweeping.
func WithClock(c clock.Clock) Option {
	return func(w *Watcher) {
		w.clock = c
	}
}

// WithInterval sets the pause between poll cycles.
//
// Default: 1s (DefaultInterval)
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithRetention sets the age after which processed markers are swept.
// A zero or negative retention disables sweeping.
//
// Default: 24h (exchange.DefaultRetention)
func WithRetention(d time.Duration) Option {
	return func(w *Watcher) {
		w.retention = d
	}
}

// WithJoinTimeout bounds how long Stop waits for the poll goroutine.
func WithJoinTimeout(d time.Duration) Option {
	return func(w *Watcher) {
		w.joinTimeout = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a stopped watcher for the trigger folder that peer writes
// into. The sweeper covers both trigger folders of layout.
func New(fs afero.Fs, layout exchange.Layout, peer exchange.Role, handler Handler, opts ...Option) *Watcher {
	w := &Watcher{
		fs:          fs,
		layout:      layout,
		dir:         layout.TriggerDir(peer),
		handler:     handler,
		clock:       clock.Real(),
		interval:    DefaultInterval,
		retention:   exchange.DefaultRetention,
		joinTimeout: DefaultJoinTimeout,
		logger:      slog.Default(),
		seen:        make(map[string]struct{}),
		warned:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the watched folder.
func (w *Watcher) Dir() string {
	return w.dir
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start launches the poll goroutine. Starting a running watcher is a
// no-op. The seen-set starts empty on every start: the new goroutine
// clears it before its first cycle, so Start never waits on a poll cycle
// left behind by a Stop that timed out.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateRunning {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done
	w.state = StateRunning

	w.logger.Info("watcher starting", "dir", w.dir, "interval", w.interval)
	go w.run(loopCtx, done)
}

// Stop cancels the poll goroutine and waits up to the join timeout for it
// to exit. The watcher is stopped afterwards either way; the result
// reports whether the goroutine finished in time. Stopping a watcher that
// is not running is a no-op that reports true.
func (w *Watcher) Stop() bool {
	w.mu.Lock()
	if w.state != StateRunning {
		w.mu.Unlock()
		return true
	}
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.state = StateStopped
	w.mu.Unlock()

	cancel()

	timer := time.NewTimer(w.joinTimeout)
	defer timer.Stop()
	select {
	case <-done:
		w.logger.Info("watcher stopped", "dir", w.dir)
		return true
	case <-timer.C:
		w.logger.Warn("watcher did not stop within timeout",
			"dir", w.dir,
			"timeout", w.joinTimeout,
		)
		return false
	}
}

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	w.resetSession()

	for {
		if ctx.Err() != nil {
			return
		}
		w.Poll(ctx)

		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(w.interval):
		}
	}
}

// resetSession forgets every delivered and reported path.
func (w *Watcher) resetSession() {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()
	w.seen = make(map[string]struct{})
	w.warned = make(map[string]time.Time)
}

// Poll runs one cycle: scan, dispatch, sweep.
func (w *Watcher) Poll(ctx context.Context) PollResult {
	w.pollMu.Lock()
	defer w.pollMu.Unlock()

	var res PollResult
	batch := w.scan(&res)

	for _, d := range batch {
		if ctx.Err() != nil {
			break
		}
		w.seen[d.Path] = struct{}{}

		if err := w.invoke(ctx, d); err != nil {
			res.Failed++
			w.logger.Error("trigger handler failed",
				"file", d.Name,
				"action", d.Record.Action,
				"error", err,
			)
			continue
		}

		w.markProcessed(d)
		res.Delivered++
	}

	if w.retention > 0 {
		sweep, err := exchange.Sweep(w.fs, w.layout, w.retention, w.clock.Now())
		if err != nil {
			w.logger.Warn("sweep incomplete", "root", w.layout.Root, "error", err)
		}
		if sweep.Removed > 0 || sweep.Failed > 0 {
			w.logger.Info("swept processed triggers",
				"removed", sweep.Removed,
				"failed", sweep.Failed,
			)
		}
		res.Sweep = sweep
	}

	return res
}

// markProcessed renames a handled trigger to its .processed tombstone.
// When the rename fails the file is deleted instead, so a later session
// does not deliver it again.
func (w *Watcher) markProcessed(d trigger.Delivery) {
	err := w.fs.Rename(d.Path, trigger.ProcessedPath(d.Path))
	if err == nil {
		return
	}
	if rmErr := w.fs.Remove(d.Path); rmErr != nil && !os.IsNotExist(rmErr) {
		w.logger.Warn("mark trigger processed failed",
			"file", d.Name,
			"rename_error", err,
			"remove_error", rmErr,
		)
		return
	}
	w.logger.Debug("trigger removed after rename failed", "file", d.Name, "error", err)
}

// scan lists the watched folder and parses every unseen trigger file,
// returning them ordered by embedded timestamp then file name.
func (w *Watcher) scan(res *PollResult) []trigger.Delivery {
	entries, err := afero.ReadDir(w.fs, w.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("list trigger folder failed", "dir", w.dir, "error", err)
		}
		return nil
	}

	var batch []trigger.Delivery
	for _, info := range entries {
		name := info.Name()
		if info.IsDir() || !trigger.IsPending(name) {
			continue
		}
		path := filepath.Join(w.dir, name)
		if _, ok := w.seen[path]; ok {
			continue
		}

		data, err := afero.ReadFile(w.fs, path)
		if err != nil {
			// Vanished between listing and reading.
			if !os.IsNotExist(err) {
				res.Malformed++
				w.reportMalformed(path, info.ModTime(), err)
			}
			continue
		}
		rec, err := trigger.Parse(data)
		if err != nil {
			res.Malformed++
			w.reportMalformed(path, info.ModTime(), err)
			continue
		}
		delete(w.warned, path)

		batch = append(batch, trigger.Delivery{Name: name, Path: path, Record: rec})
	}

	slices.SortFunc(batch, func(a, b trigger.Delivery) int {
		if c := cmp.Compare(a.Record.Timestamp, b.Record.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return batch
}

// reportMalformed warns once per file version; retries of an unchanged
// file log at debug level.
func (w *Watcher) reportMalformed(path string, mtime time.Time, err error) {
	if last, ok := w.warned[path]; ok && last.Equal(mtime) {
		w.logger.Debug("skipping malformed trigger", "file", filepath.Base(path), "error", err)
		return
	}
	w.warned[path] = mtime
	w.logger.Warn("malformed trigger left in place",
		"file", filepath.Base(path),
		"error", err,
	)
}

// invoke calls the handler, turning a panic into an error so one trigger
// cannot take down the poll goroutine.
func (w *Watcher) invoke(ctx context.Context, d trigger.Delivery) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler(ctx, d)
}
