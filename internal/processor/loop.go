package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrLoopClosed is returned by Post once the loop has been closed.
var ErrLoopClosed = errors.New("main loop closed")

// Task is one unit of host work. It runs on the loop goroutine.
type Task func(ctx context.Context)

// Loop is the single execution context for host mutations: a FIFO task
// queue drained by exactly one goroutine.
//
// Thread-safety model:
//   - Post(), Close(), Len(): safe from any goroutine
//   - Run() or Pump(): called from exactly ONE goroutine, the host's
//     main thread
//
// The queue is unbounded so a watcher goroutine never blocks on the host.
type Loop struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{} // buffered, size 1
	logger *slog.Logger
}

// NewLoop creates an empty, open loop.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:  make([]Task, 0, 16),
		signal: make(chan struct{}, 1),
		logger: logger,
	}
}

// Post queues t behind every task already posted.
// Thread-safe: may be called from any goroutine.
func (l *Loop) Post(t Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLoopClosed
	}
	l.tasks = append(l.tasks, t)

	// Coalesce wakeups.
	select {
	case l.signal <- struct{}{}:
	default:
	}
	return nil
}

func (l *Loop) next() (Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	t := l.tasks[0]
	l.tasks[0] = nil
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return t, true
}

// drained reports whether the loop is closed with nothing left to run.
func (l *Loop) drained() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed && len(l.tasks) == 0
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close stops accepting tasks. Tasks already queued still run.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// Run drains the queue until ctx is cancelled or the loop is closed and
// empty. Cancellation closes the loop; queued tasks are dropped.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("main loop starting")

	for {
		if ctx.Err() != nil {
			l.Close()
			return ctx.Err()
		}
		if t, ok := l.next(); ok {
			l.run(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("main loop stopping: context cancelled")
			l.Close()
			return ctx.Err()
		case <-l.signal:
			if l.drained() {
				l.logger.Debug("main loop stopping: closed")
				return nil
			}
		}
	}
}

// Pump runs the tasks queued at call time and returns how many ran.
// Tasks posted by those tasks wait for the next Pump. Hosts with their
// own event loop call Pump from a timer instead of running Run.
func (l *Loop) Pump(ctx context.Context) int {
	n := l.Len()
	ran := 0
	for ; ran < n; ran++ {
		if ctx.Err() != nil {
			break
		}
		t, ok := l.next()
		if !ok {
			break
		}
		l.run(ctx, t)
	}
	return ran
}

func (l *Loop) run(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("main loop task panicked", "error", fmt.Sprint(r))
		}
	}()
	t(ctx)
}
