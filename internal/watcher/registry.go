package watcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrExists is returned when creating a watcher under a taken name.
	ErrExists = errors.New("watcher already registered")
	// ErrNotFound is returned for operations on an unknown name.
	ErrNotFound = errors.New("watcher not registered")
)

// Registry owns named watchers and their lifecycle. It replaces any
// process-wide singleton: whoever creates the registry decides where it
// lives and when StopAll runs.
type Registry struct {
	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{watchers: make(map[string]*Watcher)}
}

// Create registers w under name. The watcher is not started.
func (r *Registry) Create(name string, w *Watcher) error {
	if w == nil {
		return fmt.Errorf("create %q: nil watcher", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.watchers[name]; ok {
		return fmt.Errorf("create %q: %w", name, ErrExists)
	}
	r.watchers[name] = w
	return nil
}

// Get returns the watcher registered under name.
func (r *Registry) Get(name string) (*Watcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.watchers[name]
	return w, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.watchers))
	for name := range r.watchers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Start starts the named watcher. Starting a running watcher is a no-op.
func (r *Registry) Start(ctx context.Context, name string) error {
	w, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("start %q: %w", name, ErrNotFound)
	}
	w.Start(ctx)
	return nil
}

// Stop stops the named watcher and keeps it registered.
func (r *Registry) Stop(name string) error {
	w, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("stop %q: %w", name, ErrNotFound)
	}
	w.Stop()
	return nil
}

// Dispose stops the named watcher and removes it from the registry.
func (r *Registry) Dispose(name string) error {
	r.mu.Lock()
	w, ok := r.watchers[name]
	delete(r.watchers, name)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("dispose %q: %w", name, ErrNotFound)
	}
	w.Stop()
	return nil
}

// StopAll stops every registered watcher. Watchers stay registered.
func (r *Registry) StopAll() {
	r.mu.Lock()
	all := make([]*Watcher, 0, len(r.watchers))
	for _, w := range r.watchers {
		all = append(all, w)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()
}
