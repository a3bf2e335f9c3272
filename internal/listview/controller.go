// Package listview keeps the state behind a list screen: the fetched items,
// the loading and pull-to-refresh flags, and a filter applied on the client.
package listview

import (
	"context"
	"log/slog"
	"sync"

	"domino-community/internal/shared/alert"
)

type Loader[T any] func(ctx context.Context) ([]T, error)

// Predicate reports whether item passes filter. It must not depend on
// anything but its arguments.
type Predicate[T any, F any] func(item T, filter F) bool

type Snapshot[T any, F any] struct {
	Items      []T
	Loading    bool
	Refreshing bool
	Filter     F
}

type Options struct {
	// Alerter, when set, is told about failed fetches with ErrorMessage.
	Alerter      alert.Alerter
	ErrorMessage string
}

type Controller[T any, F comparable] struct {
	load   Loader[T]
	match  Predicate[T, F]
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	items      []T
	loading    bool
	refreshing bool
	filter     F
	generation uint64

	memo struct {
		valid      bool
		generation uint64
		filter     F
		view       []T
	}

	subscribers map[int]func(Snapshot[T, F])
	next        int
}

func New[T any, F comparable](name string, load Loader[T], match Predicate[T, F], opts Options) *Controller[T, F] {
	return &Controller[T, F]{
		load:        load,
		match:       match,
		opts:        opts,
		logger:      slog.With("component", "list_view", "list", name),
		items:       []T{},
		loading:     true,
		subscribers: make(map[int]func(Snapshot[T, F])),
	}
}

// Fetch replaces the items with a fresh load. Concurrent fetches are not
// ordered: whichever completes last wins. A failed fetch keeps the items.
func (c *Controller[T, F]) Fetch(ctx context.Context) error {
	return c.fetch(ctx, "fetch")
}

// OnFocus refetches when the screen becomes visible again.
func (c *Controller[T, F]) OnFocus(ctx context.Context) error {
	return c.fetch(ctx, "focus")
}

func (c *Controller[T, F]) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.refreshing = true
	c.mu.Unlock()
	c.notify()

	return c.fetch(ctx, "refresh")
}

func (c *Controller[T, F]) fetch(ctx context.Context, reason string) error {
	logger := c.logger.With("operation", reason)

	items, err := c.load(ctx)

	c.mu.Lock()
	c.loading = false
	c.refreshing = false
	if err == nil {
		if items == nil {
			items = []T{}
		}
		c.items = items
		c.generation++
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		if c.opts.Alerter != nil {
			alert.Error(c.opts.Alerter, logger, err, c.opts.ErrorMessage)
		} else {
			logger.Error("Failed to load list", "error", err)
		}
		return err
	}

	logger.Debug("List loaded", "count", len(items))
	return nil
}

func (c *Controller[T, F]) SetFilter(filter F) {
	c.mu.Lock()
	if c.filter == filter {
		c.mu.Unlock()
		return
	}
	c.filter = filter
	c.mu.Unlock()
	c.notify()
}

func (c *Controller[T, F]) Filter() F {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// FilteredView returns the items passing the current filter in their
// original order. The result is cached until the items or the filter change.
func (c *Controller[T, F]) FilteredView() []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.memo.valid && c.memo.generation == c.generation && c.memo.filter == c.filter {
		return append([]T(nil), c.memo.view...)
	}

	view := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if c.match == nil || c.match(item, c.filter) {
			view = append(view, item)
		}
	}

	c.memo.valid = true
	c.memo.generation = c.generation
	c.memo.filter = c.filter
	c.memo.view = view
	return append([]T(nil), view...)
}

func (c *Controller[T, F]) Snapshot() Snapshot[T, F] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller[T, F]) snapshotLocked() Snapshot[T, F] {
	return Snapshot[T, F]{
		Items:      append([]T{}, c.items...),
		Loading:    c.loading,
		Refreshing: c.refreshing,
		Filter:     c.filter,
	}
}

func (c *Controller[T, F]) Subscribe(fn func(Snapshot[T, F])) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
		})
	}
}

func (c *Controller[T, F]) notify() {
	c.mu.Lock()
	snapshot := c.snapshotLocked()
	fns := make([]func(Snapshot[T, F]), 0, len(c.subscribers))
	for id := 0; id < c.next; id++ {
		if fn, ok := c.subscribers[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
}
