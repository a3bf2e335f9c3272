// Package debounce holds a text or slider input whose value is committed only
// after it has been left alone for a quiet period.
package debounce

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealClock schedules with the runtime timers.
var RealClock Clock = realClock{}

// Input tracks the raw value as typed and the committed value the rest of
// the screen reacts to.
type Input[T any] struct {
	window   time.Duration
	clock    Clock
	onCommit func(T)

	mu        sync.Mutex
	raw       T
	committed T
	pending   bool
	seq       uint64
	timer     Timer
	disposed  bool
}

// New creates an input starting at initial, committed. onCommit may be nil.
func New[T any](initial T, window time.Duration, clock Clock, onCommit func(T)) *Input[T] {
	if clock == nil {
		clock = RealClock
	}
	return &Input[T]{
		window:    window,
		clock:     clock,
		onCommit:  onCommit,
		raw:       initial,
		committed: initial,
	}
}

// OnChange records v immediately and restarts the quiet period. A zero
// window commits synchronously.
func (in *Input[T]) OnChange(v T) {
	in.mu.Lock()
	if in.disposed {
		in.mu.Unlock()
		return
	}
	in.raw = v
	in.seq++
	seq := in.seq
	if in.timer != nil {
		in.timer.Stop()
		in.timer = nil
	}

	if in.window <= 0 {
		in.pending = true
		in.mu.Unlock()
		in.commit(seq)
		return
	}

	in.pending = true
	in.timer = in.clock.AfterFunc(in.window, func() { in.commit(seq) })
	in.mu.Unlock()
}

func (in *Input[T]) commit(seq uint64) {
	in.mu.Lock()
	// a later change or a flush got here first
	if in.disposed || seq != in.seq || !in.pending {
		in.mu.Unlock()
		return
	}
	in.pending = false
	in.timer = nil
	in.committed = in.raw
	value := in.committed
	onCommit := in.onCommit
	in.mu.Unlock()

	if onCommit != nil {
		onCommit(value)
	}
}

// Flush commits a pending value now.
func (in *Input[T]) Flush() {
	in.mu.Lock()
	if in.timer != nil {
		in.timer.Stop()
		in.timer = nil
	}
	seq := in.seq
	in.mu.Unlock()
	in.commit(seq)
}

// Dispose cancels the pending commit. Later changes are ignored.
func (in *Input[T]) Dispose() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.disposed = true
	in.pending = false
	if in.timer != nil {
		in.timer.Stop()
		in.timer = nil
	}
}

func (in *Input[T]) Raw() T {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.raw
}

func (in *Input[T]) Committed() T {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.committed
}

func (in *Input[T]) Pending() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.pending
}
