package gateway

import (
	"slices"
	"sync"
)

// Listeners is the session-change registry shared by the backends.
type Listeners struct {
	mu    sync.Mutex
	next  int
	funcs map[int]SessionListener
}

func (l *Listeners) Add(fn SessionListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.funcs == nil {
		l.funcs = make(map[int]SessionListener)
	}
	id := l.next
	l.next++
	l.funcs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.funcs, id)
		})
	}
}

// Emit calls every listener in registration order without holding the lock,
// so listeners may call back into the gateway.
func (l *Listeners) Emit(event Event, session *Session) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.funcs))
	for id := range l.funcs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]SessionListener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.funcs[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}

func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.funcs)
}
