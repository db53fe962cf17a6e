package folderdb

import "sync"

// observers holds write observers of a handle. Observers are called
// synchronously, in registration order, before a write is committed.
type observers[T any] struct {
	mu  sync.RWMutex
	fns []func(T)
}

func (o *observers[T]) add(fn func(T)) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	o.fns = append(o.fns, fn)
	o.mu.Unlock()
}

func (o *observers[T]) notify(v T) {
	o.mu.RLock()
	fns := o.fns
	o.mu.RUnlock()
	for _, fn := range fns {
		fn(v)
	}
}
