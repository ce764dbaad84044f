// Package window provides a fixed-capacity append-only sequence with
// oldest-first eviction. It is the retention policy for per-terminal
// output and command history.
package window

// Window holds the most recent items pushed into it, up to a fixed
// capacity. Pushing beyond capacity evicts the oldest item. There is no
// other removal path.
type Window[T any] struct {
	items []T
	cap   int
}

// New creates a window with the given capacity. Capacities below one are
// clamped to one.
func New[T any](capacity int) *Window[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Window[T]{
		items: make([]T, 0, capacity),
		cap:   capacity,
	}
}

// Push appends item, evicting the oldest item when the window is full.
func (w *Window[T]) Push(item T) {
	if len(w.items) == w.cap {
		copy(w.items, w.items[1:])
		w.items[len(w.items)-1] = item
		return
	}
	w.items = append(w.items, item)
}

// Items returns the window contents in arrival order. The returned slice
// is a copy; mutating it does not affect the window.
func (w *Window[T]) Items() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}

// Last returns the most recently pushed item.
func (w *Window[T]) Last() (T, bool) {
	if len(w.items) == 0 {
		var zero T
		return zero, false
	}
	return w.items[len(w.items)-1], true
}

func (w *Window[T]) Len() int {
	return len(w.items)
}

func (w *Window[T]) Cap() int {
	return w.cap
}
