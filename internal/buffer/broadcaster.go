package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/termfix/termfix/internal/domain"
)

// Broadcaster fans buffer events out to subscribers. Slow subscribers drop
// events rather than blocking the store.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int64]chan domain.Event
	closed bool
	seq    int64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[int64]chan domain.Event),
	}
}

func (b *Broadcaster) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan domain.Event, buffer)
	id := atomic.AddInt64(&b.seq, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
		b.mu.Unlock()
	}
}

func (b *Broadcaster) Broadcast(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
	b.mu.Unlock()
}
