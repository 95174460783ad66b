// Package dedupe tracks job run ids so that a retried trigger runs once.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Deduper records seen run ids.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if not.
	// It returns true when id was already recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Forget drops id so that it may be submitted again, e.g. after the
	// queue refused it.
	Forget(ctx context.Context, id string)

	Size() int
}

type record struct {
	id string
	at time.Time
}

// memoryDeduper keeps ids in insertion order. The oldest id is evicted when
// the window is full or when it outlived the ttl.
type memoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = newest
	maxSize int        // <= 0 means unbounded
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates an in-memory deduper.
func NewMemory(opts ...Option) Deduper {
	d := &memoryDeduper{
		maxSize: 10_000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *memoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.expire(now)
	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}
	d.seen[id] = d.order.PushFront(record{id: id, at: now})
	return false
}

func (d *memoryDeduper) Forget(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		d.order.Remove(el)
		delete(d.seen, id)
	}
}

func (d *memoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// expire drops records older than ttl. Caller holds mu.
func (d *memoryDeduper) expire(now time.Time) {
	if d.ttl <= 0 {
		return
	}
	for el := d.order.Back(); el != nil; el = d.order.Back() {
		if now.Sub(el.Value.(record).at) < d.ttl {
			return
		}
		d.order.Remove(el)
		delete(d.seen, el.Value.(record).id)
	}
}

// evictOldest drops the least recently added record. Caller holds mu.
func (d *memoryDeduper) evictOldest() {
	if el := d.order.Back(); el != nil {
		d.order.Remove(el)
		delete(d.seen, el.Value.(record).id)
	}
}
