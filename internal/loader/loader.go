// Package loader coalesces single-key lookups made while building one
// response into grouped storage queries.
//
// A Loader belongs to exactly one inbound request. Keys passed to Load are
// queued; the queue is flushed as one BatchFunc call when the first Thunk of
// the batch is forced, when the optional wait window elapses, or when the
// batch reaches its size limit. Resolved keys are cached for the rest of the
// request.
package loader

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BatchFunc fetches the rows for a de-duplicated set of keys. Rows may come
// back in any order and keys without a row are simply omitted.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

// Result is the outcome for one key. Found is false when storage had no row.
type Result[V any] struct {
	Value V
	Found bool
}

// Thunk blocks until the key's batch has been fetched. Calling it flushes
// the batch if nothing else has.
type Thunk[V any] func() (Result[V], error)

// Option configures a Loader.
type Option func(*options)

type options struct {
	wait     time.Duration
	maxBatch int
}

// WithWait flushes a batch on its own once d has passed since its first key.
func WithWait(d time.Duration) Option {
	return func(o *options) { o.wait = d }
}

// WithMaxBatch flushes a batch as soon as it holds n distinct keys.
func WithMaxBatch(n int) Option {
	return func(o *options) { o.maxBatch = n }
}

// Loader batches and caches lookups of V by K.
type Loader[K comparable, V any] struct {
	ctx   context.Context
	fetch BatchFunc[K, V]
	keyOf func(V) K
	opts  options

	mu      sync.Mutex
	cache   map[K]*entry[K, V]
	pending *batch[K, V]
}

type entry[K comparable, V any] struct {
	batch *batch[K, V]
	done  chan struct{}
	res   Result[V]
	err   error
}

type batch[K comparable, V any] struct {
	keys       []K
	timer      *time.Timer
	dispatched bool
}

// New creates a loader bound to the request context ctx. keyOf must return
// the key a fetched row answers.
func New[K comparable, V any](ctx context.Context, fetch BatchFunc[K, V], keyOf func(V) K, opts ...Option) *Loader[K, V] {
	l := &Loader[K, V]{
		ctx:   ctx,
		fetch: fetch,
		keyOf: keyOf,
		cache: make(map[K]*entry[K, V]),
	}
	for _, opt := range opts {
		opt(&l.opts)
	}
	return l
}

// Load records key and returns a handle for its result. It never touches storage.
func (l *Loader[K, V]) Load(key K) Thunk[V] {
	l.mu.Lock()
	if e, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return l.thunk(e)
	}

	b := l.pending
	if b == nil {
		b = &batch[K, V]{}
		l.pending = b
		if l.opts.wait > 0 {
			b.timer = time.AfterFunc(l.opts.wait, func() { l.dispatch(b) })
		}
	}
	e := &entry[K, V]{batch: b, done: make(chan struct{})}
	l.cache[key] = e
	b.keys = append(b.keys, key)

	full := l.opts.maxBatch > 0 && len(b.keys) >= l.opts.maxBatch
	if full {
		l.pending = nil
	}
	l.mu.Unlock()

	if full {
		go l.dispatch(b)
	}
	return l.thunk(e)
}

func (l *Loader[K, V]) thunk(e *entry[K, V]) Thunk[V] {
	return func() (Result[V], error) {
		l.dispatch(e.batch)
		<-e.done
		return e.res, e.err
	}
}

// dispatch runs b's fetch once; later calls are no-ops.
func (l *Loader[K, V]) dispatch(b *batch[K, V]) {
	l.mu.Lock()
	if b.dispatched {
		l.mu.Unlock()
		return
	}
	b.dispatched = true
	if l.pending == b {
		l.pending = nil
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	keys := b.keys
	entries := make([]*entry[K, V], len(keys))
	for i, k := range keys {
		entries[i] = l.cache[k]
	}
	l.mu.Unlock()

	rows, err := l.safeFetch(keys)
	if err != nil {
		l.mu.Lock()
		for i, k := range keys {
			// drop failed keys so a later Load in the same request retries
			if l.cache[k] == entries[i] {
				delete(l.cache, k)
			}
		}
		l.mu.Unlock()
		for _, e := range entries {
			e.err = err
			close(e.done)
		}
		return
	}

	byKey := make(map[K]V, len(rows))
	for _, row := range rows {
		byKey[l.keyOf(row)] = row
	}
	for i, k := range keys {
		v, ok := byKey[k]
		entries[i].res = Result[V]{Value: v, Found: ok}
		close(entries[i].done)
	}
}

func (l *Loader[K, V]) safeFetch(keys []K) (rows []V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch fetch panicked: %v", r)
		}
	}()
	return l.fetch(l.ctx, keys)
}
