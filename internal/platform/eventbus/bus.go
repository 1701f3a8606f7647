// Package eventbus is an in-process publish/subscribe channel that remembers
// the last value published for every (topic, key) pair. A subscriber that
// attaches after a publish receives that cached value immediately, so a
// listener that shows up late (a results screen mounted after the commit
// already finished) never misses it.
package eventbus

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 1024

// Topic is a typed topic name. Values published on a topic are always of T.
type Topic[T any] struct {
	name string
}

func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

func (t Topic[T]) Name() string {
	return t.name
}

type cacheKey struct {
	topic string
	key   string
}

type entry struct {
	seq   uint64
	value any
}

type subscription struct {
	mu      sync.Mutex
	last    uint64
	closed  atomic.Bool
	deliver func(any)
}

// notify runs the handler unless the event is older than one already seen.
// Handlers must not publish to a key they are subscribed to.
func (s *subscription) notify(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() || e.seq <= s.last {
		return
	}
	s.last = e.seq
	s.deliver(e.value)
}

type Bus struct {
	mu     sync.Mutex
	seq    uint64
	nextID uint64
	cache  *lru.Cache[cacheKey, entry]
	subs   map[cacheKey]map[uint64]*subscription
}

// New creates a bus whose last-value cache holds at most size keys.
func New(size int) *Bus {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, entry](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Bus{cache: cache, subs: map[cacheKey]map[uint64]*subscription{}}
}

// Publish replaces the cached value for (topic, key) and notifies current
// subscribers synchronously on the caller's goroutine.
func Publish[T any](b *Bus, topic Topic[T], key string, value T) {
	k := cacheKey{topic: topic.name, key: key}

	b.mu.Lock()
	b.seq++
	e := entry{seq: b.seq, value: value}
	b.cache.Add(k, e)
	targets := make([]*subscription, 0, len(b.subs[k]))
	for _, sub := range b.subs[k] {
		targets = append(targets, sub)
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.notify(e)
	}
}

// Subscribe registers handler for (topic, key). If a value was already
// published it is replayed before Subscribe returns.
func Subscribe[T any](b *Bus, topic Topic[T], key string, handler func(T)) (unsubscribe func()) {
	k := cacheKey{topic: topic.name, key: key}
	sub := &subscription{deliver: func(v any) { handler(v.(T)) }}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[k] == nil {
		b.subs[k] = map[uint64]*subscription{}
	}
	b.subs[k][id] = sub
	cached, ok := b.cache.Get(k)
	b.mu.Unlock()

	if ok {
		sub.notify(cached)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.closed.Store(true)
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[k], id)
			if len(b.subs[k]) == 0 {
				delete(b.subs, k)
			}
		})
	}
}

// Last returns the cached value for (topic, key), if any.
func Last[T any](b *Bus, topic Topic[T], key string) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.cache.Get(cacheKey{topic: topic.name, key: key})
	if !ok {
		var zero T
		return zero, false
	}
	return e.value.(T), true
}

// Forget drops the cached value for (topic, key).
func Forget[T any](b *Bus, topic Topic[T], key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache.Remove(cacheKey{topic: topic.name, key: key})
}
