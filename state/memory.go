package state

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore implements Store with a map guarded by its own lock.
// Suitable for a producer and consumer living in the same process.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[string]*entry
	watchers []*watcher
	revision uint64
	closed   atomic.Bool
}

type entry struct {
	value    []byte
	revision uint64
	modified time.Time
}

type watcher struct {
	pattern string
	ch      chan *KeyValue
	closed  atomic.Bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*entry)}
}

func (s *MemoryStore) check(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Get returns a copy of the value stored under key.
func (s *MemoryStore) Get(key string) ([]byte, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e.value), nil
}

// Put stores a copy of value under key, replacing any previous value.
func (s *MemoryStore) Put(key string, value []byte) error {
	if err := s.check(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Close may have won the race for the lock.
	if s.data == nil {
		return ErrClosed
	}

	s.revision++
	val := clone(value)
	s.data[key] = &entry{value: val, revision: s.revision, modified: time.Now()}
	s.notify(key, val, OpPut)
	return nil
}

// Take removes key and returns its value under a single lock hold, so
// concurrent takers of the same key see exactly one success.
func (s *MemoryStore) Take(key string) ([]byte, error) {
	if err := s.check(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.data, key)
	s.revision++
	s.notify(key, nil, OpDelete)
	return e.value, nil
}

// Delete removes key if present.
func (s *MemoryStore) Delete(key string) error {
	if _, err := s.Take(key); err != nil && err != ErrNotFound {
		return err
	}
	return nil
}

// Keys returns the keys matching pattern in map order.
func (s *MemoryStore) Keys(pattern string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.data {
		if MatchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Len returns the number of entries currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Watch delivers puts and deletes on keys matching pattern until ctx is
// done or the store is closed. Updates are dropped when the reader lags
// more than 64 behind.
func (s *MemoryStore) Watch(ctx context.Context, pattern string) (<-chan *KeyValue, error) {
	w := &watcher{pattern: pattern, ch: make(chan *KeyValue, 64)}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.dropWatcher(w)
	}()
	return w.ch, nil
}

func (s *MemoryStore) dropWatcher(w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, other := range s.watchers {
		if other == w {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			break
		}
	}
	if !w.closed.Swap(true) {
		close(w.ch)
	}
}

// notify fans an update out to matching watchers. Caller holds s.mu.
func (s *MemoryStore) notify(key string, value []byte, op Operation) {
	update := &KeyValue{
		Key:       key,
		Value:     value,
		Revision:  s.revision,
		Operation: op,
		Modified:  time.Now(),
	}
	for _, w := range s.watchers {
		if w.closed.Load() || !MatchPattern(w.pattern, key) {
			continue
		}
		select {
		case w.ch <- update:
		default:
		}
	}
}

// Close drops all entries and closes every watch channel. It is idempotent.
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range s.watchers {
		if !w.closed.Swap(true) {
			close(w.ch)
		}
	}
	s.watchers = nil
	s.data = nil
	return nil
}
