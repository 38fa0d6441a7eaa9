package pipeline

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/mapqueue/assignment"
	"github.com/vinayprograms/mapqueue/state"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

var errInjected = stderrors.New("injected failure")

// faultyStore wraps a real store with injectable failures.
type faultyStore struct {
	state.Store
	failPutAfter int64 // 0 disables
	puts         atomic.Int64
	phantomKeys  []string
	noWatch      bool
}

func (s *faultyStore) Put(key string, value []byte) error {
	n := s.puts.Add(1)
	if s.failPutAfter > 0 && n > s.failPutAfter {
		return errInjected
	}
	return s.Store.Put(key, value)
}

func (s *faultyStore) Keys(pattern string) ([]string, error) {
	keys, err := s.Store.Keys(pattern)
	if err != nil {
		return nil, err
	}
	return append(keys, s.phantomKeys...), nil
}

func (s *faultyStore) Watch(ctx context.Context, pattern string) (<-chan *state.KeyValue, error) {
	if s.noWatch {
		return nil, errInjected
	}
	return s.Store.Watch(ctx, pattern)
}

func newShared(t *testing.T) *SharedState {
	t.Helper()
	return newSharedOn(t, state.NewMemoryStore())
}

func newSharedOn(t *testing.T, table state.Store) *SharedState {
	t.Helper()
	t.Cleanup(func() { table.Close() })
	shared, err := NewSharedState(table, state.NewCompletion())
	require.NoError(t, err)
	return shared
}

func fastProducer(t *testing.T, shared *SharedState, items []assignment.Assignment) *Producer {
	t.Helper()
	p, err := NewProducer(shared, items, ProducerConfig{Delay: time.Millisecond})
	require.NoError(t, err)
	return p
}

func fastConsumer(t *testing.T, shared *SharedState, handler Handler) *Consumer {
	t.Helper()
	c, err := NewConsumer(shared, ConsumerConfig{
		Handler:       handler,
		SweepInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func sequence(from, to int64) []int64 {
	keys := make([]int64, 0, to-from+1)
	for k := from; k <= to; k++ {
		keys = append(keys, k)
	}
	return keys
}
