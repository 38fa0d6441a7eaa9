package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/mapqueue/assignment"
	"github.com/vinayprograms/mapqueue/errors"
	"github.com/vinayprograms/mapqueue/state"
)

func TestNewSharedState_MissingCollaborators(t *testing.T) {
	_, err := NewSharedState(nil, state.NewCompletion())
	assert.True(t, errors.Is(err, errors.ErrCodeMissingCollaborator))

	_, err = NewSharedState(state.NewMemoryStore(), nil)
	assert.True(t, errors.Is(err, errors.ErrCodeMissingCollaborator))
	assert.True(t, errors.IsFatal(err))
}

func TestSharedState_PutRemove(t *testing.T) {
	shared := newShared(t)
	item := assignment.New("Buy milk and eggs", testNow, 2, assignment.Medium)

	require.NoError(t, shared.Put(1, item))

	got, ok, err := shared.Remove(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, item.Description, got.Description)
	assert.True(t, item.Due.Equal(got.Due))
	assert.Equal(t, assignment.Medium, got.Priority)
}

func TestSharedState_RemoveIsIdempotent(t *testing.T) {
	shared := newShared(t)
	require.NoError(t, shared.Put(7, assignment.New("x", testNow, 1, assignment.Low)))

	_, ok, err := shared.Remove(7)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = shared.Remove(7)
	require.NoError(t, err)
	assert.False(t, ok, "second remove must report absence")

	_, ok, err = shared.Remove(42)
	require.NoError(t, err)
	assert.False(t, ok, "never-inserted key must report absence")
}

func TestSharedState_PutOverwrites(t *testing.T) {
	shared := newShared(t)
	require.NoError(t, shared.Put(1, assignment.New("first", testNow, 1, assignment.Low)))
	require.NoError(t, shared.Put(1, assignment.New("second", testNow, 1, assignment.High)))

	keys, err := shared.SnapshotKeys()
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, keys)

	got, _, _ := shared.Remove(1)
	assert.Equal(t, "second", got.Description)
}

func TestSharedState_SnapshotKeysIgnoresForeignKeys(t *testing.T) {
	table := state.NewMemoryStore()
	shared := newSharedOn(t, table)

	require.NoError(t, shared.Put(1, assignment.New("a", testNow, 1, assignment.Low)))
	require.NoError(t, shared.Put(2, assignment.New("b", testNow, 1, assignment.Low)))
	require.NoError(t, table.Put("other.1", []byte("x")))
	require.NoError(t, table.Put("txn.bogus", []byte("x")))

	keys, err := shared.SnapshotKeys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, keys)
}

func TestSharedState_RemoveUndecodable(t *testing.T) {
	table := state.NewMemoryStore()
	shared := newSharedOn(t, table)
	require.NoError(t, table.Put("txn.3", []byte("not json")))

	_, ok, err := shared.Remove(3)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, errors.ErrCodeCodec))
}

func TestSharedState_Publish(t *testing.T) {
	shared := newShared(t)

	assert.False(t, shared.IsProductionDone())
	assert.Equal(t, state.SentinelCount, shared.FinalCount())

	require.NoError(t, shared.Publish(6))
	assert.True(t, shared.IsProductionDone())
	assert.Equal(t, int64(6), shared.FinalCount())

	select {
	case <-shared.ProductionDone():
	default:
		t.Fatal("done channel not closed after publish")
	}

	err := shared.Publish(3)
	assert.True(t, errors.Is(err, errors.ErrCodeAlreadyPublished))
	assert.Equal(t, int64(6), shared.FinalCount(), "second publish must not change the count")
}

func TestSharedState_ChangesWakesOnPut(t *testing.T) {
	shared := newShared(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := shared.Changes(ctx)
	require.NoError(t, err)

	require.NoError(t, shared.Put(1, assignment.New("a", testNow, 1, assignment.Low)))

	select {
	case <-changes:
	case <-time.After(time.Second):
		t.Fatal("no wake-up after put")
	}

	// Removals do not wake the consumer.
	_, _, _ = shared.Remove(1)
	select {
	case <-changes:
		t.Fatal("unexpected wake-up after remove")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestSharedState_ChangesUnavailable(t *testing.T) {
	shared := newSharedOn(t, &faultyStore{Store: state.NewMemoryStore(), noWatch: true})

	_, err := shared.Changes(context.Background())
	assert.True(t, errors.Is(err, errors.ErrCodeStore))
}
