package pipeline

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/vinayprograms/mapqueue/assignment"
	"github.com/vinayprograms/mapqueue/errors"
	"github.com/vinayprograms/mapqueue/state"
)

const keyPrefix = "txn."

// Entry is one transaction key and the assignment stored under it.
type Entry struct {
	Key        int64
	Assignment assignment.Assignment
}

func tableKey(key int64) string {
	return keyPrefix + strconv.FormatInt(key, 10)
}

func parseTableKey(s string) (int64, bool) {
	if !strings.HasPrefix(s, keyPrefix) {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(s, keyPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SharedState is the only thing producer and consumer share: the table of
// pending entries plus the completion signal. Safe for concurrent use; it
// holds no lock of its own.
type SharedState struct {
	table      state.Store
	completion *state.Completion
}

// NewSharedState wires a table and a completion signal together.
// Both are required.
func NewSharedState(table state.Store, completion *state.Completion) (*SharedState, error) {
	if table == nil {
		return nil, errors.MissingCollaborator("shared table")
	}
	if completion == nil {
		return nil, errors.MissingCollaborator("completion signal")
	}
	return &SharedState{table: table, completion: completion}, nil
}

// Put inserts or overwrites the entry for key.
func (s *SharedState) Put(key int64, a assignment.Assignment) error {
	data, err := assignment.Encode(a)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeCodec, "encode entry", errors.WithKey(key))
	}
	if err := s.table.Put(tableKey(key), data); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeStore, "put entry", errors.WithKey(key))
	}
	return nil
}

// Remove takes the entry for key out of the table.
// ok is false when the key is absent, which is not an error: removing a key
// twice, or one that was never inserted, is a no-op.
func (s *SharedState) Remove(key int64) (a assignment.Assignment, ok bool, err error) {
	data, err := s.table.Take(tableKey(key))
	if stderrors.Is(err, state.ErrNotFound) {
		return assignment.Assignment{}, false, nil
	}
	if err != nil {
		return assignment.Assignment{}, false, errors.WrapWithCode(err, errors.ErrCodeStore, "remove entry", errors.WithKey(key))
	}

	a, err = assignment.Decode(data)
	if err != nil {
		return assignment.Assignment{}, false, errors.WrapWithCode(err, errors.ErrCodeCodec, "decode entry", errors.WithKey(key))
	}
	return a, true, nil
}

// SnapshotKeys lists the keys present right now, in no particular order.
// Any of them may be gone by the time the caller tries to remove it.
func (s *SharedState) SnapshotKeys() ([]int64, error) {
	names, err := s.table.Keys(keyPrefix + "*")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeStore, "list entries")
	}
	keys := make([]int64, 0, len(names))
	for _, name := range names {
		if key, ok := parseTableKey(name); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Publish records the final count and then marks production done.
// It succeeds once; later calls return an ALREADY_PUBLISHED error.
func (s *SharedState) Publish(count int64) error {
	if err := s.completion.Publish(count); err != nil {
		return errors.AlreadyPublished(errors.WithCause(err))
	}
	return nil
}

// IsProductionDone reports whether the producer has published completion.
func (s *SharedState) IsProductionDone() bool {
	return s.completion.IsDone()
}

// FinalCount returns the published total, or state.SentinelCount before
// publication.
func (s *SharedState) FinalCount() int64 {
	return s.completion.FinalCount()
}

// ProductionDone returns a channel closed when completion is published.
func (s *SharedState) ProductionDone() <-chan struct{} {
	return s.completion.Done()
}

// Changes returns a channel that receives a value whenever entries are
// inserted. Bursts are coalesced into one wake-up. The channel closes when
// ctx is done or the table stops notifying.
func (s *SharedState) Changes(ctx context.Context) (<-chan struct{}, error) {
	updates, err := s.table.Watch(ctx, keyPrefix+"*")
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeStore, "watch entries")
	}

	wake := make(chan struct{}, 1)
	go func() {
		defer close(wake)
		for kv := range updates {
			if kv.Operation != state.OpPut {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		}
	}()
	return wake, nil
}
