package state

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
)

// SentinelCount is the final count before completion is published.
// It is larger than any real count, so a reader that skips the flag check
// still never concludes that everything has been drained.
const SentinelCount int64 = math.MaxInt64

// ErrAlreadyPublished is returned when completion is published twice.
var ErrAlreadyPublished = errors.New("completion already published")

// Completion is a single-writer, multi-reader signal carrying the
// production-done flag and the final item count.
// The zero value is an unpublished signal.
type Completion struct {
	count     atomic.Int64
	done      atomic.Bool
	published atomic.Bool
	doneCh    chan struct{}
	initOnce  sync.Once
	closeOnce sync.Once
}

// NewCompletion returns an unpublished signal holding the sentinel count.
func NewCompletion() *Completion {
	c := &Completion{}
	c.count.Store(SentinelCount)
	c.init()
	return c
}

func (c *Completion) init() {
	c.initOnce.Do(func() { c.doneCh = make(chan struct{}) })
}

// Publish records the final count, then raises the flag.
// Only the first call has any effect; later calls return ErrAlreadyPublished.
func (c *Completion) Publish(count int64) error {
	if count < 0 {
		count = 0
	}
	if !c.published.CompareAndSwap(false, true) {
		return ErrAlreadyPublished
	}
	c.init()
	c.count.Store(count)
	c.done.Store(true)
	c.closeOnce.Do(func() { close(c.doneCh) })
	return nil
}

// IsDone reports whether completion has been published.
func (c *Completion) IsDone() bool {
	return c.done.Load()
}

// FinalCount returns the published count, or SentinelCount before publication.
// Only trust it after IsDone returned true.
func (c *Completion) FinalCount() int64 {
	if !c.done.Load() {
		return SentinelCount
	}
	return c.count.Load()
}

// Done returns a channel closed once completion is published.
func (c *Completion) Done() <-chan struct{} {
	c.init()
	return c.doneCh
}
