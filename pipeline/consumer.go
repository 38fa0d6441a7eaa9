package pipeline

import (
	"context"
	"time"

	"github.com/vinayprograms/mapqueue/errors"
	"github.com/vinayprograms/mapqueue/logging"
	"github.com/vinayprograms/mapqueue/telemetry"
)

const (
	// DefaultWorkDelay is the simulated processing time per item used by
	// the example driver.
	DefaultWorkDelay = 1500 * time.Millisecond

	// DefaultSweepInterval bounds how long the consumer idles between empty
	// sweeps when no change notification arrives.
	DefaultSweepInterval = 50 * time.Millisecond
)

// Handler processes one consumed entry. Returning an error stops the
// consumer; the entry still counts as consumed.
type Handler func(ctx context.Context, entry Entry) error

// ConsumerConfig tunes a Consumer.
type ConsumerConfig struct {
	// Handler runs for every removed entry. Nil only logs.
	Handler Handler

	// WorkDelay is simulated processing time after each entry.
	WorkDelay time.Duration

	// SweepInterval is the idle wait between sweeps that removed nothing.
	SweepInterval time.Duration

	Logger *logging.Logger
	Tracer *telemetry.Tracer
}

// DefaultConsumerConfig returns the library defaults: no work delay and
// DefaultSweepInterval.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{SweepInterval: DefaultSweepInterval}
}

// ConsumerReport describes what a consumer removed.
type ConsumerReport struct {
	Consumed   int64
	Keys       []int64
	Sweeps     int
	RaceMisses int64
	Canceled   bool
	Duration   time.Duration
}

// Consumer drains a SharedState until the producer has published
// completion and every published item has been removed.
type Consumer struct {
	shared        *SharedState
	handler       Handler
	workDelay     time.Duration
	sweepInterval time.Duration
	logger        *logging.Logger
	tracer        *telemetry.Tracer
}

// NewConsumer creates a consumer of shared.
func NewConsumer(shared *SharedState, cfg ConsumerConfig) (*Consumer, error) {
	if shared == nil {
		return nil, errors.MissingCollaborator("shared state", errors.WithComponent("consumer"))
	}
	if cfg.WorkDelay < 0 {
		return nil, errors.InvalidConfig("work delay must not be negative", errors.WithComponent("consumer"))
	}
	if cfg.SweepInterval < 0 {
		return nil, errors.InvalidConfig("sweep interval must not be negative", errors.WithComponent("consumer"))
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.GetTracer()
	}

	return &Consumer{
		shared:        shared,
		handler:       cfg.Handler,
		workDelay:     cfg.WorkDelay,
		sweepInterval: cfg.SweepInterval,
		logger:        cfg.Logger.WithComponent("consumer"),
		tracer:        cfg.Tracer,
	}, nil
}

// Shared returns the state this consumer drains.
func (c *Consumer) Shared() *SharedState {
	return c.shared
}

// Run drains entries until production is done and the consumed count has
// reached the published total.
//
// The loop alternates between a draining sweep and the termination check.
// When a sweep removes nothing it waits for an insertion notification, the
// completion signal, or the sweep interval, whichever comes first. On
// cancellation it returns at once with a partial report and a CANCELED error.
func (c *Consumer) Run(ctx context.Context) (ConsumerReport, error) {
	start := time.Now()
	var report ConsumerReport
	err := c.drain(ctx, &report)
	report.Canceled = errors.IsCanceled(err)
	report.Duration = time.Since(start)
	return report, err
}

func (c *Consumer) drain(ctx context.Context, report *ConsumerReport) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	changes, err := c.shared.Changes(watchCtx)
	if err != nil {
		// Polling on the sweep interval still terminates.
		c.logger.Warn("change notifications unavailable", map[string]interface{}{"error": err.Error()})
	}
	done := c.shared.ProductionDone()

	for {
		before := report.Consumed
		if err := c.sweep(ctx, report); err != nil {
			return err
		}

		// Read the flag before the count: a true flag guarantees the count
		// is already the published one.
		if c.shared.IsProductionDone() && report.Consumed >= c.shared.FinalCount() {
			return nil
		}
		if report.Consumed > before {
			continue
		}

		timer := time.NewTimer(c.sweepInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), "consumer interrupted", errors.WithComponent("consumer"))
		case _, ok := <-changes:
			if !ok {
				changes = nil
			}
		case <-done:
			done = nil
		case <-timer.C:
		}
		timer.Stop()
	}
}

// sweep makes one pass over the keys visible now.
func (c *Consumer) sweep(ctx context.Context, report *ConsumerReport) (err error) {
	report.Sweeps++
	ctx, span := c.tracer.StartSweepSpan(ctx, report.Sweeps)

	var seen, consumed, misses int64
	defer func() {
		c.tracer.EndSweepSpan(span, seen, consumed, misses, err)
		c.logger.SweepComplete(report.Sweeps, seen, consumed)
	}()

	keys, err := c.shared.SnapshotKeys()
	if err != nil {
		return err
	}

	for _, key := range keys {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrap(ctxErr, "consumer interrupted", errors.WithComponent("consumer"))
		}
		seen++

		item, ok, rmErr := c.shared.Remove(key)
		if rmErr != nil {
			return rmErr
		}
		if !ok {
			misses++
			report.RaceMisses++
			c.logger.RaceMiss(key)
			continue
		}

		consumed++
		report.Consumed++
		report.Keys = append(report.Keys, key)

		if procErr := c.process(ctx, Entry{Key: key, Assignment: item}); procErr != nil {
			return procErr
		}
	}
	return nil
}

// process runs the handler and the work delay for one removed entry.
func (c *Consumer) process(ctx context.Context, entry Entry) error {
	ctx, span := c.tracer.StartConsumeSpan(ctx, entry.Key)
	c.logger.Consumed(entry.Key, entry.Assignment.String())

	var err error
	if c.handler != nil {
		if hErr := c.handler(ctx, entry); hErr != nil {
			err = errors.TaskFailed(entry.Key, hErr, errors.WithComponent("consumer"))
		}
	}
	if err == nil {
		if sErr := sleep(ctx, c.workDelay); sErr != nil {
			err = errors.Wrap(sErr, "consumer interrupted", errors.WithComponent("consumer"), errors.WithKey(entry.Key))
		}
	}

	c.tracer.EndEntrySpan(span, telemetry.EntrySpanOptions{Key: entry.Key, Description: entry.Assignment.Description}, err)
	return err
}
