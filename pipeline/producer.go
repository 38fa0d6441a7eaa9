package pipeline

import (
	"context"
	"time"

	"github.com/vinayprograms/mapqueue/assignment"
	"github.com/vinayprograms/mapqueue/errors"
	"github.com/vinayprograms/mapqueue/logging"
	"github.com/vinayprograms/mapqueue/telemetry"
)

// DefaultProduceDelay is the pause after each insertion.
const DefaultProduceDelay = 500 * time.Millisecond

// ProducerConfig tunes a Producer. Zero Logger and Tracer fall back to
// a discarding logger and the global tracer.
type ProducerConfig struct {
	// Delay is the pause after each insertion. Zero disables it.
	Delay  time.Duration
	Logger *logging.Logger
	Tracer *telemetry.Tracer
}

// DefaultProducerConfig returns the configuration used by the example
// driver.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{Delay: DefaultProduceDelay}
}

// ProducerReport describes what a producer inserted.
type ProducerReport struct {
	Produced int64
	Keys     []int64
	Canceled bool
	Duration time.Duration
}

// Producer inserts a fixed sequence of assignments under keys 1..N and
// then publishes how many it inserted.
type Producer struct {
	shared *SharedState
	items  []assignment.Assignment
	delay  time.Duration
	logger *logging.Logger
	tracer *telemetry.Tracer
}

// NewProducer creates a producer for items, in order. items must not be
// empty.
func NewProducer(shared *SharedState, items []assignment.Assignment, cfg ProducerConfig) (*Producer, error) {
	if shared == nil {
		return nil, errors.MissingCollaborator("shared state", errors.WithComponent("producer"))
	}
	if len(items) == 0 {
		return nil, errors.InvalidConfig("producer needs at least one assignment", errors.WithComponent("producer"))
	}
	if cfg.Delay < 0 {
		return nil, errors.InvalidConfig("produce delay must not be negative", errors.WithComponent("producer"))
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.GetTracer()
	}

	// Copy so later changes to the caller's slice cannot alter the run.
	owned := make([]assignment.Assignment, len(items))
	copy(owned, items)

	return &Producer{
		shared: shared,
		items:  owned,
		delay:  cfg.Delay,
		logger: cfg.Logger.WithComponent("producer"),
		tracer: cfg.Tracer,
	}, nil
}

// Shared returns the state this producer writes to.
func (p *Producer) Shared() *SharedState {
	return p.shared
}

// Run inserts every item and publishes completion.
//
// Completion is published on every exit path with the number of items
// actually inserted, so a consumer waiting on the same state always
// terminates. On cancellation the returned error has code CANCELED.
func (p *Producer) Run(ctx context.Context) (ProducerReport, error) {
	start := time.Now()
	report := ProducerReport{Keys: make([]int64, 0, len(p.items))}

	runErr := p.produce(ctx, &report)
	report.Canceled = errors.IsCanceled(runErr)

	if err := p.shared.Publish(report.Produced); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			p.logger.Error("publish failed", map[string]interface{}{"error": err.Error()})
		}
	} else {
		p.logger.ProductionPublished(report.Produced, report.Canceled)
	}

	report.Duration = time.Since(start)
	return report, runErr
}

func (p *Producer) produce(ctx context.Context, report *ProducerReport) error {
	for i, item := range p.items {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "producer interrupted", errors.WithComponent("producer"))
		}

		key := int64(i + 1)
		_, span := p.tracer.StartProduceSpan(ctx, key)
		err := p.shared.Put(key, item)
		p.tracer.EndEntrySpan(span, telemetry.EntrySpanOptions{Key: key, Description: item.Description}, err)
		if err != nil {
			return err
		}

		report.Produced++
		report.Keys = append(report.Keys, key)
		p.logger.Produced(key, item.String())

		if err := sleep(ctx, p.delay); err != nil {
			return errors.Wrap(err, "producer interrupted", errors.WithComponent("producer"), errors.WithKey(key))
		}
	}
	return nil
}

// sleep waits for d or until ctx is done. A non-positive d only checks ctx.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
