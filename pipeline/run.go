package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vinayprograms/mapqueue/errors"
	"github.com/vinayprograms/mapqueue/logging"
	"github.com/vinayprograms/mapqueue/telemetry"
)

// RunConfig carries the run-scoped collaborators. All fields are optional.
type RunConfig struct {
	// RunID labels logs, spans and the summary. Empty generates a UUID.
	RunID  string
	Logger *logging.Logger
	Tracer *telemetry.Tracer
}

// Summary is the joined result of one run.
type Summary struct {
	RunID        string        `yaml:"run_id"`
	Produced     int64         `yaml:"produced"`
	Consumed     int64         `yaml:"consumed"`
	Sweeps       int           `yaml:"sweeps"`
	RaceMisses   int64         `yaml:"race_misses"`
	Canceled     bool          `yaml:"canceled"`
	Duration     time.Duration `yaml:"duration"`
	ProducedKeys []int64       `yaml:"produced_keys,flow"`
	ConsumedKeys []int64       `yaml:"consumed_keys,flow"`
	Error        string        `yaml:"error,omitempty"`
}

// Complete reports whether every produced assignment was consumed without
// cancellation or failure.
func (s Summary) Complete() bool {
	return !s.Canceled && s.Error == "" && s.Produced == s.Consumed
}

func (s Summary) String() string {
	if s.Complete() {
		return "all assignments produced and consumed"
	}
	return fmt.Sprintf("terminated early: produced %d, consumed %d", s.Produced, s.Consumed)
}

// WriteYAML writes the summary as a YAML document.
func (s Summary) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeCodec, "encode summary")
	}
	if err := enc.Close(); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeCodec, "encode summary")
	}
	return nil
}

// Run starts the producer and consumer concurrently on ctx and waits for
// both. The summary is filled in even when an error is returned.
//
// Cancelling ctx stops both roles; the error then has code CANCELED. A
// failure in either role is returned and does not stop the other, which
// still terminates because the producer always publishes completion.
func Run(ctx context.Context, producer *Producer, consumer *Consumer, cfg RunConfig) (Summary, error) {
	if producer == nil {
		return Summary{}, errors.MissingCollaborator("producer", errors.WithComponent("pipeline"))
	}
	if consumer == nil {
		return Summary{}, errors.MissingCollaborator("consumer", errors.WithComponent("pipeline"))
	}
	if producer.Shared() != consumer.Shared() {
		return Summary{}, errors.InvalidConfig("producer and consumer must use the same shared state", errors.WithComponent("pipeline"))
	}

	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.GetTracer()
	}
	logger := cfg.Logger.WithComponent("pipeline").WithTraceID(cfg.RunID)

	start := time.Now()
	ctx, span := cfg.Tracer.StartRunSpan(ctx, cfg.RunID)

	var (
		pr         ProducerReport
		cr         ConsumerReport
		pErr, cErr error
		g          errgroup.Group
	)
	g.Go(func() error {
		pr, pErr = producer.Run(ctx)
		return pErr
	})
	g.Go(func() error {
		cr, cErr = consumer.Run(ctx)
		return cErr
	})

	var err error
	if g.Wait() != nil {
		// Wait keeps only the first error; the summary reports both roles.
		err = joinRunErrors(pErr, cErr)
	}
	summary := Summary{
		RunID:        cfg.RunID,
		Produced:     pr.Produced,
		Consumed:     cr.Consumed,
		Sweeps:       cr.Sweeps,
		RaceMisses:   cr.RaceMisses,
		Canceled:     pr.Canceled || cr.Canceled,
		Duration:     time.Since(start),
		ProducedKeys: pr.Keys,
		ConsumedKeys: cr.Keys,
	}
	if failed(err) {
		summary.Error = err.Error()
	}

	cfg.Tracer.EndRunSpan(span, summary.Produced, summary.Consumed, err)
	status := "complete"
	if !summary.Complete() {
		status = "partial"
	}
	logger.RunComplete(summary.Produced, summary.Consumed, summary.Duration, status)

	return summary, err
}

// failed reports whether err is anything other than an external stop.
// Only the outermost structured code counts, so a task failure joined
// with a cancellation is still a failure.
func failed(err error) bool {
	if err == nil {
		return false
	}
	switch errors.Code(err) {
	case errors.ErrCodeCanceled, errors.ErrCodeTimeout:
		return false
	case "":
		return !errors.IsCanceled(err)
	}
	return true
}

// joinRunErrors returns nil, the single error, or both joined with the
// non-cancellation error first so its code is the one callers see.
func joinRunErrors(producerErr, consumerErr error) error {
	switch {
	case producerErr == nil:
		return consumerErr
	case consumerErr == nil:
		return producerErr
	case !failed(producerErr) && failed(consumerErr):
		return errors.Join(consumerErr, producerErr)
	default:
		return errors.Join(producerErr, consumerErr)
	}
}
