// Package telemetry wraps OpenTelemetry tracing for producer/consumer runs.
//
// Without InitProvider every span is a no-op, so the pipeline can always
// create spans unconditionally.
package telemetry

import (
	"context"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with run-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include item descriptions in span attributes
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a tracer from the global OpenTelemetry provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// NewTracerFromProvider creates a tracer bound to a specific provider.
func NewTracerFromProvider(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(name),
		debug:  debug,
	}
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// --- Run spans ---

// StartRunSpan starts the root span of one producer/consumer run.
func (t *Tracer) StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "run", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("run.id", runID))
	return ctx, span
}

// EndRunSpan records the joined totals and ends the span.
func (t *Tracer) EndRunSpan(span trace.Span, produced, consumed int64, err error) {
	span.SetAttributes(
		attribute.Int64("run.produced", produced),
		attribute.Int64("run.consumed", consumed),
	)
	end(span, err)
}

// --- Entry spans ---

// EntrySpanOptions describes one entry crossing the shared table.
type EntrySpanOptions struct {
	Key         int64
	Description string // Only included if debug=true
}

// StartProduceSpan starts a span for one insertion.
func (t *Tracer) StartProduceSpan(ctx context.Context, key int64) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "produce", trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(attribute.Int64("entry.key", key))
	return ctx, span
}

// StartConsumeSpan starts a span for one removal and its processing.
func (t *Tracer) StartConsumeSpan(ctx context.Context, key int64) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "consume", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(attribute.Int64("entry.key", key))
	return ctx, span
}

// EndEntrySpan ends a produce or consume span.
func (t *Tracer) EndEntrySpan(span trace.Span, opts EntrySpanOptions, err error) {
	if t.debug && opts.Description != "" {
		span.SetAttributes(attribute.String("entry.description", truncate(opts.Description, 500)))
	}
	end(span, err)
}

// --- Sweep spans ---

// StartSweepSpan starts a span for one consumer pass over the visible keys.
func (t *Tracer) StartSweepSpan(ctx context.Context, sweep int) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "sweep", trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.Int("sweep.number", sweep))
	return ctx, span
}

// EndSweepSpan records what the sweep saw and ends the span.
func (t *Tracer) EndSweepSpan(span trace.Span, seen, consumed, raceMisses int64, err error) {
	span.SetAttributes(
		attribute.Int64("sweep.seen", seen),
		attribute.Int64("sweep.consumed", consumed),
		attribute.Int64("sweep.race_misses", raceMisses),
	)
	end(span, err)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
