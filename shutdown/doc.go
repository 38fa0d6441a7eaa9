// Package shutdown turns OS signals into an orderly stop of a
// producer/consumer run.
//
// The first SIGINT or SIGTERM cancels the run context returned by
// HandleSignals. Producer and consumer notice at their next delay or key,
// publish or report what they finished, and return. The caller then runs
// Shutdown, which releases resources phase by phase:
//
//	signal ──▶ cancel run ctx ──▶ pipeline.Run returns (partial summary)
//	                                       │
//	                                       ▼
//	                   Shutdown: PhaseStore ──▶ PhaseTelemetry
//
// Handlers in the same phase run concurrently; lower phases run first.
// A second signal while shutdown is pending is left to the default Go
// behaviour once Stop has been called.
//
// # Usage
//
//	coord := shutdown.NewCoordinator(shutdown.Config{Timeout: 10 * time.Second, Logger: logger})
//	ctx, stop := coord.HandleSignals(context.Background())
//	defer stop()
//
//	coord.RegisterFunc("store", shutdown.PhaseStore, func(context.Context) error { return table.Close() })
//	coord.RegisterFunc("telemetry", shutdown.PhaseTelemetry, provider.Shutdown)
//
//	summary, err := pipeline.Run(ctx, producer, consumer, pipeline.RunConfig{})
//	_ = coord.ShutdownWithTimeout(0)
package shutdown
