package shutdown

import (
	"context"
	"errors"
	"time"

	"github.com/vinayprograms/mapqueue/logging"
)

var (
	// ErrAlreadyShutdown is returned by every Shutdown call after the first.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout means the deadline passed before all phases ran.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed means at least one handler returned an error.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Phases used by the example driver. Lower runs first.
const (
	// PhaseRun stops anything still driving the run.
	PhaseRun = 10
	// PhaseStore closes the shared table and its connection.
	PhaseStore = 20
	// PhaseTelemetry flushes and stops span export, last so store
	// shutdown spans are not lost.
	PhaseTelemetry = 30
)

// Handler releases one resource.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context) error

// OnShutdown implements Handler.
func (f HandlerFunc) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// HandlerResult is the outcome of one handler.
type HandlerResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a whole shutdown.
type Result struct {
	TotalDuration time.Duration
	Results       []HandlerResult
	Err           error
}

// Failed reports whether shutdown ended with an error.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// FailedHandlers returns the names of handlers that returned an error.
func (r *Result) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

// Config configures a Coordinator.
type Config struct {
	// Timeout bounds ShutdownWithTimeout(0). Default: 10 seconds.
	Timeout time.Duration

	// StopOnError skips later phases once a handler fails.
	StopOnError bool

	// Logger receives one line per signal and handler. Nil discards.
	Logger *logging.Logger
}

// DefaultConfig returns a 10 second timeout that runs every phase.
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

type registration struct {
	name    string
	handler Handler
	phase   int
}
