package shutdown

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vinayprograms/mapqueue/logging"
)

func TestShutdown_RunsPhasesInOrder(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	coord.RegisterFunc("telemetry", PhaseTelemetry, record("telemetry"))
	coord.RegisterFunc("store", PhaseStore, record("store"))
	coord.RegisterFunc("run", PhaseRun, record("run"))

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"run", "store", "telemetry"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected order %v, got %v", want, order)
	}

	select {
	case <-coord.Done():
	default:
		t.Error("Done not closed after shutdown")
	}
	if coord.Result().Failed() {
		t.Error("expected success")
	}
}

func TestShutdown_SamePhaseRunsConcurrently(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	var wg sync.WaitGroup
	wg.Add(2)
	both := func(context.Context) error {
		wg.Done()
		wg.Wait()
		return nil
	}
	coord.RegisterFunc("nats-conn", PhaseStore, both)
	coord.RegisterFunc("kv-bucket", PhaseStore, both)

	errCh := make(chan error, 1)
	go func() { errCh <- coord.ShutdownWithTimeout(time.Second) }()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handlers in the same phase did not run concurrently")
	}
}

func TestShutdown_HandlerFailure(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	ranTelemetry := false

	coord.RegisterFunc("store", PhaseStore, func(context.Context) error {
		return errors.New("bucket gone")
	})
	coord.RegisterFunc("telemetry", PhaseTelemetry, func(context.Context) error {
		ranTelemetry = true
		return nil
	})

	err := coord.ShutdownWithTimeout(time.Second)
	if !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("expected ErrHandlerFailed, got %v", err)
	}
	if !ranTelemetry {
		t.Error("later phases must still run by default")
	}
	failed := coord.Result().FailedHandlers()
	if len(failed) != 1 || failed[0] != "store" {
		t.Errorf("expected [store], got %v", failed)
	}
}

func TestShutdown_StopOnError(t *testing.T) {
	coord := NewCoordinator(Config{StopOnError: true})
	ranTelemetry := false

	coord.RegisterFunc("store", PhaseStore, func(context.Context) error {
		return errors.New("bucket gone")
	})
	coord.RegisterFunc("telemetry", PhaseTelemetry, func(context.Context) error {
		ranTelemetry = true
		return nil
	})

	if err := coord.ShutdownWithTimeout(time.Second); !errors.Is(err, ErrHandlerFailed) {
		t.Fatalf("expected ErrHandlerFailed, got %v", err)
	}
	if ranTelemetry {
		t.Error("later phases must be skipped with StopOnError")
	}
}

func TestShutdown_Timeout(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())

	coord.RegisterFunc("slow", PhaseStore, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	coord.RegisterFunc("never", PhaseTelemetry, func(context.Context) error {
		t.Error("phase after the deadline must not run")
		return nil
	})

	err := coord.ShutdownWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestShutdown_OnlyOnce(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	calls := 0
	coord.RegisterFunc("store", PhaseStore, func(context.Context) error {
		calls++
		return nil
	})

	if err := coord.ShutdownWithTimeout(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := coord.ShutdownWithTimeout(0); !errors.Is(err, ErrAlreadyShutdown) {
		t.Fatalf("expected ErrAlreadyShutdown, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestShutdown_Empty(t *testing.T) {
	coord := NewCoordinator(Config{})
	if coord.Result() != nil {
		t.Error("Result must be nil before shutdown")
	}
	if err := coord.ShutdownWithTimeout(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r := coord.Result(); r == nil || len(r.Results) != 0 {
		t.Errorf("expected empty result, got %+v", r)
	}
}

func TestHandleSignals_CancelsRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New()
	logger.SetOutput(&buf)

	coord := NewCoordinator(Config{Logger: logger})
	ctx, stop := coord.HandleSignals(context.Background())
	defer stop()

	coord.Trigger()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("run context not cancelled by signal")
	}

	// Cancelling the run does not release resources on its own.
	select {
	case <-coord.Done():
		t.Error("shutdown must wait for an explicit call")
	default:
	}

	if !strings.Contains(buf.String(), "signal received") {
		t.Errorf("expected signal log line, got %q", buf.String())
	}
}

func TestHandleSignals_StopCancels(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	ctx, stop := coord.HandleSignals(context.Background())

	stop()
	stop()

	if ctx.Err() == nil {
		t.Error("stop must cancel the returned context")
	}
}

func TestShutdown_RunPhaseCancelsRunContext(t *testing.T) {
	coord := NewCoordinator(DefaultConfig())
	ctx, stop := coord.HandleSignals(context.Background())
	defer stop()

	var storeSawCancel atomic.Bool
	coord.RegisterFunc("run", PhaseRun, func(context.Context) error {
		stop()
		return nil
	})
	coord.RegisterFunc("store", PhaseStore, func(context.Context) error {
		storeSawCancel.Store(ctx.Err() != nil)
		return nil
	})

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !storeSawCancel.Load() {
		t.Error("run context should be cancelled before the store closes")
	}
}

func TestGroupByPhase(t *testing.T) {
	if groups := groupByPhase(nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}

	groups := groupByPhase([]registration{
		{name: "a", phase: 10},
		{name: "b", phase: 20},
		{name: "c", phase: 20},
		{name: "d", phase: 30},
	})
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups[1]) != 2 || groups[1][0].name != "b" || groups[1][1].name != "c" {
		t.Errorf("unexpected middle group: %+v", groups[1])
	}
}
