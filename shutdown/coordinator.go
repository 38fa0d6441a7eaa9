package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/mapqueue/logging"
)

// Coordinator runs registered handlers in phase order, once.
type Coordinator struct {
	config Config
	logger *logging.Logger

	mu       sync.Mutex
	handlers []registration

	once   sync.Once
	done   chan struct{}
	err    error
	result *Result

	signals chan os.Signal
}

// NewCoordinator creates a coordinator. A zero Timeout takes the default.
func NewCoordinator(config Config) *Coordinator {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Coordinator{
		config:  config,
		logger:  logger.WithComponent("shutdown"),
		done:    make(chan struct{}),
		signals: make(chan os.Signal, 1),
	}
}

// Register adds a handler to a phase.
func (c *Coordinator) Register(name string, phase int, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, registration{name: name, handler: handler, phase: phase})
}

// RegisterFunc adds a function handler to a phase.
func (c *Coordinator) RegisterFunc(name string, phase int, fn func(ctx context.Context) error) {
	c.Register(name, phase, HandlerFunc(fn))
}

// HandleSignals returns a context that is cancelled on the first SIGINT or
// SIGTERM, or when parent is done. stop releases the signal subscription.
func (c *Coordinator) HandleSignals(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)
	signal.Notify(c.signals, syscall.SIGINT, syscall.SIGTERM)

	quit := make(chan struct{})
	go func() {
		select {
		case sig := <-c.signals:
			c.logger.Warn("signal received, stopping run", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		case <-quit:
		}
	}()

	var stopOnce sync.Once
	return ctx, func() {
		stopOnce.Do(func() {
			signal.Stop(c.signals)
			close(quit)
			cancel()
		})
	}
}

// Trigger delivers a synthetic SIGTERM to HandleSignals.
func (c *Coordinator) Trigger() {
	select {
	case c.signals <- syscall.SIGTERM:
	default:
	}
}

// Shutdown runs every phase. Only the first call does any work; later calls
// return ErrAlreadyShutdown.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	first := false
	c.once.Do(func() {
		first = true
		c.err = c.run(ctx)
		close(c.done)
	})
	if !first {
		return ErrAlreadyShutdown
	}
	return c.err
}

// ShutdownWithTimeout runs Shutdown under a deadline. Zero uses the
// configured timeout.
func (c *Coordinator) ShutdownWithTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.Shutdown(ctx)
}

// Done is closed when Shutdown has finished.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Result returns the outcome, or nil before Done is closed.
func (c *Coordinator) Result() *Result {
	select {
	case <-c.done:
		return c.result
	default:
		return nil
	}
}

func (c *Coordinator) run(ctx context.Context) error {
	start := time.Now()

	c.mu.Lock()
	handlers := make([]registration, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	sort.SliceStable(handlers, func(i, j int) bool {
		return handlers[i].phase < handlers[j].phase
	})

	result := &Result{Results: make([]HandlerResult, 0, len(handlers))}
	finish := func(err error) error {
		result.Err = err
		result.TotalDuration = time.Since(start)
		c.result = result
		return err
	}

	var failed error
	for _, group := range groupByPhase(handlers) {
		if ctx.Err() != nil {
			c.logger.Error("shutdown timed out", map[string]interface{}{"phase": group[0].phase})
			return finish(ErrTimeout)
		}

		for _, hr := range c.runPhase(ctx, group) {
			result.Results = append(result.Results, hr)
			if hr.Err != nil {
				failed = ErrHandlerFailed
			}
		}
		if failed != nil && c.config.StopOnError {
			return finish(failed)
		}
	}
	return finish(failed)
}

func (c *Coordinator) runPhase(ctx context.Context, group []registration) []HandlerResult {
	results := make([]HandlerResult, len(group))
	var wg sync.WaitGroup

	for i, reg := range group {
		wg.Add(1)
		go func(i int, reg registration) {
			defer wg.Done()
			start := time.Now()
			err := reg.handler.OnShutdown(ctx)
			results[i] = HandlerResult{Name: reg.name, Phase: reg.phase, Duration: time.Since(start), Err: err}

			fields := map[string]interface{}{
				"handler":  reg.name,
				"phase":    reg.phase,
				"duration": results[i].Duration.String(),
			}
			if err != nil {
				fields["error"] = err.Error()
				c.logger.Error("handler failed", fields)
				return
			}
			c.logger.Debug("handler done", fields)
		}(i, reg)
	}

	wg.Wait()
	return results
}

// groupByPhase splits handlers, already sorted by phase, into runs of equal
// phase.
func groupByPhase(handlers []registration) [][]registration {
	var groups [][]registration
	for i := 0; i < len(handlers); {
		j := i
		for j < len(handlers) && handlers[j].phase == handlers[i].phase {
			j++
		}
		groups = append(groups, handlers[i:j])
		i = j
	}
	return groups
}
