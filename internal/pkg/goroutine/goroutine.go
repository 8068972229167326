package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/jbcast/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 16

var (
	// ErrClosed is returned once Wait has been called.
	ErrClosed = errors.New("goroutine: manager is closed")
	// ErrLimitReached is returned when every slot is taken.
	ErrLimitReached = errors.New("goroutine: maximum goroutine limit reached")
)

// Manager runs long-lived background functions (broker consumers, pools)
// with a concurrency limit, and collects their errors for Wait.
type Manager struct {
	mu      sync.Mutex
	errs    []error
	wg      sync.WaitGroup
	sema    chan struct{}
	stateMu sync.RWMutex
	closed  bool
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}

	return &Manager{sema: make(chan struct{}, maxGoroutine)}
}

// Go schedules f in a goroutine if capacity is available.
// Panics in f are recovered and logged; f's error is kept for Wait.
func (g *Manager) Go(pCtx context.Context, f func(ctx context.Context) error) error {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()

	if g.closed {
		slog.WarnContext(pCtx, "goroutine manager is closed, skipping new goroutine")
		return ErrClosed
	}

	select {
	case g.sema <- struct{}{}:
	default:
		slog.WarnContext(pCtx, "maximum goroutine limit reached, failed to start new goroutine")
		return ErrLimitReached
	}

	g.wg.Go(func() {
		defer func() { <-g.sema }()
		defer func() {
			if rvr := recover(); rvr != nil {
				logPanic(pCtx, "goroutine", rvr)
			}
		}()

		if err := pCtx.Err(); err != nil {
			slog.WarnContext(pCtx, "goroutine canceled before start", "because", err)
			return
		}

		if err := f(pCtx); err != nil && !errors.Is(err, context.Canceled) {
			g.mu.Lock()
			g.errs = append(g.errs, err)
			g.mu.Unlock()
		}
	})

	return nil
}

// Wait refuses new work, blocks until every scheduled goroutine finishes
// and returns the joined errors.
func (g *Manager) Wait() error {
	g.stateMu.Lock()
	g.closed = true
	g.stateMu.Unlock()

	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}

func logPanic(ctx context.Context, kind string, rvr any) {
	stack := debug.Stack()
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		slog.ErrorContext(ctx, "panic occurred in "+kind, "panic", rvr, "stack", paths)
		return
	}
	slog.ErrorContext(ctx, "panic occurred in "+kind, "panic", rvr, "stack", string(stack))
}
