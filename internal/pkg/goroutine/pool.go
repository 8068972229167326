package goroutine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/atomic"
	"golang.org/x/time/rate"
)

var (
	// ErrQueueFull is returned by SubmitAll when a non-empty backlog cannot take every task.
	ErrQueueFull = errors.New("goroutine: pool queue is full")
	// ErrPoolClosed is returned by SubmitAll after Close.
	ErrPoolClosed = errors.New("goroutine: pool is closed")
)

// Task is a unit of work executed by a Pool worker.
type Task func(ctx context.Context)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Workers is the number of goroutines consuming the queue.
	Workers int
	// QueueSize bounds the backlog a batch may join. A batch offered while the
	// backlog is empty is accepted whatever its size.
	QueueSize int
	// Interval paces task starts across the whole pool. Zero disables pacing.
	Interval time.Duration
	// Burst is the number of task starts allowed back to back when pacing.
	Burst int
}

// PoolStats is a point-in-time snapshot of pool counters.
type PoolStats struct {
	Queued    int
	Submitted int64
	Completed int64
	Rejected  int64
	Dropped   int64
	Panicked  int64
}

// Pool is a fixed set of workers draining a bounded backlog.
//
// SubmitAll is all-or-nothing: a batch of tasks is either fully queued or
// not queued at all. Tasks run on a context detached from the submitter's
// cancellation, so a finished trigger does not abort queued sends.
type Pool struct {
	mu      sync.Mutex
	ready   *sync.Cond
	pending []poolJob
	size    int
	closed  bool
	limiter *rate.Limiter
	wg      sync.WaitGroup

	abort     context.Context
	abortFunc context.CancelFunc

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	dropped   atomic.Int64
	panicked  atomic.Int64
}

type poolJob struct {
	ctx  context.Context
	task Task
}

// NewPool starts cfg.Workers workers and returns the pool.
func NewPool(cfg PoolConfig) *Pool {
	workers := max(cfg.Workers, 1)

	abort, abortFunc := context.WithCancel(context.Background())
	p := &Pool{
		size:      max(cfg.QueueSize, 1),
		abort:     abort,
		abortFunc: abortFunc,
	}
	p.ready = sync.NewCond(&p.mu)
	if cfg.Interval > 0 {
		p.limiter = rate.NewLimiter(rate.Every(cfg.Interval), max(cfg.Burst, 1))
	}

	for range workers {
		p.wg.Go(p.work)
	}

	return p
}

// Submit queues a single task.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	return p.SubmitAll(ctx, []Task{task})
}

// SubmitAll queues every task or none of them. It rejects with ErrQueueFull
// only when the backlog is non-empty and cannot take the whole batch.
func (p *Pool) SubmitAll(ctx context.Context, tasks []Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	if backlog := len(p.pending); backlog > 0 && backlog+len(tasks) > p.size {
		p.rejected.Add(int64(len(tasks)))
		slog.WarnContext(ctx, "pool queue cannot take all tasks", "tasks", len(tasks), "free", p.size-backlog)
		return ErrQueueFull
	}

	detached := context.WithoutCancel(ctx)
	for _, t := range tasks {
		p.pending = append(p.pending, poolJob{ctx: detached, task: t})
	}
	p.submitted.Add(int64(len(tasks)))
	p.ready.Broadcast()

	return nil
}

// Close stops accepting tasks and waits for queued ones to finish.
// When ctx expires first, tasks that have not started are dropped and ctx.Err is returned.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.ready.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.abortFunc()
		<-done
		slog.WarnContext(ctx, "pool closed before draining", "dropped", p.dropped.Load())
		return ctx.Err()
	}
}

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	queued := len(p.pending)
	p.mu.Unlock()

	return PoolStats{
		Queued:    queued,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Dropped:   p.dropped.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// next blocks until a job is pending or the pool is closed and drained.
func (p *Pool) next() (poolJob, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.pending) == 0 && !p.closed {
		p.ready.Wait()
	}
	if len(p.pending) == 0 {
		return poolJob{}, false
	}

	job := p.pending[0]
	p.pending[0] = poolJob{}
	p.pending = p.pending[1:]
	if len(p.pending) == 0 {
		p.pending = nil
	}

	return job, true
}

func (p *Pool) work() {
	for {
		job, ok := p.next()
		if !ok {
			return
		}
		if p.abort.Err() != nil {
			p.dropped.Inc()
			continue
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(p.abort); err != nil {
				p.dropped.Inc()
				continue
			}
		}
		p.run(job)
	}
}

func (p *Pool) run(job poolJob) {
	defer p.completed.Inc()
	defer func() {
		if rvr := recover(); rvr != nil {
			p.panicked.Inc()
			logPanic(job.ctx, "pool task", rvr)
		}
	}()

	job.task(job.ctx)
}
