// Package worker runs jobs on a fixed set of worker contexts. Each worker
// owns its own Handler, so per-worker state such as a vision capability is
// never shared between goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/scanwarp/internal/job"
)

// ErrClosed is returned when submitting to a closed pool.
var ErrClosed = errors.New("worker pool closed")

// Handler executes one job. *job.Dispatcher implements it.
type Handler interface {
	Handle(ctx context.Context, j job.Job) job.Result
}

// Factory builds the Handler of worker id.
type Factory func(id int) Handler

// Config holds pool sizing.
type Config struct {
	Workers   int // Number of worker contexts (0 = runtime.NumCPU())
	QueueSize int // Pending jobs accepted before Submit blocks (0 = Workers*4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU()}
}

// Stats is a snapshot of pool activity.
type Stats struct {
	Workers   int   `json:"workers"`
	Pending   int   `json:"pending"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
}

type task struct {
	ctx   context.Context
	job   job.Job
	reply chan job.Result
}

// Pool distributes jobs over its workers. Results come back in completion
// order, not submission order.
type Pool struct {
	queue   chan task
	workers int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	active    atomic.Int64
	completed atomic.Int64
}

// New starts cfg.Workers workers, each with the Handler built by factory.
func New(cfg Config, factory Factory) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 4
	}
	p := &Pool{queue: make(chan task, cfg.QueueSize), workers: cfg.Workers}
	for id := range cfg.Workers {
		p.wg.Add(1)
		go p.worker(id, factory(id))
	}
	slog.Debug("Worker pool started", "workers", cfg.Workers, "queue", cfg.QueueSize)
	return p
}

func (p *Pool) worker(id int, h Handler) {
	defer p.wg.Done()
	for t := range p.queue {
		p.active.Add(1)
		t.reply <- p.execute(id, h, t)
		p.active.Add(-1)
		p.completed.Add(1)
	}
}

// execute guarantees a Result for t even when the caller gave up while the
// job was queued or the handler panicked.
func (p *Pool) execute(id int, h Handler, t task) (res job.Result) {
	if err := t.ctx.Err(); err != nil {
		return job.Failure{ID: t.job.ID, Reason: fmt.Sprintf("cancelled before start: %v", err)}
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Worker handler panicked", "worker", id, "job_id", t.job.ID.String(), "panic", r)
			res = job.Failure{ID: t.job.ID, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return h.Handle(t.ctx, t.job)
}

// Submit queues j. The returned channel receives exactly one Result.
func (p *Pool) Submit(ctx context.Context, j job.Job) (<-chan job.Result, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	reply := make(chan job.Result, 1)
	select {
	case p.queue <- task{ctx: ctx, job: j, reply: reply}:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Do submits j and waits for its Result.
func (p *Pool) Do(ctx context.Context, j job.Job) (job.Result, error) {
	reply, err := p.Submit(ctx, j)
	if err != nil {
		return nil, err
	}
	return <-reply, nil
}

// Run executes jobs concurrently and calls emit for each Result as it
// completes. Jobs that cannot be queued still produce a Failure.
func (p *Pool) Run(ctx context.Context, jobs []job.Job, progress ProgressCallback, emit func(job.Result)) {
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(jobs))
	defer progress.OnComplete()

	results := make(chan job.Result, len(jobs))
	var pending sync.WaitGroup
	go func() {
		for _, j := range jobs {
			reply, err := p.Submit(ctx, j)
			if err != nil {
				results <- job.Failure{ID: j.ID, Reason: err.Error()}
				continue
			}
			pending.Add(1)
			go func() {
				defer pending.Done()
				results <- <-reply
			}()
		}
		pending.Wait()
		close(results)
	}()

	done := 0
	for r := range results {
		done++
		if f, ok := r.(job.Failure); ok {
			progress.OnError(done, errors.New(f.Reason))
		}
		progress.OnProgress(done, len(jobs))
		emit(r)
	}
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Pending:   len(p.queue),
		Active:    p.active.Load(),
		Completed: p.completed.Load(),
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
	slog.Debug("Worker pool stopped", "completed", p.completed.Load())
}
