// Package workerpool runs a bounded number of goroutines pulling from
// a shared queue, used by the ingestion coordinator to parallelize
// applying delta-file mutations to the Cache and by the UDF runner to
// bound invocation concurrency.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of work a Pool executes.
type Task struct {
	ID  string
	Fn  func(context.Context) error
	Ctx context.Context
}

// Pool is a fixed-size goroutine pool draining a bounded queue.
type Pool struct {
	name       string
	numWorkers int
	queue      chan Task
	logger     *zap.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	active    atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Config controls Pool construction.
type Config struct {
	Name       string
	NumWorkers int
	QueueSize  int
	Logger     *zap.Logger
}

// New starts numWorkers goroutines and returns a ready Pool.
func New(cfg Config) *Pool {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.NumWorkers * 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Pool{
		name:       cfg.Name,
		numWorkers: cfg.NumWorkers,
		queue:      make(chan Task, cfg.QueueSize),
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	return p
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case task := <-p.queue:
			p.run(id, task)
		}
	}
}

func (p *Pool) run(workerID int, task Task) {
	p.active.Add(1)
	defer p.active.Add(-1)

	start := time.Now()
	err := p.runSafely(task)
	duration := time.Since(start)

	if err != nil {
		p.failed.Add(1)
		p.logger.Error("task failed",
			zap.String("pool", p.name), zap.Int("worker_id", workerID),
			zap.String("task_id", task.ID), zap.Duration("duration", duration), zap.Error(err))
		return
	}
	p.logger.Debug("task completed",
		zap.String("pool", p.name), zap.Int("worker_id", workerID),
		zap.String("task_id", task.ID), zap.Duration("duration", duration))
	p.completed.Add(1)
}

func (p *Pool) runSafely(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %q panicked: %v", task.ID, r)
		}
	}()
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return task.Fn(ctx)
}

// Submit blocks until the task is accepted, the pool stops, or ctx is
// cancelled.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	// Check for a stopped pool first: in the select below a free queue
	// slot is also ready, and select picks among ready cases at random.
	select {
	case <-p.stopCh:
		p.rejected.Add(1)
		return fmt.Errorf("worker pool %q is stopped", p.name)
	default:
	}
	select {
	case <-p.stopCh:
		p.rejected.Add(1)
		return fmt.Errorf("worker pool %q is stopped", p.name)
	case <-ctx.Done():
		p.rejected.Add(1)
		return ctx.Err()
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	}
}

// Stop stops accepting new work and waits up to timeout for in-flight
// tasks to finish.
func (p *Pool) Stop(timeout time.Duration) error {
	var err error
	p.stopOnce.Do(func() {
		close(p.stopCh)
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("worker pool %q did not stop within %v", p.name, timeout)
		}
	})
	return err
}

// Stats is a point-in-time snapshot of pool activity, exposed for
// health checks and metrics.
type Stats struct {
	Name          string
	NumWorkers    int
	ActiveWorkers int
	QueuedTasks   int
	Submitted     int64
	Completed     int64
	Failed        int64
	Rejected      int64
}

func (p *Pool) Stats() Stats {
	return Stats{
		Name:          p.name,
		NumWorkers:    p.numWorkers,
		ActiveWorkers: int(p.active.Load()),
		QueuedTasks:   len(p.queue),
		Submitted:     p.submitted.Load(),
		Completed:     p.completed.Load(),
		Failed:        p.failed.Load(),
		Rejected:      p.rejected.Load(),
	}
}
