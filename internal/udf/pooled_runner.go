package udf

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/adtech/kvserving/internal/util/workerpool"
)

// PooledRunner bounds UDF concurrency with a workerpool.Pool and
// enforces a per-invocation deadline, the same way the ingestion
// coordinator bounds delta-apply concurrency -- sized by configured
// worker count and per-call timeout.
type PooledRunner struct {
	inner   Runner
	pool    *workerpool.Pool
	timeout time.Duration
}

// Config configures PooledRunner construction.
type Config struct {
	Inner      Runner
	NumWorkers int
	Timeout    time.Duration
	Logger     *zap.Logger
}

// New wraps inner with a bounded worker pool and timeout.
func New(cfg Config) *PooledRunner {
	return &PooledRunner{
		inner:   cfg.Inner,
		timeout: cfg.Timeout,
		pool: workerpool.New(workerpool.Config{
			Name:       "udf",
			NumWorkers: cfg.NumWorkers,
			Logger:     cfg.Logger,
		}),
	}
}

// Run submits one partition to the pool, waits up to the configured
// timeout, and returns a StatusTimedOut output rather than blocking
// the caller forever if the UDF hangs.
func (r *PooledRunner) Run(ctx context.Context, partition Partition, data DataAccess) (Output, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resultCh := make(chan Output, 1)
	errCh := make(chan error, 1)

	task := workerpool.Task{
		ID:  partition.ID,
		Ctx: runCtx,
		Fn: func(taskCtx context.Context) error {
			out, err := r.inner.Run(taskCtx, partition, data)
			if err != nil {
				errCh <- err
				return err
			}
			resultCh <- out
			return nil
		},
	}

	if err := r.pool.Submit(ctx, task); err != nil {
		return Output{}, fmt.Errorf("submitting udf partition %s: %w", partition.ID, err)
	}

	select {
	case out := <-resultCh:
		return out, nil
	case err := <-errCh:
		return Output{Status: StatusFailed, Message: err.Error()}, nil
	case <-runCtx.Done():
		return Output{Status: StatusTimedOut, Message: "udf invocation timed out"}, nil
	}
}

// Stop stops the underlying pool, waiting up to timeout for running
// invocations to finish; partitions still queued may never run.
func (r *PooledRunner) Stop(timeout time.Duration) error {
	return r.pool.Stop(timeout)
}
