package workerpool_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/kvserving/internal/util/workerpool"
)

func TestPool_ExecutesAllSubmittedTasks(t *testing.T) {
	p := workerpool.New(workerpool.Config{Name: "test", NumWorkers: 4})
	defer p.Stop(time.Second)

	var count atomic.Int64
	for i := 0; i < 50; i++ {
		err := p.Submit(context.Background(), workerpool.Task{
			ID: "t",
			Fn: func(ctx context.Context) error {
				count.Add(1)
				return nil
			},
		})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return count.Load() == 50 }, time.Second, time.Millisecond)
}

func TestPool_RecoversFromPanic(t *testing.T) {
	p := workerpool.New(workerpool.Config{Name: "test", NumWorkers: 1})
	defer p.Stop(time.Second)

	err := p.Submit(context.Background(), workerpool.Task{
		ID: "boom",
		Fn: func(ctx context.Context) error {
			panic("nope")
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return p.Stats().Failed == 1 }, time.Second, time.Millisecond)
}

func TestPool_SubmitAfterStopFails(t *testing.T) {
	p := workerpool.New(workerpool.Config{Name: "test", NumWorkers: 1})
	require.NoError(t, p.Stop(time.Second))

	err := p.Submit(context.Background(), workerpool.Task{ID: "late", Fn: func(ctx context.Context) error { return nil }})
	assert.Error(t, err)
}
