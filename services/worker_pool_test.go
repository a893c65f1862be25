package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shiftline/shiftline-notify/config"
)

func poolConfig(workers, queue int) config.WorkerPoolConfig {
	return config.WorkerPoolConfig{
		MaxWorkers:             workers,
		QueueSize:              queue,
		ShutdownTimeoutSeconds: 5,
	}
}

func TestWorkerPool_SubmitAndExecute(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(2, 10))
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	var executed int32
	done := make(chan struct{})

	submitted := pool.Submit(Job{
		Name: "refresh-user-1",
		Execute: func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			close(done)
			return nil
		},
	})
	require.True(t, submitted, "job should be accepted")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not execute within timeout")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&executed))
}

func TestWorkerPool_BoundedConcurrency(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(2, 100))
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	var maxConcurrent int32
	var currentConcurrent int32
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Submit(Job{
			Name: "concurrent-refresh",
			Execute: func(ctx context.Context) error {
				defer wg.Done()

				current := atomic.AddInt32(&currentConcurrent, 1)
				defer atomic.AddInt32(&currentConcurrent, -1)

				mu.Lock()
				if current > maxConcurrent {
					maxConcurrent = current
				}
				mu.Unlock()

				time.Sleep(50 * time.Millisecond)
				return nil
			},
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, maxConcurrent, int32(2), "should never exceed 2 concurrent workers")
}

func TestWorkerPool_QueueFull(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(1, 2))
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	// Block the worker
	blocker := make(chan struct{})
	pool.Submit(Job{
		Name: "blocker",
		Execute: func(ctx context.Context) error {
			<-blocker
			return nil
		},
	})

	// Fill the queue
	time.Sleep(10 * time.Millisecond) // Let worker pick up blocker
	pool.Submit(Job{Name: "queued-1", Execute: func(ctx context.Context) error { return nil }})
	pool.Submit(Job{Name: "queued-2", Execute: func(ctx context.Context) error { return nil }})

	dropped := !pool.Submit(Job{Name: "overflow", Execute: func(ctx context.Context) error { return nil }})
	assert.True(t, dropped, "job should be dropped when queue is full")

	close(blocker)
}

func TestWorkerPool_GracefulShutdown(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(2, 10))
	pool.Start()

	var completed int32
	pool.Submit(Job{
		Name: "slow-refresh",
		Execute: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			atomic.AddInt32(&completed, 1)
			return nil
		},
	})

	// Give time for job to be picked up
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, pool.Shutdown(ctx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&completed), "job should complete during shutdown")
}

func TestWorkerPool_ShutdownTimeout(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(1, 10))
	pool.Start()

	jobDone := make(chan struct{})
	defer close(jobDone)

	// Job ignores its context to simulate an uncooperative task.
	pool.Submit(Job{
		Name: "stuck-job",
		Execute: func(ctx context.Context) error {
			select {
			case <-jobDone:
				return nil
			case <-time.After(10 * time.Second):
				return nil
			}
		},
	})

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := pool.Shutdown(ctx)
	assert.Error(t, err, "shutdown should time out")
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestWorkerPool_DoubleStart(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(2, 10))
	pool.Start()
	pool.Start() // idempotent
	defer func() { _ = pool.Shutdown(context.Background()) }()

	assert.True(t, pool.IsRunning())
}

func TestWorkerPool_JobErrorDoesNotStopWorker(t *testing.T) {
	resetWorkerPoolMetricsForTesting()
	pool := NewWorkerPool(poolConfig(1, 10))
	pool.Start()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	var executed int32
	pool.Submit(Job{
		Name: "failing-refresh",
		Execute: func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			return assert.AnError
		},
	})

	done := make(chan struct{})
	pool.Submit(Job{
		Name: "following-refresh",
		Execute: func(ctx context.Context) error {
			atomic.AddInt32(&executed, 1)
			close(done)
			return nil
		},
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second job did not execute")
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&executed), "both jobs should execute")
}
