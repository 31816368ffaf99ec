package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/webseek/webseek/internal/errors"
)

func TestPoolRunsTasks(t *testing.T) {
	p := NewPool(2, 16, nil)
	p.Start(context.Background())
	defer p.Stop()

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(Task{
			Kind: "count",
			Run: func(context.Context) error {
				done.Add(1)
				wg.Done()
				return nil
			},
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(8), done.Load())
}

func TestPoolRetriesTransientFailures(t *testing.T) {
	p := NewPool(1, 4, nil)
	p.Start(context.Background())
	defer p.Stop()

	var attempts atomic.Int32
	finished := make(chan struct{})
	require.NoError(t, p.Submit(Task{
		Kind:        "flaky",
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Run: func(context.Context) error {
			if attempts.Add(1) < 3 {
				return werrors.New(werrors.ErrCodeRetryableRemote, "try again")
			}
			close(finished)
			return nil
		},
	}))

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("task never succeeded")
	}
	assert.Equal(t, int32(3), attempts.Load())
}

func TestPoolDoesNotRetryPermanentFailures(t *testing.T) {
	p := NewPool(1, 4, nil)
	p.Start(context.Background())

	var attempts atomic.Int32
	ran := make(chan struct{})
	require.NoError(t, p.Submit(Task{
		Kind:        "broken",
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Run: func(context.Context) error {
			attempts.Add(1)
			close(ran)
			return werrors.BadConfig("never valid")
		},
	}))
	<-ran
	p.Stop()
	assert.Equal(t, int32(1), attempts.Load())
}

func TestPoolGivesUpAfterMaxAttempts(t *testing.T) {
	p := NewPool(1, 4, nil)
	p.Start(context.Background())

	var attempts atomic.Int32
	third := make(chan struct{})
	require.NoError(t, p.Submit(Task{
		Kind:        "doomed",
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		Run: func(context.Context) error {
			if attempts.Add(1) == 3 {
				defer close(third)
			}
			return werrors.New(werrors.ErrCodeRetryableRemote, "still down")
		},
	}))
	<-third
	p.Stop()
	assert.Equal(t, int32(3), attempts.Load())
}

func TestPoolSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 4, nil)
	p.Start(context.Background())
	p.Stop()

	err := p.Submit(Task{Kind: "late", Run: func(context.Context) error { return nil }})
	assert.Equal(t, werrors.ErrCodeConflict, werrors.CodeOf(err))
}

func TestPoolConcurrentSubmitAndStop(t *testing.T) {
	// Submitters race Stop; every Submit must either enqueue or report the
	// pool stopped, never panic on a closed queue.
	for i := 0; i < 25; i++ {
		p := NewPool(2, 64, nil)
		p.Start(context.Background())

		start := make(chan struct{})
		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for k := 0; k < 20; k++ {
					err := p.Submit(Task{Kind: "spin", Run: func(context.Context) error { return nil }})
					if err != nil && werrors.CodeOf(err) == werrors.ErrCodeConflict {
						return
					}
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p.Stop()
		}()
		close(start)
		wg.Wait()
	}
}

func TestPoolQueueFull(t *testing.T) {
	// Never started, so nothing drains the queue.
	p := NewPool(1, 1, nil)
	noop := func(context.Context) error { return nil }
	require.NoError(t, p.Submit(Task{Kind: "first", Run: noop}))

	err := p.Submit(Task{Kind: "second", Run: noop})
	assert.Equal(t, werrors.ErrCodeInternal, werrors.CodeOf(err))
}
