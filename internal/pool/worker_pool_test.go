package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	p := New(2, 4)
	defer p.Close()

	var ran atomic.Int32
	var dones []<-chan struct{}
	for i := 0; i < 5; i++ {
		done, err := p.Submit(context.Background(), func(_ context.Context) {
			ran.Add(1)
		})
		require.NoError(t, err)
		dones = append(dones, done)
	}
	for _, done := range dones {
		<-done
	}

	assert.Equal(t, int32(5), ran.Load())
	submitted, completed := p.Stats()
	assert.Equal(t, int64(5), submitted)
	assert.Equal(t, int64(5), completed)
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	p := New(1, 1)
	p.Close()

	_, err := p.Submit(context.Background(), func(_ context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestWorkerPool_SubmitHonorsCancel(t *testing.T) {
	p := New(1, 1)
	defer p.Close()

	block := make(chan struct{})
	// Occupy the single worker and fill the queue.
	_, err := p.Submit(context.Background(), func(_ context.Context) { <-block })
	require.NoError(t, err)
	_, err = p.Submit(context.Background(), func(_ context.Context) {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Submit(ctx, func(_ context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
}

func TestWorkerPool_PanicDoesNotKillWorker(t *testing.T) {
	p := New(1, 2)
	defer p.Close()

	done, err := p.Submit(context.Background(), func(_ context.Context) {
		panic("task exploded")
	})
	require.NoError(t, err)
	<-done

	// The lone worker must survive and run the next task.
	var ran atomic.Bool
	done, err = p.Submit(context.Background(), func(_ context.Context) {
		ran.Store(true)
	})
	require.NoError(t, err)
	<-done
	assert.True(t, ran.Load())
}

func TestWorkerPool_SubmitConcurrentWithClose(t *testing.T) {
	p := New(2, 4)

	// Concurrent submits against Close must settle to either an accepted
	// task or ErrPoolClosed, never a send on a closed channel.
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Submit(context.Background(), func(_ context.Context) {})
			if err != nil {
				assert.ErrorIs(t, err, ErrPoolClosed)
			}
		}()
	}
	p.Close()
	wg.Wait()

	submitted, completed := p.Stats()
	assert.Equal(t, submitted, completed)
}

func TestWorkerPool_CloseWaitsForInflight(t *testing.T) {
	p := New(2, 2)

	var finished atomic.Int32
	for i := 0; i < 2; i++ {
		_, err := p.Submit(context.Background(), func(_ context.Context) {
			time.Sleep(30 * time.Millisecond)
			finished.Add(1)
		})
		require.NoError(t, err)
	}

	p.Close()
	assert.Equal(t, int32(2), finished.Load())
}
