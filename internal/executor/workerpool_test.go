package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := newWorkerPool(2)

	var current, max int32
	observe := func() int32 {
		n := atomic.AddInt32(&current, 1)
		for {
			m := atomic.LoadInt32(&max)
			if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return n
	}

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_ = pool.call(context.Background(), func() { observe() })
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	assert.LessOrEqual(t, atomic.LoadInt32(&max), int32(2))
}

func TestWorkerPool_CallReturnsContextErrorWithoutRunningFn(t *testing.T) {
	pool := newWorkerPool(1)
	require.NoError(t, pool.call(context.Background(), func() {}))

	var ranWhileBusy bool
	blocker := make(chan struct{})
	go pool.call(context.Background(), func() { <-blocker })
	time.Sleep(20 * time.Millisecond) // let the blocker acquire the single slot

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pool.call(ctx, func() { ranWhileBusy = true })

	assert.Error(t, err)
	assert.False(t, ranWhileBusy)
	close(blocker)
}
