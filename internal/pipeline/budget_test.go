package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetBoundsConcurrency(t *testing.T) {
	const size = 3
	b := NewBudget("test", size)

	var current, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, b.Acquire(context.Background()))
			defer b.Release()

			n := atomic.AddInt64(&current, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&current, -1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(size))
	assert.Greater(t, atomic.LoadInt64(&peak), int64(0))
}

func TestBudgetAcquireHonorsContext(t *testing.T) {
	b := NewBudget("test", 1)
	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Acquire(ctx)
	assert.Error(t, err)

	b.Release()
}

func TestBudgetMinimumSize(t *testing.T) {
	b := NewBudget("test", 0)
	require.NoError(t, b.Acquire(context.Background()))
	b.Release()
}
