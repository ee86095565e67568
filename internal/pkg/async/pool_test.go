package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepulse/internal/pkg/async"
)

func TestPoolExecute(t *testing.T) {
	t.Run("collects every result by name", func(t *testing.T) {
		pool := async.NewPool(2)
		boom := errors.New("boom")

		results := pool.Execute(context.Background(), []async.Task{
			{Name: "one", Execute: func(ctx context.Context) (any, error) { return 1, nil }},
			{Name: "two", Execute: func(ctx context.Context) (any, error) { return 2, nil }},
			{Name: "fail", Execute: func(ctx context.Context) (any, error) { return nil, boom }},
		})

		require.Len(t, results, 3)
		assert.Equal(t, 1, results["one"].Data)
		assert.Equal(t, 2, results["two"].Data)
		assert.ErrorIs(t, results["fail"].Err, boom)
	})

	t.Run("bounds concurrency", func(t *testing.T) {
		pool := async.NewPool(2)
		var running, peak int32

		tasks := make([]async.Task, 6)
		for i := range tasks {
			tasks[i] = async.Task{
				Name: string(rune('a' + i)),
				Execute: func(ctx context.Context) (any, error) {
					n := atomic.AddInt32(&running, 1)
					for {
						p := atomic.LoadInt32(&peak)
						if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					atomic.AddInt32(&running, -1)
					return nil, nil
				},
			}
		}

		results := pool.Execute(context.Background(), tasks)
		assert.Len(t, results, 6)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	})

	t.Run("recovers panicking tasks", func(t *testing.T) {
		results := async.NewPool(1).Execute(context.Background(), []async.Task{
			{Name: "panic", Execute: func(ctx context.Context) (any, error) { panic("bad") }},
		})
		assert.Error(t, results["panic"].Err)
	})

	t.Run("cancelled context reports errors", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := async.NewPool(1).Execute(ctx, []async.Task{
			{Name: "late", Execute: func(ctx context.Context) (any, error) { return "ran", nil }},
		})
		assert.ErrorIs(t, results["late"].Err, context.Canceled)
	})
}
