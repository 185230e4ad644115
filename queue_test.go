package wpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestQueue(t *testing.T) {
	t.Run("fifo", func(t *testing.T) {
		ctx := context.Background()
		subject := NewQueue[int](3)

		for round := range 4 {
			for i := range 3 {
				require.NoError(t, subject.Put(ctx, round*10+i))
			}
			for i := range 3 {
				got, err := subject.Take(ctx)
				require.NoError(t, err)
				assert.Equal(t, round*10+i, got)
			}
		}
		assert.Zero(t, subject.Len())
	})

	t.Run("capacity below one panics", func(t *testing.T) {
		assert.Panics(t, func() { NewQueue[int](0) })
	})

	t.Run("offer on full queue", func(t *testing.T) {
		subject := NewQueue[int](2)
		require.NoError(t, subject.Offer(1))
		require.NoError(t, subject.Offer(2))
		ErrorIs(ErrQueueFull, ErrRejected)(t, subject.Offer(3))
		assert.Equal(t, 2, subject.Len())
		assert.Equal(t, 2, subject.Cap())
	})

	t.Run("put blocks until take", func(t *testing.T) {
		ctx := context.Background()
		subject := NewQueue[string](1)
		require.NoError(t, subject.Put(ctx, "first"))

		putDone := make(chan time.Time, 1)
		go func() {
			assert.NoError(t, subject.Put(ctx, "second"))
			putDone <- time.Now()
		}()

		select {
		case <-putDone:
			t.Fatal("put on a full queue returned before a take")
		case <-time.After(50 * time.Millisecond):
		}

		takenAt := time.Now()
		got, err := subject.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, "first", got)

		putAt := <-putDone
		assert.False(t, putAt.Before(takenAt))

		got, err = subject.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, "second", got)
	})

	t.Run("take blocks until put", func(t *testing.T) {
		ctx := context.Background()
		subject := NewQueue[int](1)

		got := make(chan int, 1)
		go func() {
			v, err := subject.Take(ctx)
			assert.NoError(t, err)
			got <- v
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, subject.Put(ctx, 42))
		assert.Equal(t, 42, <-got)
	})

	t.Run("close drains then reports closed", func(t *testing.T) {
		ctx := context.Background()
		subject := NewQueue[int](4)
		require.NoError(t, subject.Put(ctx, 1))
		require.NoError(t, subject.Put(ctx, 2))
		subject.Close()
		subject.Close()
		assert.True(t, subject.IsClosed())

		ErrorIs(ErrRejected, ErrQueueClosed)(t, subject.Put(ctx, 3))
		ErrorIs(ErrRejected, ErrQueueClosed)(t, subject.Offer(3))

		v, err := subject.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		v, err = subject.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, v)

		_, err = subject.Take(ctx)
		ErrorIs(ErrQueueClosed)(t, err)
	})

	t.Run("close wakes blocked takers and putters", func(t *testing.T) {
		ctx := context.Background()
		empty := NewQueue[int](1)
		full := NewQueue[int](1)
		require.NoError(t, full.Put(ctx, 0))

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := empty.Take(ctx)
			ErrorIs(ErrQueueClosed)(t, err)
		}()
		go func() {
			defer wg.Done()
			ErrorIs(ErrRejected)(t, full.Put(ctx, 1))
		}()

		time.Sleep(20 * time.Millisecond)
		empty.Close()
		full.Close()
		wg.Wait()
	})

	t.Run("timed out and interrupted waits are distinct", func(t *testing.T) {
		subject := NewQueue[int](1)

		tctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := subject.Take(tctx)
		ErrorIs(ErrTimedOut)(t, err)

		cctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		require.NoError(t, subject.Put(context.Background(), 1))
		err = subject.Put(cctx, 2)
		ErrorIs(ErrInterrupted)(t, err)
		ErrorStringContains("context canceled")(t, err)

		assert.Equal(t, 1, subject.Len())
	})

	t.Run("abandoned wait leaves the wait list", func(t *testing.T) {
		ctx := context.Background()
		subject := NewQueue[int](1)

		cctx, cancel := context.WithCancel(ctx)
		abandoned := make(chan error, 1)
		go func() {
			_, err := subject.Take(cctx)
			abandoned <- err
		}()
		time.Sleep(20 * time.Millisecond)

		got := make(chan int, 1)
		go func() {
			v, err := subject.Take(ctx)
			assert.NoError(t, err)
			got <- v
		}()
		time.Sleep(20 * time.Millisecond)

		cancel()
		ErrorIs(ErrInterrupted)(t, <-abandoned)

		require.NoError(t, subject.Put(ctx, 7))
		assert.Equal(t, 7, <-got)
	})

	t.Run("discarding the head keeps parked putters in order", func(t *testing.T) {
		ctx := context.Background()
		subject := NewQueue[int](1)
		require.NoError(t, subject.Put(ctx, 1))

		putDone := make(chan error, 1)
		go func() { putDone <- subject.Put(ctx, 2) }()
		require.Eventually(t, func() bool {
			subject.mu.Lock()
			defer subject.mu.Unlock()
			return subject.notFull.len() == 1
		}, time.Second, time.Millisecond)

		subject.mu.Lock()
		evicted, ok := subject.discardHeadLocked()
		require.True(t, ok)
		assert.Equal(t, 1, evicted)
		assert.Equal(t, 1, subject.notFull.len(), "eviction must not wake the parked putter")
		subject.pushLocked(3)
		subject.mu.Unlock()

		got, err := subject.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, got)
		require.NoError(t, <-putDone)
		got, err = subject.Take(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, got)
	})

	t.Run("drain", func(t *testing.T) {
		ctx := context.Background()
		subject := NewQueue[int](3)
		for i := range 3 {
			require.NoError(t, subject.Put(ctx, i))
		}
		assert.Equal(t, []int{0, 1, 2}, subject.Drain())
		assert.Zero(t, subject.Len())
		require.NoError(t, subject.Offer(9))
	})
}

func TestQueueConcurrentProducersConsumers(t *testing.T) {
	for _, capacity := range []int{1, 3, 64} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			const (
				producers   = 8
				perProducer = 500
				consumers   = 4
			)
			ctx := context.Background()
			subject := NewQueue[int](capacity)

			var maxSeen atomic.Int64
			seen := make([]atomic.Int32, producers*perProducer)

			var consumersGroup errgroup.Group
			for range consumers {
				consumersGroup.Go(func() error {
					for {
						v, err := subject.Take(ctx)
						if err != nil {
							return nil
						}
						if n := int64(subject.Len()); n > maxSeen.Load() {
							maxSeen.Store(n)
						}
						seen[v].Add(1)
					}
				})
			}

			var producersGroup errgroup.Group
			for p := range producers {
				producersGroup.Go(func() error {
					for i := range perProducer {
						if err := subject.Put(ctx, p*perProducer+i); err != nil {
							return err
						}
					}
					return nil
				})
			}
			require.NoError(t, producersGroup.Wait())
			subject.Close()
			require.NoError(t, consumersGroup.Wait())

			for i := range seen {
				require.EqualValues(t, 1, seen[i].Load(), "item %d", i)
			}
			assert.LessOrEqual(t, maxSeen.Load(), int64(capacity))
		})
	}
}

func TestQueueFIFOPerProducer(t *testing.T) {
	ctx := context.Background()
	subject := NewQueue[[2]int](2)

	const producers, perProducer = 4, 200
	var g errgroup.Group
	for p := range producers {
		g.Go(func() error {
			for i := range perProducer {
				if err := subject.Put(ctx, [2]int{p, i}); err != nil {
					return err
				}
			}
			return nil
		})
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for range producers * perProducer {
		v, err := subject.Take(ctx)
		require.NoError(t, err)
		require.Greater(t, v[1], last[v[0]], "producer %d delivered out of order", v[0])
		last[v[0]] = v[1]
	}
	require.NoError(t, g.Wait())
}
