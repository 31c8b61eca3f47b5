package audio

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFOAcrossGrowth(t *testing.T) {
	q := NewQueue[int](2)
	ctx := context.Background()

	require.NoError(t, q.Send(1))
	v, err := q.Recv(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	// Wrap the ring, then force it to grow.
	for i := 2; i <= 20; i++ {
		require.NoError(t, q.Send(i))
	}
	require.Equal(t, 19, q.Len())

	for want := 2; want <= 20; want++ {
		v, err := q.Recv(ctx)
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int](4)
	require.NoError(t, q.Send(7))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Send(8), ErrQueueClosed)

	v, err := q.Recv(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, v)

	_, err = q.Recv(context.Background())
	require.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueRecvCancelled(t *testing.T) {
	q := NewQueue[int](1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueCloseWakesReceiver(t *testing.T) {
	q := NewQueue[int](1)
	errs := make(chan error, 1)
	go func() {
		_, err := q.Recv(context.Background())
		errs <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("receiver not woken by close")
	}
}

func TestQueueConcurrentProducer(t *testing.T) {
	q := NewQueue[int](1)
	const n = 10000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			if err := q.Send(i); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for want := 0; want < n; want++ {
		v, err := q.Recv(context.Background())
		require.NoError(t, err)
		require.Equal(t, want, v)
	}
	wg.Wait()
}
