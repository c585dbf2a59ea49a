package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) (*Loop, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l, cancel, done
}

func TestLoop_RunsInOrder(t *testing.T) {
	l, _, _ := startLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Call(ctx, func() {}))

	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestLoop_RecoversFromPanic(t *testing.T) {
	l, _, _ := startLoop(t)

	require.NoError(t, l.Post(func() { panic("boom") }))

	ran := false
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Call(ctx, func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_PostAfterStop(t *testing.T) {
	l, cancel, done := startLoop(t)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrStopped)
}

func TestLoop_CallHonoursContext(t *testing.T) {
	l := New(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Call(ctx, func() {}), context.DeadlineExceeded)
}
