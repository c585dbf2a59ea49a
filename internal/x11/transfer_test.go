package x11

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferQueue_Order(t *testing.T) {
	q := newTransferQueue(time.Hour)
	a := &transfer{mime: "text/plain"}
	b := &transfer{mime: "text/html"}

	assert.True(t, q.push(a))
	assert.False(t, q.push(b))

	head, ok := q.head()
	require.True(t, ok)
	assert.Same(t, a, head)

	removed, _ := q.pop(b)
	assert.False(t, removed, "only the head can be popped")

	removed, more := q.pop(a)
	assert.True(t, removed)
	assert.True(t, more)

	removed, more = q.pop(b)
	assert.True(t, removed)
	assert.False(t, more)

	_, ok = q.head()
	assert.False(t, ok)
}

func TestTransferQueue_ExpiresUnansweredHead(t *testing.T) {
	q := newTransferQueue(10 * time.Millisecond)
	a := &transfer{mime: "text/plain"}
	b := &transfer{mime: "text/html"}
	q.push(a)
	q.push(b)

	expired := make(chan *transfer, 1)
	q.arm(a, func(t *transfer) {
		if removed, _ := q.pop(t); removed {
			expired <- t
		}
	})

	select {
	case got := <-expired:
		assert.Same(t, a, got)
	case <-time.After(5 * time.Second):
		t.Fatal("head transfer never expired")
	}
	head, ok := q.head()
	require.True(t, ok)
	assert.Same(t, b, head)
}

func TestTransferQueue_PopStopsDeadline(t *testing.T) {
	q := newTransferQueue(20 * time.Millisecond)
	a := &transfer{mime: "text/plain"}
	q.push(a)

	fired := make(chan struct{}, 1)
	q.arm(a, func(*transfer) { fired <- struct{}{} })
	removed, _ := q.pop(a)
	require.True(t, removed)

	select {
	case <-fired:
		t.Fatal("deadline fired for a completed transfer")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPipeTo_ProducerLargerThanPipeBuffer(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 256*1024)
	got := make(chan []byte, 1)

	err := pipeTo(
		func(w *os.File) {
			defer w.Close()
			_, err := w.Write(payload)
			assert.NoError(t, err)
		},
		func(r *os.File) {
			defer r.Close()
			data, _ := io.ReadAll(r)
			got <- data
		},
	)
	require.NoError(t, err)

	select {
	case data := <-got:
		assert.Equal(t, len(payload), len(data))
	case <-time.After(5 * time.Second):
		t.Fatal("reader never finished")
	}
}
