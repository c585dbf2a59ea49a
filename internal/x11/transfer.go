package x11

import (
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

// convertTimeout bounds how long an X owner may take to answer a
// ConvertSelection before the transfer is abandoned.
const convertTimeout = 5 * time.Second

type transfer struct {
	mime  string
	atom  xproto.Atom
	fd    *os.File
	timer *time.Timer
}

// transferQueue holds the content requests for one selection. Only the
// head is being converted; the rest wait for it to finish or expire.
type transferQueue struct {
	mu      sync.Mutex
	items   []*transfer
	timeout time.Duration
}

func newTransferQueue(timeout time.Duration) *transferQueue {
	return &transferQueue{timeout: timeout}
}

// push queues t and reports whether it became the head.
func (q *transferQueue) push(t *transfer) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, t)
	return len(q.items) == 1
}

func (q *transferQueue) head() (*transfer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// arm starts the deadline of t. expire runs on its own goroutine if t is
// still queued when the deadline passes.
func (q *transferQueue) arm(t *transfer, expire func(*transfer)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.timer = time.AfterFunc(q.timeout, func() { expire(t) })
}

// pop removes t if it is the head. It reports whether t was removed and
// whether more transfers are waiting.
func (q *transferQueue) pop(t *transfer) (removed, more bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 || q.items[0] != t {
		return false, len(q.items) > 0
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	q.items[0] = nil
	q.items = q.items[1:]
	return true, len(q.items) > 0
}

// pipeTo connects produce to consume through a pipe. consume starts
// reading before produce runs, so produce may write synchronously past
// the pipe buffer.
func pipeTo(produce func(w *os.File), consume func(r *os.File)) error {
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}
	go consume(r)
	produce(w)
	return nil
}
