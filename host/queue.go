package host

import (
	"context"
	"sync"

	"github.com/odvcencio/myedit/editor"
)

// Queue is the unbounded FIFO message bus. Any goroutine may Push; only the
// event loop Pops. Push never blocks, which matters because modules emit
// from inside the loop itself.
type Queue struct {
	mu     sync.Mutex
	items  []editor.Msg
	notify chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends msg.
func (q *Queue) Push(msg editor.Msg) {
	q.mu.Lock()
	q.items = append(q.items, msg)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// TryPop removes the oldest message without waiting.
func (q *Queue) TryPop() (editor.Msg, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Let the backing array go instead of creeping forward forever.
		q.items = nil
	}
	return msg, true
}

// Pop removes the oldest message, waiting for one if the queue is empty.
func (q *Queue) Pop(ctx context.Context) (editor.Msg, error) {
	for {
		if msg, ok := q.TryPop(); ok {
			return msg, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
