package bus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gamplo/gamplo-go/pkg/model"
)

var (
	ErrQueueFull   = errors.New("delivery queue full")
	ErrQueueClosed = errors.New("delivery queue closed")
)

// Delivery is a chat message handed from a stream callback to a consumer.
type Delivery struct {
	Room       model.RoomID
	Message    model.ChatMessage
	ReceivedAt time.Time
}

// Queue is a bounded delivery queue. Stream callbacks publish without blocking
// so a slow consumer never stalls a connection.
type Queue struct {
	mu     sync.RWMutex
	ch     chan Delivery
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Delivery, capacity)}
}

// TryPublish enqueues a delivery without blocking.
func (q *Queue) TryPublish(d Delivery) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len reports the number of queued deliveries.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new deliveries. Queued ones are still handed to Run.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}

// Run consumes deliveries until the context is done or the queue is closed and drained.
func (q *Queue) Run(ctx context.Context, handler func(Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-q.ch:
			if !ok {
				return
			}
			handler(d)
		}
	}
}
