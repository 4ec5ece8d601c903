// Package queue implements the request-scoped delivery queues and the
// process-wide registry that owns them.
package queue

import (
	"context"
	"sync"
	"time"

	"google.golang.org/api/iterator"

	"github.com/yoockh/voicechain/internal/message"
	"github.com/yoockh/voicechain/internal/utils"
)

// DefaultPollTimeout is used when a queue is created without a timeout.
const DefaultPollTimeout = 10 * time.Second

// Queue is an unbounded FIFO of outputs for one request with a single
// consumer. Writes never block.
type Queue struct {
	name    string
	timeout time.Duration
	notify  chan struct{}

	mu        sync.Mutex
	closed    bool
	items     []message.Output
	lastWrite time.Time
}

// New creates a queue owned by the request named name.
func New(name string, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return &Queue{
		name:      name,
		timeout:   timeout,
		notify:    make(chan struct{}, 1),
		lastWrite: time.Now(),
	}
}

func (q *Queue) Name() string { return q.name }

// Put appends out. It fails if the queue is closed or out belongs to another
// request.
func (q *Queue) Put(out message.Output) error {
	const op = "Queue.Put"

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return utils.E(utils.CodeInvalidState, op, "queue is closed", nil)
	}
	if out.RequestID != q.name {
		return utils.E(utils.CodeInvalidState, op, "request id does not match queue "+q.name, nil)
	}
	q.items = append(q.items, out)
	q.lastWrite = time.Now()
	q.wake()
	return nil
}

// Next returns the oldest queued output. It waits in bounded slices of the
// queue timeout so a cancelled ctx is observed between empty polls. Once the
// queue is closed and drained it returns iterator.Done.
func (q *Queue) Next(ctx context.Context) (message.Output, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			out := q.items[0]
			q.items[0] = message.Output{}
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return out, nil
		}
		if q.closed {
			q.mu.Unlock()
			return message.Output{}, iterator.Done
		}
		q.mu.Unlock()

		timer := time.NewTimer(q.timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return message.Output{}, ctx.Err()
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
			// empty poll, look again
		}
	}
}

// Consume calls fn for every output until the queue is closed and drained,
// fn returns an error, or ctx is done.
func (q *Queue) Consume(ctx context.Context, fn func(message.Output) error) error {
	for {
		out, err := q.Next(ctx)
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(out); err != nil {
			return err
		}
	}
}

// Close rejects further writes and wakes a blocked consumer. Outputs already
// queued are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wake()
}

// CloseWith appends final and closes the queue in one step, so no write can
// land after final.
func (q *Queue) CloseWith(final message.Output) error {
	const op = "Queue.CloseWith"

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return utils.E(utils.CodeInvalidState, op, "queue is closed", nil)
	}
	if final.RequestID != q.name {
		return utils.E(utils.CodeInvalidState, op, "request id does not match queue "+q.name, nil)
	}
	q.items = append(q.items, final)
	q.lastWrite = time.Now()
	q.closed = true
	q.wake()
	return nil
}

func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) LastWrite() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastWrite
}

// wake must be called with q.mu held.
func (q *Queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
