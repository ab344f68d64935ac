package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-bdpay/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const defaultMemoryQueueSize = 256

// MemoryQueue is an in-process go-job queue. Dequeue blocks until a message
// is ready or ctx is done. Delayed nacks are requeued after their delay and
// dead-lettered messages go to DeadLetters when it is set.
type MemoryQueue struct {
	DeadLetters core.DeadLetterSink

	ready  chan *job.ExecutionMessage
	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = defaultMemoryQueueSize
	}
	return &MemoryQueue{
		ready:  make(chan *job.ExecutionMessage, size),
		timers: map[*time.Timer]struct{}{},
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return errNoQueue
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return fmt.Errorf("gojob: queue is closed")
	}
	select {
	case q.ready <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, errNoQueue
	}
	select {
	case msg := <-q.ready:
		return &memoryDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports messages ready for delivery.
func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ready)
}

// Close stops pending delayed requeues. Ready messages stay readable.
func (q *MemoryQueue) Close() error {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	clear(q.timers)
	return nil
}

func (q *MemoryQueue) requeue(msg *job.ExecutionMessage, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("gojob: queue is closed")
	}
	if delay <= 0 {
		select {
		case q.ready <- msg:
			return nil
		default:
			return fmt.Errorf("gojob: queue is full")
		}
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if !closed {
			q.ready <- msg
		}
	})
	q.timers[timer] = struct{}{}
	return nil
}

func (q *MemoryQueue) deadLetter(ctx context.Context, msg *job.ExecutionMessage, reason string) error {
	if q.DeadLetters == nil {
		return nil
	}
	letter := core.DeadLetter{
		ProviderID:     "bdpay",
		IdempotencyKey: msg.IdempotencyKey,
		Error:          reason,
		FailedAt:       time.Now().UTC(),
	}
	if kind, ok := msg.Parameters["type"].(string); ok {
		letter.Surface = kind
	}
	if payload, ok := msg.Parameters["payload"]; ok {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("gojob: encode dead letter payload: %w", err)
		}
		letter.Body = body
	}
	return q.DeadLetters.Send(ctx, letter)
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	return nil
}

func (d *memoryDelivery) Nack(ctx context.Context, opts queue.NackOptions) error {
	switch {
	case opts.DeadLetter:
		return d.queue.deadLetter(ctx, d.msg, opts.Reason)
	case opts.Requeue:
		return d.queue.requeue(d.msg, opts.Delay)
	}
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
