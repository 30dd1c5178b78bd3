// Package queue provides the durable FIFO transport between message
// producers and the pipeline's single sequential consumer.
package queue

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Publish when the broker cannot be
// reached. Callers fall back to their synchronous path.
var ErrUnavailable = errors.New("queue: transport unavailable")

// Delivery is one in-flight task handed to the consumer. The handler
// must settle it exactly once via Ack, Nak or Term.
type Delivery interface {
	// Payload returns the raw task bytes.
	Payload() []byte
	// Attempt returns the 1-based delivery attempt for this task.
	Attempt() int
	// Ack marks the task processed; it will not be redelivered.
	Ack() error
	// Nak requeues the task for redelivery ahead of later tasks.
	Nak() error
	// Term permanently removes the task without processing it.
	Term() error
}

// Handler processes a single delivery.
type Handler func(ctx context.Context, d Delivery)

// Transport is a durable queue with FIFO redelivery-on-nak semantics
// within a single queue / single consumer topology. Delivery is
// at-least-once; consumers must tolerate duplicates.
type Transport interface {
	// Publish enqueues a task. Returns ErrUnavailable when the broker
	// is unreachable.
	Publish(ctx context.Context, payload []byte) error
	// PublishDeadLetter parks a poisoned task on the dead-letter queue.
	PublishDeadLetter(ctx context.Context, payload []byte, reason string) error
	// Consume delivers tasks to h one at a time (prefetch 1) until ctx
	// is cancelled.
	Consume(ctx context.Context, h Handler) error
	// Close releases broker resources.
	Close()
}
