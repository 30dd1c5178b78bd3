package queue

import (
	"context"
	"sync"
)

// MemoryTransport is an in-process Transport with the same FIFO,
// prefetch-1 and nak-requeues-at-front semantics as the JetStream
// implementation. It serves broker-less development and the test suite.
type MemoryTransport struct {
	mu          sync.Mutex
	cond        *sync.Cond
	pending     []*memTask
	parked      [][]byte
	closed      bool
	unavailable bool
}

type memTask struct {
	payload  []byte
	attempts int
}

// NewMemoryTransport creates an empty in-memory transport.
func NewMemoryTransport() *MemoryTransport {
	t := &MemoryTransport{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// SetUnavailable toggles simulated broker loss; Publish then returns
// ErrUnavailable.
func (t *MemoryTransport) SetUnavailable(v bool) {
	t.mu.Lock()
	t.unavailable = v
	t.mu.Unlock()
}

// Publish appends a task to the queue tail.
func (t *MemoryTransport) Publish(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unavailable || t.closed {
		return ErrUnavailable
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	t.pending = append(t.pending, &memTask{payload: buf})
	t.cond.Signal()
	return nil
}

// PublishDeadLetter moves a payload to the parked list.
func (t *MemoryTransport) PublishDeadLetter(ctx context.Context, payload []byte, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.unavailable || t.closed {
		return ErrUnavailable
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	t.parked = append(t.parked, buf)
	return nil
}

// DeadLetters returns the parked payloads.
func (t *MemoryTransport) DeadLetters() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.parked))
	copy(out, t.parked)
	return out
}

// Pending returns the number of undelivered tasks.
func (t *MemoryTransport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Consume delivers tasks to h one at a time until ctx is cancelled. A
// nak reinserts the task at the front so it is redelivered before
// anything behind it.
func (t *MemoryTransport) Consume(ctx context.Context, h Handler) error {
	// Wake the wait loop on cancellation
	go func() {
		<-ctx.Done()
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	}()

	for {
		t.mu.Lock()
		for len(t.pending) == 0 && !t.closed && ctx.Err() == nil {
			t.cond.Wait()
		}
		if t.closed || ctx.Err() != nil {
			t.mu.Unlock()
			return nil
		}
		task := t.pending[0]
		t.pending = t.pending[1:]
		task.attempts++
		t.mu.Unlock()

		d := &memDelivery{transport: t, task: task}
		h(ctx, d)

		t.mu.Lock()
		if !d.settled {
			// Unsettled deliveries are redelivered, same as an ack-wait
			// timeout on the broker.
			t.pending = append([]*memTask{task}, t.pending...)
		}
		t.mu.Unlock()
	}
}

// Close stops delivery and fails subsequent publishes.
func (t *MemoryTransport) Close() {
	t.mu.Lock()
	t.closed = true
	t.cond.Broadcast()
	t.mu.Unlock()
}

type memDelivery struct {
	transport *MemoryTransport
	task      *memTask
	settled   bool
}

func (d *memDelivery) Payload() []byte { return d.task.payload }
func (d *memDelivery) Attempt() int    { return d.task.attempts }

func (d *memDelivery) Ack() error {
	d.settled = true
	return nil
}

func (d *memDelivery) Nak() error {
	d.settled = true
	t := d.transport
	t.mu.Lock()
	t.pending = append([]*memTask{d.task}, t.pending...)
	t.cond.Signal()
	t.mu.Unlock()
	return nil
}

func (d *memDelivery) Term() error {
	d.settled = true
	return nil
}
