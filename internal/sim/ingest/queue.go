package ingest

import (
	"log"
	"sync"
)

const DefaultCapacity = 10_000

// Queue is a fixed-size FIFO ring. It is safe for concurrent producers and a
// single consumer. When full, Push evicts the oldest entry so producers never
// block.
type Queue struct {
	mu      sync.Mutex
	data    []Message
	head    int
	count   int
	dropped uint64
	pushed  uint64

	logger *log.Logger
}

// New constructs a queue. capacity < 1 selects DefaultCapacity. logger may be nil.
func New(capacity int, logger *log.Logger) *Queue {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Queue{data: make([]Message, capacity), logger: logger}
}

func (q *Queue) Capacity() int {
	if q == nil {
		return 0
	}
	return len(q.data)
}

// Push appends m. It reports false when the oldest entry had to be evicted to
// make room.
func (q *Queue) Push(m Message) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	ok := true
	var dropped uint64
	if q.count == len(q.data) {
		q.data[q.head] = Message{}
		q.head = (q.head + 1) % len(q.data)
		q.count--
		q.dropped++
		dropped = q.dropped
		ok = false
	}
	tail := (q.head + q.count) % len(q.data)
	q.data[tail] = m
	q.count++
	q.pushed++
	q.mu.Unlock()

	// Log at 1, 2, 4, 8, ... drops.
	if !ok && q.logger != nil && dropped&(dropped-1) == 0 {
		q.logger.Printf("[backpressure] ingest full, dropped oldest count=%d capacity=%d", dropped, len(q.data))
	}
	return ok
}

// Pop removes the oldest message.
func (q *Queue) Pop() (Message, bool) {
	if q == nil {
		return Message{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return Message{}, false
	}
	m := q.data[q.head]
	q.data[q.head] = Message{}
	q.head = (q.head + 1) % len(q.data)
	q.count--
	return m, true
}

// PopN removes up to n messages in FIFO order.
func (q *Queue) PopN(n int) []Message {
	if q == nil || n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > q.count {
		n = q.count
	}
	if n == 0 {
		return nil
	}
	out := make([]Message, n)
	for i := 0; i < n; i++ {
		out[i] = q.data[q.head]
		q.data[q.head] = Message{}
		q.head = (q.head + 1) % len(q.data)
	}
	q.count -= n
	return out
}

// Len reports the number of queued messages.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Dropped is the total number of messages evicted by overflow.
func (q *Queue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Pushed is the total number of messages ever accepted by Push.
func (q *Queue) Pushed() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}
