package arbiter

import (
	"log"
	"time"

	"digstream.live/internal/sim/command"
)

type Status uint8

const (
	StatusAccepted Status = iota + 1
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusAccepted:
		return "accepted"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Reason string

const (
	ReasonCooldown     Reason = "cooldown"
	ReasonUnknownToken Reason = "unknown_token"
)

// Outcome is the result of arbitrating one command. Rejections are ordinary
// values, not errors.
type Outcome struct {
	Status  Status
	Command command.Command

	// Previous is the possessor before this command, "" if none.
	Previous string
	// NewPossessor is set only when possession actually moved.
	NewPossessor string

	Reason    Reason
	Remaining float64
}

func (o Outcome) Accepted() bool { return o.Status == StatusAccepted }

func (o Outcome) PossessionChanged() bool { return o.NewPossessor != "" }

// Entry is one accepted command waiting for the executor.
type Entry struct {
	Author     string
	Command    command.Command
	Outcome    Outcome
	EnqueuedAt time.Time
}

// DefaultExecCapacity bounds the exec queue when no capacity is set.
const DefaultExecCapacity = 10_000

// ExecQueue is the FIFO between the arbiter and the executor. Both run on the
// simulation goroutine, so it is not synchronized. When full, Push evicts the
// oldest entry.
type ExecQueue struct {
	items   []Entry
	head    int
	cap     int
	dropped uint64
	logger  *log.Logger
}

// SetCapacity bounds the queue. n < 1 selects DefaultExecCapacity. Entries
// beyond the new bound are dropped oldest first.
func (q *ExecQueue) SetCapacity(n int) {
	if n < 1 {
		n = DefaultExecCapacity
	}
	q.cap = n
	for q.Len() > q.cap {
		q.dropOldest()
	}
}

func (q *ExecQueue) SetLogger(l *log.Logger) { q.logger = l }

func (q *ExecQueue) Capacity() int {
	if q.cap < 1 {
		return DefaultExecCapacity
	}
	return q.cap
}

// Dropped counts entries evicted since start. Clear does not reset it.
func (q *ExecQueue) Dropped() uint64 { return q.dropped }

// Push appends e. It reports false when the oldest entry had to be evicted.
func (q *ExecQueue) Push(e Entry) bool {
	ok := true
	if q.Len() >= q.Capacity() {
		q.dropOldest()
		ok = false
	}
	q.items = append(q.items, e)
	return ok
}

func (q *ExecQueue) dropOldest() {
	if _, ok := q.Pop(); !ok {
		return
	}
	q.dropped++
	// Log at 1, 2, 4, 8, ... drops.
	if q.logger != nil && q.dropped&(q.dropped-1) == 0 {
		q.logger.Printf("[backpressure] exec queue full, dropped oldest count=%d capacity=%d", q.dropped, q.Capacity())
	}
}

func (q *ExecQueue) Pop() (Entry, bool) {
	if q.head >= len(q.items) {
		return Entry{}, false
	}
	e := q.items[q.head]
	q.items[q.head] = Entry{}
	q.head++
	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
	return e, true
}

func (q *ExecQueue) Len() int { return len(q.items) - q.head }

// Peek returns a copy of the pending entries in order.
func (q *ExecQueue) Peek() []Entry {
	out := make([]Entry, q.Len())
	copy(out, q.items[q.head:])
	return out
}

func (q *ExecQueue) Clear() {
	q.items = nil
	q.head = 0
}
