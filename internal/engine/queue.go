package engine

import (
	"fmt"
	"sync"
)

// EventKind names what an event applies.
type EventKind int

const (
	// EventOverlay applies the remote profile fetched by reconciliation.
	EventOverlay EventKind = iota + 1
	// EventSyncReady marks the remote sync of the current identity as initialized.
	EventSyncReady
	// EventProfilePush applies a realtime profile notification.
	EventProfilePush
	// EventReviewInserted reacts to a realtime review insert.
	EventReviewInserted
	// EventCatalog applies a fetched product catalog.
	EventCatalog
	// EventWritebackDue fires the debounced profile writeback.
	EventWritebackDue
	// EventSpinResolved ends a wheel spin.
	EventSpinResolved
)

var eventKindNames = map[EventKind]string{
	EventOverlay:        "overlay",
	EventSyncReady:      "sync_ready",
	EventProfilePush:    "profile_push",
	EventReviewInserted: "review_inserted",
	EventCatalog:        "catalog",
	EventWritebackDue:   "writeback_due",
	EventSpinResolved:   "spin_resolved",
}

func (k EventKind) String() string {
	if n, ok := eventKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one deferred state change.
//
// Generation 0 marks events that are valid for any identity (catalog
// refreshes). Any other generation must match the engine's current one.
type Event struct {
	Seq        int64
	Kind       EventKind
	Generation uint64
	apply      func()
}

// eventQueue is a thread-safe FIFO queue for events.
//
// The queue is unbounded so that realtime handlers and timers never block
// on a slow applier.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Non-blocking: the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Release the closure for GC.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that signals when events may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
