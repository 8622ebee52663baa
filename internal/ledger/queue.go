package ledger

import (
	"sync"
	"sync/atomic"

	"github.com/ppiankov/vigilo/internal/model"
)

// queueDepth bounds the handler-to-writer channel. Handlers never block on
// ledger I/O; a full queue drops the event and counts it.
const queueDepth = 256

// Queue decouples tool handlers from ledger appends: events flow through a
// bounded channel into a single writer goroutine, which applies rotation
// without stalling in-flight calls.
type Queue struct {
	path    string
	ch      chan *model.Event
	done    chan struct{}
	dropped atomic.Uint64
	failed  atomic.Uint64
	once    sync.Once
}

// NewQueue starts the writer goroutine for the given active ledger path.
func NewQueue(path string) *Queue {
	q := &Queue{
		path: path,
		ch:   make(chan *model.Event, queueDepth),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for ev := range q.ch {
		if err := Append(ev, q.path); err != nil {
			q.failed.Add(1)
			Sidelog().WithField("kind", model.KindLedger).
				WithField("event_id", ev.ID).
				WithError(err).Error("ledger append failed")
		}
	}
}

// Enqueue hands an event to the writer. It never blocks: when the queue is
// full the event is dropped, counted, and sidelogged.
func (q *Queue) Enqueue(ev *model.Event) {
	select {
	case q.ch <- ev:
	default:
		q.dropped.Add(1)
		Sidelog().WithField("kind", model.KindLedger).
			WithField("event_id", ev.ID).
			Error("ledger queue full, event dropped")
	}
}

// Dropped returns how many events were lost to a full queue.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Failed returns how many appends errored.
func (q *Queue) Failed() uint64 { return q.failed.Load() }

// Close flushes queued events and stops the writer goroutine.
func (q *Queue) Close() {
	q.once.Do(func() {
		close(q.ch)
		<-q.done
	})
}
