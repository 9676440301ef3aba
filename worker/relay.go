package worker

import (
	"sync"
	"sync/atomic"

	"github.com/deepscout/deepscout/research"
)

// DefaultProgressBuffer is the relay's progress channel capacity. Only the
// latest status matters to the end user, so the buffer stays small.
const DefaultProgressBuffer = 32

// relay is the channel pair connecting one worker to its orchestrator:
// a bounded FIFO progress channel with drop-oldest overflow, and a
// single-slot result channel with exactly-once delivery.
type relay struct {
	progress   chan research.ProgressEvent
	result     chan Outcome
	dropped    atomic.Int64
	resultOnce sync.Once
}

func newRelay(progressBuffer int) *relay {
	if progressBuffer <= 0 {
		progressBuffer = DefaultProgressBuffer
	}
	return &relay{
		progress: make(chan research.ProgressEvent, progressBuffer),
		result:   make(chan Outcome, 1),
	}
}

// pushProgress enqueues an event without ever blocking the worker. When the
// buffer is full the oldest event is discarded to make room; each iteration
// either sends or frees a slot, so the loop terminates.
func (r *relay) pushProgress(ev research.ProgressEvent) {
	for {
		select {
		case r.progress <- ev:
			return
		default:
		}
		select {
		case <-r.progress:
			r.dropped.Add(1)
		default:
		}
	}
}

// deliverResult publishes the terminal outcome. Extra calls are ignored, which
// makes panic recovery and normal completion safe to race.
func (r *relay) deliverResult(out Outcome) {
	r.resultOnce.Do(func() {
		r.result <- out
	})
}

// Dropped reports how many progress events were discarded under backpressure.
func (r *relay) Dropped() int64 {
	return r.dropped.Load()
}
