package worker

import (
	"context"
	"sync"

	"github.com/deepscout/deepscout/research"
)

// Handle owns one worker's lifetime: its goroutine identity, the two relay
// channels, and the cancellation flag. Exactly one orchestrator instance owns
// a Handle at a time.
type Handle struct {
	id         string
	relay      *relay
	cancel     context.CancelFunc
	done       chan struct{}
	cancelOnce sync.Once
}

// ID returns the task identifier assigned at spawn time.
func (h *Handle) ID() string { return h.id }

// Progress is the bounded FIFO stream of advisory events (drop-oldest under
// overflow).
func (h *Handle) Progress() <-chan research.ProgressEvent { return h.relay.progress }

// Result delivers the single terminal outcome.
func (h *Handle) Result() <-chan Outcome { return h.relay.result }

// Done is closed when the worker goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Cancel signals the worker to abandon in-flight work. Idempotent: calling it
// any number of times is safe and never produces a duplicate terminal event.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(h.cancel)
}

// DroppedProgress reports how many advisory events were discarded under
// backpressure over the handle's lifetime.
func (h *Handle) DroppedProgress() int64 {
	return h.relay.Dropped()
}
