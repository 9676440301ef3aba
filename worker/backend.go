// Package worker executes a single research task inside an isolated goroutine
// that reports progress and exactly one terminal outcome through a bounded
// relay, so blocking calls inside the task can never stall the caller.
package worker

import (
	"context"

	"github.com/deepscout/deepscout/research"
)

// ProgressFunc is how a backend reports advisory progress. Implementations
// supplied by the runner never block: under backpressure the oldest buffered
// event is dropped.
type ProgressFunc func(research.ProgressEvent)

// Backend is the opaque research implementation invoked by the runner. It is
// injected once at process start and shared read-only across tasks. Execute
// must honor ctx cancellation by abandoning in-flight work.
type Backend interface {
	Execute(ctx context.Context, query research.Query, report ProgressFunc) (*research.Result, error)
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, query research.Query, report ProgressFunc) (*research.Result, error)

func (f BackendFunc) Execute(ctx context.Context, query research.Query, report ProgressFunc) (*research.Result, error) {
	return f(ctx, query, report)
}

// Outcome is the single terminal message of a task: exactly one of Result or
// Err is set.
type Outcome struct {
	Result *research.Result
	Err    *research.TaskError
}
