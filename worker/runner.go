package worker

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deepscout/deepscout/research"
)

// Runner spawns isolated workers around a shared read-only Backend.
type Runner struct {
	backend        Backend
	logger         *zap.Logger
	progressBuffer int
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner) error

// WithProgressBuffer overrides the relay's progress channel capacity.
func WithProgressBuffer(size int) RunnerOption {
	return func(r *Runner) error {
		if size <= 0 {
			return errors.New("progress buffer must be positive")
		}
		r.progressBuffer = size
		return nil
	}
}

// NewRunner creates a Runner. The backend is required; it is shared across
// every task the runner spawns.
func NewRunner(backend Backend, logger *zap.Logger, options ...RunnerOption) (*Runner, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		backend:        backend,
		logger:         logger.Named("worker"),
		progressBuffer: DefaultProgressBuffer,
	}
	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Spawn starts one research task and returns its Handle immediately. The task
// runs synchronously from its own point of view; the result channel is always
// filled exactly once whether the backend returns, errors, panics, or gets
// cancelled.
func (r *Runner) Spawn(ctx context.Context, query research.Query) *Handle {
	workerCtx, cancel := context.WithCancel(ctx)
	rl := newRelay(r.progressBuffer)
	h := &Handle{
		id:     uuid.NewString(),
		relay:  rl,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	logger := r.logger.With(zap.String("taskID", h.id))

	go func() {
		defer close(h.done)
		defer cancel()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Worker panicked", zap.Any("panic", rec))
				rl.deliverResult(Outcome{Err: research.NewTaskError(research.ErrKindExecution, "Research failed")})
			}
		}()

		logger.Debug("Worker started", zap.String("query", query.Text))
		rl.pushProgress(research.ProgressEvent{Stage: research.StageStarting, Message: "Understanding your query..."})
		rl.pushProgress(research.ProgressEvent{Stage: research.StageLoading, Message: "Preparing search..."})

		result, err := r.backend.Execute(workerCtx, query, rl.pushProgress)
		switch {
		case err == nil && result != nil:
			logger.Debug("Worker finished", zap.Int64("droppedProgress", rl.Dropped()))
			rl.deliverResult(Outcome{Result: result})
		case errors.Is(err, context.Canceled) || workerCtx.Err() != nil:
			logger.Info("Worker abandoned in-flight work", zap.Error(workerCtx.Err()))
			rl.deliverResult(Outcome{Err: research.NewTaskError(research.ErrKindCanceled, "Research canceled")})
		case err != nil:
			var taskErr *research.TaskError
			if !errors.As(err, &taskErr) {
				taskErr = research.NewTaskError(research.ErrKindExecution, err.Error())
			}
			logger.Warn("Worker failed", zap.Error(err))
			rl.deliverResult(Outcome{Err: taskErr})
		default:
			logger.Error("Backend returned neither result nor error")
			rl.deliverResult(Outcome{Err: research.NewTaskError(research.ErrKindExecution, "Research produced no result")})
		}
	}()

	return h
}
