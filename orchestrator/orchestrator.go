// Package orchestrator drives one client-visible research request from
// submission to completion: cache check, worker spawn, progress relay
// draining, heartbeat interleaving, timeout enforcement, and disconnect
// cleanup. One Orchestrator serves many concurrent requests; each Run call is
// an independent state machine instance.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/deepscout/deepscout/cache"
	"github.com/deepscout/deepscout/research"
	"github.com/deepscout/deepscout/worker"
)

const (
	// DefaultHeartbeat is how often a keep-alive marker is sent when no
	// progress was emitted since the last send.
	DefaultHeartbeat = 10 * time.Second
	// DefaultTimeout is the overall ceiling for one research task.
	DefaultTimeout = 30 * time.Second
	// DefaultCacheTTL bounds how long a successful result is reusable.
	DefaultCacheTTL = time.Hour
)

// Orchestrator coordinates cache, worker, heartbeats, and client-visible
// events. The cache is wrapped so backend outages degrade to misses.
type Orchestrator struct {
	runner    *worker.Runner
	store     cache.Store
	logger    *zap.Logger
	recorder  Recorder
	heartbeat time.Duration
	timeout   time.Duration
	cacheTTL  time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithHeartbeat sets the keep-alive cadence.
func WithHeartbeat(interval time.Duration) Option {
	return func(o *Orchestrator) error {
		if interval <= 0 {
			return errors.New("heartbeat interval must be positive")
		}
		o.heartbeat = interval
		return nil
	}
}

// WithTimeout sets the overall task ceiling.
func WithTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) error {
		if timeout <= 0 {
			return errors.New("timeout must be positive")
		}
		o.timeout = timeout
		return nil
	}
}

// WithCacheTTL sets the result cache lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) error {
		if ttl <= 0 {
			return errors.New("cache TTL must be positive")
		}
		o.cacheTTL = ttl
		return nil
	}
}

// WithRecorder attaches a history journal.
func WithRecorder(recorder Recorder) Option {
	return func(o *Orchestrator) error {
		o.recorder = recorder
		return nil
	}
}

// New creates an Orchestrator. store may be nil, in which case every lookup
// misses and every write is skipped.
func New(runner *worker.Runner, store cache.Store, logger *zap.Logger, options ...Option) (*Orchestrator, error) {
	if runner == nil {
		return nil, errors.New("runner cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		runner:    runner,
		store:     cache.NewResilient(store, logger),
		logger:    logger.Named("orchestrator"),
		heartbeat: DefaultHeartbeat,
		timeout:   DefaultTimeout,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, option := range options {
		if err := option(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// Run serves exactly one request. ctx is the client's connection context;
// its cancellation means the client disconnected. Run returns nil for every
// handled outcome (success, failure, timeout, disconnect); the terminal
// event, if any, has already been published.
func (o *Orchestrator) Run(ctx context.Context, query research.Query, pub Publisher) error {
	if pub == nil {
		return errors.New("publisher cannot be nil")
	}

	requestID := uuid.NewString()
	logger := o.logger.With(zap.String("requestID", requestID), zap.String("query", query.Text))
	start := time.Now()
	key := cache.Fingerprint(query)

	// CacheCheck: on hit, complete without spawning a worker.
	if cached, ok, _ := o.store.Get(ctx, key); ok {
		hit := cached.Clone()
		hit.Cached = true
		logger.Info("Cache hit, worker skipped")
		if err := pub.Complete(hit); err != nil {
			logger.Debug("Client gone before cached result delivery", zap.Error(err))
			return nil
		}
		o.record(RunRecord{
			RequestID: requestID, Query: query.Text, Success: true, Cached: true,
			Duration: time.Since(start), Sources: len(hit.Sources), FinishedAt: time.Now(),
		})
		return nil
	}

	// Spawning → Running.
	handle := o.runner.Spawn(ctx, query)
	defer handle.Cancel()
	logger = logger.With(zap.String("taskID", handle.ID()))
	logger.Info("Worker spawned")

	heartbeat := time.NewTicker(o.heartbeat)
	defer heartbeat.Stop()
	deadline := time.NewTimer(o.timeout)
	defer deadline.Stop()

	var last research.ProgressEvent
	var haveLast bool
	lastSend := time.Now()

	for {
		select {
		case <-ctx.Done():
			// ClientDisconnected: silent cleanup, nothing emitted, no cache
			// write. The result, if any, is discarded in flight.
			logger.Info("Client disconnected, worker terminated")
			handle.Cancel()
			return nil

		case <-deadline.C:
			// TimedOut: force-terminate and surface a distinct error kind.
			handle.Cancel()
			logger.Warn("Research timed out", zap.Duration("ceiling", o.timeout))
			if err := pub.Error(research.ErrKindTimeout, "Research timed out. Please try again."); err != nil {
				logger.Debug("Client gone before timeout delivery", zap.Error(err))
			}
			o.record(RunRecord{
				RequestID: requestID, Query: query.Text,
				ErrorKind: research.ErrKindTimeout,
				Duration:  time.Since(start), FinishedAt: time.Now(),
			})
			return nil

		case <-heartbeat.C:
			if time.Since(lastSend) < o.heartbeat {
				continue
			}
			if err := pub.KeepAlive(); err != nil {
				logger.Info("Keep-alive failed, treating as disconnect", zap.Error(err))
				handle.Cancel()
				return nil
			}
			lastSend = time.Now()

		case ev := <-handle.Progress():
			if haveLast && ev.Equal(last) {
				continue
			}
			last, haveLast = ev, true
			if err := pub.Progress(ev); err != nil {
				logger.Info("Progress delivery failed, treating as disconnect", zap.Error(err))
				handle.Cancel()
				return nil
			}
			lastSend = time.Now()

		case out := <-handle.Result():
			// Forward progress that was enqueued before the terminal outcome
			// so FIFO ordering survives the select race.
			o.drainProgress(handle, pub, &last, &haveLast)
			return o.finish(ctx, logger, pub, RunRecord{RequestID: requestID, Query: query.Text}, key, out, start)
		}
	}
}

// drainProgress forwards buffered progress events (deduplicated) until the
// channel is empty. Delivery errors end the drain; the terminal path will
// observe the same failure.
func (o *Orchestrator) drainProgress(handle *worker.Handle, pub Publisher, last *research.ProgressEvent, haveLast *bool) {
	for {
		select {
		case ev := <-handle.Progress():
			if *haveLast && ev.Equal(*last) {
				continue
			}
			*last, *haveLast = ev, true
			if err := pub.Progress(ev); err != nil {
				return
			}
		default:
			return
		}
	}
}

// finish handles the Completing and Failing transitions. Only a successful
// completion writes to the cache.
func (o *Orchestrator) finish(ctx context.Context, logger *zap.Logger, pub Publisher, record RunRecord, key string, out worker.Outcome, start time.Time) error {
	record.Duration = time.Since(start)
	record.FinishedAt = time.Now()

	if out.Err != nil {
		if out.Err.Kind == research.ErrKindCanceled && ctx.Err() != nil {
			// Cancellation raced the disconnect branch; the client is gone.
			logger.Info("Worker canceled by disconnect")
			return nil
		}
		logger.Warn("Research failed", zap.String("kind", string(out.Err.Kind)), zap.String("message", out.Err.Message))
		if err := pub.Error(out.Err.Kind, out.Err.UserMessage()); err != nil {
			logger.Debug("Client gone before error delivery", zap.Error(err))
			return nil
		}
		record.ErrorKind = out.Err.Kind
		o.record(record)
		return nil
	}

	result := out.Result.Clone()
	result.Cached = false
	if result.ProducedAt.IsZero() {
		result.ProducedAt = time.Now()
	}
	_ = o.store.Set(ctx, key, result, o.cacheTTL)

	logger.Info("Research completed",
		zap.Duration("duration", record.Duration),
		zap.Int("sources", len(result.Sources)),
	)
	if err := pub.Complete(result); err != nil {
		logger.Debug("Client gone before result delivery", zap.Error(err))
		return nil
	}
	record.Success = true
	record.Sources = len(result.Sources)
	o.record(record)
	return nil
}

func (o *Orchestrator) record(record RunRecord) {
	if o.recorder != nil {
		o.recorder.Record(record)
	}
}
