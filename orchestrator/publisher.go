package orchestrator

import (
	"time"

	"github.com/deepscout/deepscout/research"
)

// Publisher is the live event sink for one request. Implementations adapt the
// orchestrator's event sequence to the external streaming boundary and must
// forward each event as soon as it is received, preserving order. A returned
// error means the client can no longer be reached; the orchestrator then
// cancels the worker and emits nothing further.
type Publisher interface {
	Progress(ev research.ProgressEvent) error
	KeepAlive() error
	Complete(result *research.Result) error
	Error(kind research.ErrorKind, message string) error
}

// RunRecord summarizes one finished request for the history journal.
// Client disconnects are not recorded; nothing was delivered.
type RunRecord struct {
	RequestID  string
	Query      string
	Success    bool
	ErrorKind  research.ErrorKind
	Cached     bool
	Duration   time.Duration
	Sources    int
	FinishedAt time.Time
}

// Recorder receives terminal run records. Implementations must not block for
// long; recording failures are the recorder's problem, never the request's.
type Recorder interface {
	Record(record RunRecord)
}
