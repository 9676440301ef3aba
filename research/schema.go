package research

import (
	"time"
)

// Stage identifies a phase of a running research task. The set is fixed and
// soft-ordered; consumers must tolerate repeated or out-of-order stages.
type Stage string

const (
	StageStarting  Stage = "starting"
	StageLoading   Stage = "loading"
	StageSearching Stage = "searching"
	StageReading   Stage = "reading"
	StageThinking  Stage = "thinking"
	StageWriting   Stage = "writing"
)

// stageRank gives the soft ordering used for diagnostics only; delivery never
// reorders or rejects events based on it.
var stageRank = map[Stage]int{
	StageStarting:  0,
	StageLoading:   1,
	StageSearching: 2,
	StageReading:   3,
	StageThinking:  4,
	StageWriting:   5,
}

// Valid reports whether s is one of the known stages.
func (s Stage) Valid() bool {
	_, ok := stageRank[s]
	return ok
}

// Rank returns the soft-order position of the stage, or -1 for unknown stages.
func (s Stage) Rank() int {
	r, ok := stageRank[s]
	if !ok {
		return -1
	}
	return r
}

// ProgressEvent is an advisory status update produced by a worker. It is
// consumed exactly once by the orchestrator and never persisted.
type ProgressEvent struct {
	Stage      Stage  `json:"stage"`
	Message    string `json:"message,omitempty"`
	Details    string `json:"details,omitempty"`
	ArticleURL string `json:"article_url,omitempty"`
}

// Equal reports whether two events are identical for deduplication purposes.
func (e ProgressEvent) Equal(other ProgressEvent) bool {
	return e == other
}

// SourceRecord describes one web source consulted while producing a summary.
type SourceRecord struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Statistics carries timing and volume counters for a completed task.
type Statistics struct {
	TotalResults     int   `json:"totalResults"`
	ProcessingTimeMS int64 `json:"processingTime"`
	SearchTimeMS     int64 `json:"searchTime"`
	SummaryTimeMS    int64 `json:"summaryTime"`
}

// Result is the final payload of a research task. It is immutable once
// produced; Cached is stamped by the orchestrator, never by the worker.
type Result struct {
	Query      string         `json:"query"`
	Summary    string         `json:"summary"`
	Sources    []SourceRecord `json:"sources"`
	Statistics Statistics     `json:"statistics"`
	Cached     bool           `json:"cached"`
	ProducedAt time.Time      `json:"producedAt,omitempty"`
}

// Clone returns a shallow copy with its own Sources slice, so the orchestrator
// can stamp Cached without mutating the stored entry.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Sources != nil {
		cp.Sources = make([]SourceRecord, len(r.Sources))
		copy(cp.Sources, r.Sources)
	}
	return &cp
}
