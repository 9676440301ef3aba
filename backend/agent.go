package backend

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deepscout/deepscout/research"
	"github.com/deepscout/deepscout/worker"
)

var _ worker.Backend = (*Agent)(nil)

// Agent is the reference research backend: search, then summarize, with
// progress reported per phase and per discovered source.
type Agent struct {
	searcher   Searcher
	summarizer Summarizer
	logger     *zap.Logger
	maxResults int
}

// NewAgent wires a searcher and a summarizer into a worker backend.
func NewAgent(searcher Searcher, summarizer Summarizer, maxResults int, logger *zap.Logger) (*Agent, error) {
	if searcher == nil {
		return nil, errors.New("searcher cannot be nil")
	}
	if summarizer == nil {
		return nil, errors.New("summarizer cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Agent{
		searcher:   searcher,
		summarizer: summarizer,
		logger:     logger.Named("agent"),
		maxResults: maxResults,
	}, nil
}

// Execute runs one research task. Failures are returned as TaskErrors so the
// runner can classify them without string matching.
func (a *Agent) Execute(ctx context.Context, query research.Query, report worker.ProgressFunc) (*research.Result, error) {
	start := time.Now()
	maxResults := a.maxResults
	if query.Options.MaxResults > 0 && query.Options.MaxResults < maxResults {
		maxResults = query.Options.MaxResults
	}

	report(research.ProgressEvent{Stage: research.StageSearching, Message: "Searching the web..."})

	searchStart := time.Now()
	sources, err := a.searcher.Search(ctx, query.Text, maxResults)
	searchTime := time.Since(searchStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("Search failed", zap.String("query", query.Text), zap.Error(err))
		return nil, research.NewTaskError(research.ErrKindUnavailable, "Search is temporarily unavailable. Please try again.")
	}
	if len(sources) == 0 {
		return nil, research.NewTaskError(research.ErrKindExecution, "No relevant sources found for your query")
	}

	for _, src := range sources {
		report(research.ProgressEvent{
			Stage:      research.StageSearching,
			Message:    "Found relevant source",
			Details:    src.Title,
			ArticleURL: src.URL,
		})
	}

	report(research.ProgressEvent{Stage: research.StageReading, Message: "Reading sources..."})

	digests := make([]sourceDigest, 0, len(sources))
	for _, src := range sources {
		digests = append(digests, sourceDigest{Title: src.Title, URL: src.URL, Snippet: src.Snippet})
	}

	report(research.ProgressEvent{Stage: research.StageThinking, Message: "Analyzing information..."})
	report(research.ProgressEvent{Stage: research.StageWriting, Message: "Writing summary..."})

	summaryStart := time.Now()
	summary, err := a.summarizer.Summarize(ctx, query.Text, digests)
	summaryTime := time.Since(summaryStart)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Warn("Summarization failed", zap.String("query", query.Text), zap.Error(err))
		return nil, research.NewTaskError(research.ErrKindUnavailable, "Summarization is temporarily unavailable. Please try again.")
	}

	return &research.Result{
		Query:   query.Text,
		Summary: summary,
		Sources: sources,
		Statistics: research.Statistics{
			TotalResults:     len(sources),
			ProcessingTimeMS: time.Since(start).Milliseconds(),
			SearchTimeMS:     searchTime.Milliseconds(),
			SummaryTimeMS:    summaryTime.Milliseconds(),
		},
		ProducedAt: time.Now(),
	}, nil
}
