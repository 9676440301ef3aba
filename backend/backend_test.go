package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deepscout/deepscout/research"
	"github.com/deepscout/deepscout/worker"
)

const liteResultsHTML = `
<html><body><table>
<tr><td><a rel="nofollow" href="https://go.dev/doc" class="result-link">Go Documentation</a></td></tr>
<tr><td class="result-snippet">The official Go documentation.</td></tr>
<tr><td><a rel="nofollow" href="https://go.dev/tour" class="result-link">A Tour of Go</a></td></tr>
<tr><td class="result-snippet">An interactive introduction.</td></tr>
<tr><td><a href="/internal" class="result-link">Internal Link</a></td></tr>
<tr><td><a href="https://go.dev/doc" class="result-link">Go Documentation Duplicate</a></td></tr>
</table></body></html>`

func TestParseLiteResults(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(liteResultsHTML))
	require.NoError(t, err)

	results := parseLiteResults(doc, 10)
	require.Len(t, results, 2, "relative and duplicate links are skipped")
	assert.Equal(t, "Go Documentation", results[0].Title)
	assert.Equal(t, "https://go.dev/doc", results[0].URL)
	assert.Equal(t, "The official Go documentation.", results[0].Snippet)
	assert.Equal(t, "A Tour of Go", results[1].Title)
}

func TestParseLiteResultsHonorsMax(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(liteResultsHTML))
	require.NoError(t, err)

	results := parseLiteResults(doc, 1)
	assert.Len(t, results, 1)
}

func TestDuckDuckGoSearcherAgainstStub(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "what is go", r.Form.Get("q"))
		w.Write([]byte(liteResultsHTML))
	}))
	defer server.Close()

	searcher := NewDuckDuckGoSearcherWithClient(server.Client(), server.URL)
	results, err := searcher.Search(context.Background(), "what is go", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDuckDuckGoSearcherRejectsEmptyQuery(t *testing.T) {
	searcher := NewDuckDuckGoSearcher()
	_, err := searcher.Search(context.Background(), "  ", 10)
	assert.Error(t, err)
}

func TestChatSummarizer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" a concise summary "}}]}`))
	}))
	defer server.Close()

	summarizer := NewChatSummarizer(server.URL, "test-model", "sk-test")
	answer, err := summarizer.Summarize(context.Background(), "what is go", []sourceDigest{
		{Title: "Go Documentation", URL: "https://go.dev/doc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a concise summary", answer)
}

func TestChatSummarizerErrors(t *testing.T) {
	misconfigured := NewChatSummarizer("", "", "")
	_, err := misconfigured.Summarize(context.Background(), "q", nil)
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	summarizer := NewChatSummarizer(server.URL, "test-model", "sk-test")
	_, err = summarizer.Summarize(context.Background(), "q", nil)
	assert.Error(t, err)

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	summarizer = NewChatSummarizer(empty.URL, "test-model", "sk-test")
	_, err = summarizer.Summarize(context.Background(), "q", nil)
	assert.Error(t, err)
}

// fakeSearcher returns canned sources.
type fakeSearcher struct {
	sources []research.SourceRecord
	err     error
}

func (f *fakeSearcher) Search(context.Context, string, int) ([]research.SourceRecord, error) {
	return f.sources, f.err
}

// fakeSummarizer returns a canned answer.
type fakeSummarizer struct {
	answer string
	err    error
}

func (f *fakeSummarizer) Summarize(context.Context, string, []sourceDigest) (string, error) {
	return f.answer, f.err
}

func agentQuery(t *testing.T) research.Query {
	t.Helper()
	q, err := research.NewQuery("what is go", research.Options{})
	require.NoError(t, err)
	return q
}

func TestAgentExecute(t *testing.T) {
	searcher := &fakeSearcher{sources: []research.SourceRecord{
		{Title: "Go Documentation", URL: "https://go.dev/doc", Snippet: "docs"},
		{Title: "A Tour of Go", URL: "https://go.dev/tour"},
	}}
	agent, err := NewAgent(searcher, &fakeSummarizer{answer: "summary"}, 10, zap.NewNop())
	require.NoError(t, err)

	var events []research.ProgressEvent
	result, err := agent.Execute(context.Background(), agentQuery(t), func(ev research.ProgressEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)

	assert.Equal(t, "summary", result.Summary)
	assert.Len(t, result.Sources, 2)
	assert.Equal(t, 2, result.Statistics.TotalResults)
	assert.False(t, result.ProducedAt.IsZero())

	// Stage choreography: searching, one searching event per source, then
	// reading, thinking, writing.
	var stages []research.Stage
	for _, ev := range events {
		stages = append(stages, ev.Stage)
	}
	assert.Equal(t, []research.Stage{
		research.StageSearching,
		research.StageSearching, research.StageSearching,
		research.StageReading,
		research.StageThinking,
		research.StageWriting,
	}, stages)

	// Per-source events carry the article reference.
	assert.Equal(t, "Found relevant source", events[1].Message)
	assert.Equal(t, "Go Documentation", events[1].Details)
	assert.Equal(t, "https://go.dev/doc", events[1].ArticleURL)
}

func TestAgentSearchFailure(t *testing.T) {
	agent, err := NewAgent(&fakeSearcher{err: errors.New("dns broke")}, &fakeSummarizer{}, 10, zap.NewNop())
	require.NoError(t, err)

	_, err = agent.Execute(context.Background(), agentQuery(t), func(research.ProgressEvent) {})
	var taskErr *research.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, research.ErrKindUnavailable, taskErr.Kind)
}

func TestAgentNoSources(t *testing.T) {
	agent, err := NewAgent(&fakeSearcher{}, &fakeSummarizer{answer: "x"}, 10, zap.NewNop())
	require.NoError(t, err)

	_, err = agent.Execute(context.Background(), agentQuery(t), func(research.ProgressEvent) {})
	var taskErr *research.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, research.ErrKindExecution, taskErr.Kind)
}

func TestAgentSummarizerFailure(t *testing.T) {
	searcher := &fakeSearcher{sources: []research.SourceRecord{{Title: "t", URL: "u"}}}
	agent, err := NewAgent(searcher, &fakeSummarizer{err: errors.New("llm down")}, 10, zap.NewNop())
	require.NoError(t, err)

	_, err = agent.Execute(context.Background(), agentQuery(t), func(research.ProgressEvent) {})
	var taskErr *research.TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, research.ErrKindUnavailable, taskErr.Kind)
}

func TestAgentHonorsQueryMaxResults(t *testing.T) {
	var requested int
	searcher := searcherFunc(func(ctx context.Context, query string, maxResults int) ([]research.SourceRecord, error) {
		requested = maxResults
		return []research.SourceRecord{{Title: "t", URL: "u"}}, nil
	})
	agent, err := NewAgent(searcher, &fakeSummarizer{answer: "x"}, 10, zap.NewNop())
	require.NoError(t, err)

	q, err := research.NewQuery("what is go", research.Options{MaxResults: 3})
	require.NoError(t, err)
	_, err = agent.Execute(context.Background(), q, func(research.ProgressEvent) {})
	require.NoError(t, err)
	assert.Equal(t, 3, requested)
}

// searcherFunc adapts a function to the Searcher interface.
type searcherFunc func(ctx context.Context, query string, maxResults int) ([]research.SourceRecord, error)

func (f searcherFunc) Search(ctx context.Context, query string, maxResults int) ([]research.SourceRecord, error) {
	return f(ctx, query, maxResults)
}

func TestAgentIsWorkerBackend(t *testing.T) {
	agent, err := NewAgent(&fakeSearcher{sources: []research.SourceRecord{{Title: "t", URL: "u"}}},
		&fakeSummarizer{answer: "x"}, 10, zap.NewNop())
	require.NoError(t, err)

	runner, err := worker.NewRunner(agent, zap.NewNop())
	require.NoError(t, err)

	h := runner.Spawn(context.Background(), agentQuery(t))
	select {
	case out := <-h.Result():
		require.Nil(t, out.Err)
		assert.Equal(t, "x", out.Result.Summary)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not finish")
	}
}
