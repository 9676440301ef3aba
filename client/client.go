// Package client is a Go client for the research server. It consumes the SSE
// stream and exposes typed events, plus a blocking convenience call that
// waits for the terminal outcome.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/deepscout/deepscout/research"
)

// EventType discriminates the variants of a StreamEvent.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// StreamEvent is one decoded server event. Exactly one payload field is set,
// matching Type.
type StreamEvent struct {
	Type     EventType
	Progress *research.ProgressEvent
	Result   *research.Result
	Err      *StreamError
}

// StreamError is the decoded terminal error event.
type StreamError struct {
	Code    string
	Message string
}

func (e *StreamError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

const streamPath = "/api/research/stream"

// Client talks to one research server.
type Client struct {
	baseURL string
	logger  *zap.Logger
}

// New creates a client for the server at baseURL (scheme and host, no path).
func New(baseURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if _, err := url.Parse(baseURL); err != nil || baseURL == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	return &Client{baseURL: baseURL, logger: logger.Named("client")}, nil
}

// Stream subscribes to the research stream for query and returns a channel of
// decoded events. The channel closes after the terminal event, on ctx
// cancellation, or when the connection is lost for good.
func (c *Client) Stream(ctx context.Context, query string) (<-chan StreamEvent, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	endpoint := c.baseURL + streamPath + "?query=" + url.QueryEscape(query)
	sseClient := sse.NewClient(endpoint)

	streamCtx, cancel := context.WithCancel(ctx)
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 60 * time.Second
	sseClient.ReconnectStrategy = backoff.WithContext(expBackoff, streamCtx)
	sseClient.ReconnectNotify = func(err error, t time.Duration) {
		c.logger.Warn("SSE connection error", zap.Error(err), zap.Duration("delay", t))
	}

	raw := make(chan *sse.Event, 100)
	if err := sseClient.SubscribeChanWithContext(streamCtx, "", raw); err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to research stream: %w", err)
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		defer cancel()
		defer sseClient.Unsubscribe(raw)

		for {
			select {
			case <-streamCtx.Done():
				return
			case ev, ok := <-raw:
				if !ok {
					return
				}
				decoded, terminal, err := decodeEvent(ev)
				if err != nil {
					c.logger.Warn("Skipping undecodable event", zap.Error(err))
					continue
				}
				if decoded == nil {
					continue
				}
				select {
				case events <- *decoded:
				case <-streamCtx.Done():
					return
				}
				if terminal {
					return
				}
			}
		}
	}()

	return events, nil
}

// Research runs one query and blocks until the terminal event.
func (c *Client) Research(ctx context.Context, query string) (*research.Result, error) {
	events, err := c.Stream(ctx, query)
	if err != nil {
		return nil, err
	}
	for ev := range events {
		switch ev.Type {
		case EventComplete:
			return ev.Result, nil
		case EventError:
			return nil, ev.Err
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, errors.New("stream ended without a terminal event")
}

// completeEnvelope matches the `complete` event payload.
type completeEnvelope struct {
	Success bool             `json:"success"`
	Data    *research.Result `json:"data"`
}

// errorPayload matches the `error` event payload.
type errorPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// decodeEvent translates a raw SSE event. Keep-alive comments never reach
// here; the SSE library filters them out.
func decodeEvent(ev *sse.Event) (*StreamEvent, bool, error) {
	switch string(ev.Event) {
	case "progress":
		var progress research.ProgressEvent
		if err := json.Unmarshal(ev.Data, &progress); err != nil {
			return nil, false, fmt.Errorf("decode progress event: %w", err)
		}
		return &StreamEvent{Type: EventProgress, Progress: &progress}, false, nil
	case "complete":
		var envelope completeEnvelope
		if err := json.Unmarshal(ev.Data, &envelope); err != nil {
			return nil, false, fmt.Errorf("decode complete event: %w", err)
		}
		if envelope.Data == nil {
			return nil, false, errors.New("complete event missing result")
		}
		return &StreamEvent{Type: EventComplete, Result: envelope.Data}, true, nil
	case "error":
		var payload errorPayload
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			return nil, false, fmt.Errorf("decode error event: %w", err)
		}
		return &StreamEvent{
			Type: EventError,
			Err:  &StreamError{Code: payload.Code, Message: payload.Message},
		}, true, nil
	default:
		// Unknown event types are ignored for forward compatibility.
		return nil, false, nil
	}
}
