package research

import (
	"errors"
	"fmt"
	"strings"
)

// MaxQueryLength bounds the accepted query text after trimming.
const MaxQueryLength = 500

var (
	ErrEmptyQuery   = errors.New("query is empty")
	ErrQueryTooLong = fmt.Errorf("query exceeds %d characters", MaxQueryLength)
)

// Options is the optional knobs bag attached to a query.
type Options struct {
	MaxResults int    `json:"maxResults,omitempty"`
	Timeframe  string `json:"timeframe,omitempty"`
	Locale     string `json:"locale,omitempty"`
}

// Query is the immutable input of one research task. Construct it with
// NewQuery; the zero value is invalid.
type Query struct {
	Text    string
	Options Options
}

// NewQuery validates and trims the raw query text.
func NewQuery(text string, opts Options) (Query, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Query{}, ErrEmptyQuery
	}
	if len(trimmed) > MaxQueryLength {
		return Query{}, ErrQueryTooLong
	}
	return Query{Text: trimmed, Options: opts}, nil
}

// Normalized returns the case-folded, whitespace-collapsed form of the query
// text used for cache fingerprinting.
func (q Query) Normalized() string {
	return strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
}
