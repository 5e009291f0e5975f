package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowSearcher struct {
	delay    time.Duration
	snippets []Snippet
	err      error
}

func (s *slowSearcher) Search(ctx context.Context, companyID, agentID, query string, limit int) ([]Snippet, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.snippets, s.err
}

func TestRetrieveWithinBudget(t *testing.T) {
	r := NewRetriever(&slowSearcher{
		snippets: []Snippet{{Source: "doc.md", Content: "hello", Score: 0.9}},
	}, RetrieverConfig{Timeout: 200 * time.Millisecond}, nil)

	snippets, err := r.Retrieve(context.Background(), "co1", "", "query")
	require.NoError(t, err)
	require.Len(t, snippets, 1)
}

func TestRetrieveTimeoutBoundsLatency(t *testing.T) {
	r := NewRetriever(&slowSearcher{delay: 5 * time.Second}, RetrieverConfig{Timeout: 100 * time.Millisecond}, nil)

	start := time.Now()
	snippets, err := r.Retrieve(context.Background(), "co1", "", "query")
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Nil(t, snippets)
	// Added latency is bounded by the timeout plus scheduling overhead,
	// regardless of how slow the underlying search is.
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestRetrievePropagatesSearchError(t *testing.T) {
	r := NewRetriever(&slowSearcher{err: errors.New("index offline")}, RetrieverConfig{Timeout: 200 * time.Millisecond}, nil)
	_, err := r.Retrieve(context.Background(), "co1", "", "query")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestAssembleContextRespectsCharBudget(t *testing.T) {
	r := NewRetriever(&slowSearcher{}, RetrieverConfig{CharBudget: 120}, nil)

	snippets := []Snippet{
		{Source: "a.md", Content: strings.Repeat("x", 60), Score: 0.9},
		{Source: "b.md", Content: strings.Repeat("y", 60), Score: 0.8},
		{Source: "c.md", Content: strings.Repeat("z", 60), Score: 0.7},
	}
	out := r.AssembleContext(snippets)

	assert.LessOrEqual(t, len(out), 120)
	assert.Contains(t, out, "a.md")
	assert.NotContains(t, out, "c.md", "lowest ranked snippet should be dropped first")
}

func TestAssembleContextEmpty(t *testing.T) {
	r := NewRetriever(&slowSearcher{}, RetrieverConfig{}, nil)
	assert.Equal(t, "", r.AssembleContext(nil))
}
