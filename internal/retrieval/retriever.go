package retrieval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

// ErrTimeout is returned when the search did not resolve within the budget.
// The pipeline proceeds without retrieved context; dead air costs more than a
// less grounded answer.
var ErrTimeout = errors.New("retrieval: timed out")

// Retriever wraps a Searcher with a strict latency budget and a character
// budget on the assembled context.
type Retriever struct {
	searcher   Searcher
	timeout    time.Duration
	topK       int
	charBudget int
	logger     *logging.Logger
}

// RetrieverConfig tunes the retriever. Zero values get defaults.
type RetrieverConfig struct {
	Timeout    time.Duration
	TopK       int
	CharBudget int
}

// NewRetriever creates a retriever over the given searcher.
func NewRetriever(searcher Searcher, cfg RetrieverConfig, logger *logging.Logger) *Retriever {
	if searcher == nil {
		panic("retrieval: searcher cannot be nil")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = 1200
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Retriever{
		searcher:   searcher,
		timeout:    cfg.Timeout,
		topK:       cfg.TopK,
		charBudget: cfg.CharBudget,
		logger:     logger,
	}
}

type searchResult struct {
	snippets []Snippet
	err      error
}

// Retrieve races the search against the timeout. A late result is discarded,
// not awaited: the search goroutine writes into a buffered channel and exits
// on its own whenever it finishes.
func (r *Retriever) Retrieve(ctx context.Context, companyID, agentID, query string) ([]Snippet, error) {
	resultCh := make(chan searchResult, 1)

	searchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	go func() {
		defer cancel()
		snippets, err := r.searcher.Search(searchCtx, companyID, agentID, query, r.topK)
		resultCh <- searchResult{snippets: snippets, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.snippets, nil
	case <-timer.C:
		r.logger.Warn("retrieval: search exceeded budget, proceeding without context",
			"timeout_ms", r.timeout.Milliseconds(),
		)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AssembleContext renders snippets into a prompt block, stopping before the
// character budget is exceeded. Snippets arrive ranked, so truncation drops
// the least relevant ones.
func (r *Retriever) AssembleContext(snippets []Snippet) string {
	if len(snippets) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant knowledge:\n")
	for _, s := range snippets {
		entry := "- [" + s.Source + "] " + s.Content + "\n"
		if b.Len()+len(entry) > r.charBudget {
			break
		}
		b.WriteString(entry)
	}
	return strings.TrimRight(b.String(), "\n")
}
