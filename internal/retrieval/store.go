// Package retrieval decides whether a turn needs document context and, when
// it does, fetches a ranked, size-bounded slice of the knowledge index.
package retrieval

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/wolfman30/voiceline-ai/pkg/logging"
)

type embeddingClient interface {
	CreateEmbeddings(ctx context.Context, request openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Snippet is one retrieved chunk with its provenance and relevance score.
type Snippet struct {
	Source  string
	Content string
	Score   float64
}

// Searcher exposes the similarity-search capability the retriever needs.
type Searcher interface {
	Search(ctx context.Context, companyID, agentID, query string, limit int) ([]Snippet, error)
}

// Ingestor describes how knowledge documents are added to the index.
type Ingestor interface {
	AddDocuments(ctx context.Context, companyID, agentID string, docs []Document) error
}

// Document is a named content chunk to index.
type Document struct {
	Source  string
	Content string
}

// MemoryStore keeps embeddings in memory and supports cosine retrieval
// scoped by company and optionally agent. Agent-scoped documents and
// company-wide documents (empty agent ID) are searched together.
type MemoryStore struct {
	client embeddingClient
	model  string
	logger *logging.Logger

	mu   sync.RWMutex
	docs map[string][]storedDocument // keyed by companyID + "/" + agentID
}

type storedDocument struct {
	source    string
	content   string
	embedding []float32
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(client embeddingClient, model string, logger *logging.Logger) *MemoryStore {
	if client == nil {
		panic("retrieval: embedding client cannot be nil")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &MemoryStore{
		client: client,
		model:  model,
		logger: logger,
		docs:   make(map[string][]storedDocument),
	}
}

func storeKey(companyID, agentID string) string {
	return companyID + "/" + agentID
}

// AddDocuments embeds and stores documents under a company/agent scope.
// Pass an empty agentID for company-wide knowledge.
func (s *MemoryStore) AddDocuments(ctx context.Context, companyID, agentID string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	inputs := make([]string, len(docs))
	for i, doc := range docs {
		inputs[i] = doc.Content
	}
	req := &openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.model),
		Input: inputs,
	}
	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return err
	}
	if len(resp.Data) != len(docs) {
		return errors.New("retrieval: embedding response size mismatch")
	}

	key := storeKey(companyID, agentID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range resp.Data {
		s.docs[key] = append(s.docs[key], storedDocument{
			source:    docs[i].Source,
			content:   docs[i].Content,
			embedding: item.Embedding,
		})
	}
	return nil
}

// Search returns the top-limit snippets for the query within the
// company/agent scope, highest score first.
func (s *MemoryStore) Search(ctx context.Context, companyID, agentID, query string, limit int) ([]Snippet, error) {
	if limit <= 0 {
		limit = 3
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	req := &openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(s.model),
		Input: []string{query},
	}
	resp, err := s.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	queryVec := resp.Data[0].Embedding

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []storedDocument
	if agentID != "" {
		candidates = append(candidates, s.docs[storeKey(companyID, agentID)]...)
	}
	candidates = append(candidates, s.docs[storeKey(companyID, "")]...)
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]Snippet, 0, len(candidates))
	for _, doc := range candidates {
		results = append(results, Snippet{
			Source:  doc.source,
			Content: doc.content,
			Score:   cosineSimilarity(queryVec, doc.embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
