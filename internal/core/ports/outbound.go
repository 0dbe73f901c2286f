package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// Generator is the text generation service.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// Embedder builds vectors for documents and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex stores benefit documents with their embeddings.
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Benefit, error)
	FetchByServiceIDs(ctx context.Context, serviceIDs []string) ([]domain.Benefit, error)
	Upsert(ctx context.Context, docs []domain.Benefit, vectors [][]float32) error
}

// SemanticReranker orders documents by relevance to a query.
type SemanticReranker interface {
	Rerank(ctx context.Context, query string, docs []domain.Benefit, topN int) ([]domain.Benefit, error)
}

// BenefitStore runs structured queries against the benefits relation.
type BenefitStore interface {
	DryRun(ctx context.Context, query domain.StructuredQuery) error
	Execute(ctx context.Context, query domain.StructuredQuery) ([]string, error)
}

// BenefitRepository persists benefit rows.
type BenefitRepository interface {
	GetByServiceID(ctx context.Context, serviceID string) (*domain.Benefit, error)
	ListByServiceIDs(ctx context.Context, serviceIDs []string) ([]domain.Benefit, error)
	ListServiceIDs(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, benefits []domain.Benefit) error
}

// BenefitSource decodes a corpus export into benefit rows.
type BenefitSource interface {
	Decode(ctx context.Context, r io.Reader) ([]domain.Benefit, error)
}

// ProfileStore reads requester profiles. A missing profile is returned as
// an empty Profile without error.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
}

// TextCache is a best-effort string cache.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// ReindexQueue publishes/consumes corpus reindex events.
type ReindexQueue interface {
	PublishReindex(ctx context.Context, serviceIDs []string) error
	SubscribeReindex(ctx context.Context, handler func(context.Context, []string) error) error
}

// PipelineObserver receives per-request pipeline measurements.
type PipelineObserver interface {
	ObserveBranch(branch string, ids int, degraded bool, duration time.Duration)
	ObserveSynthesis(attempts int, fallback bool)
	ObserveReconciled(common, vectorOnly, structuredOnly int)
	ObserveRerankFallback(layer string)
	ObserveFinal(documents int, duration time.Duration)
}

type NopObserver struct{}

func (NopObserver) ObserveBranch(string, int, bool, time.Duration) {}
func (NopObserver) ObserveSynthesis(int, bool)                     {}
func (NopObserver) ObserveReconciled(int, int, int)                {}
func (NopObserver) ObserveRerankFallback(string)                   {}
func (NopObserver) ObserveFinal(int, time.Duration)                {}
