package ports

import (
	"context"
	"io"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

// BenefitSearcher is the inbound contract for hybrid benefit search.
type BenefitSearcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error)
}

// BenefitReader is the inbound read model for a single benefit.
type BenefitReader interface {
	GetByServiceID(ctx context.Context, serviceID string) (*domain.Benefit, error)
}

// CorpusIndexer embeds benefit rows into the vector index.
type CorpusIndexer interface {
	IndexServiceIDs(ctx context.Context, serviceIDs []string) (int, error)
	IndexAll(ctx context.Context) (int, error)
}

// BenefitImporter loads a corpus export into the relational store and
// schedules it for indexing.
type BenefitImporter interface {
	Import(ctx context.Context, r io.Reader) (domain.ImportReport, error)
}
