package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

// The BM25 and cosine rankings always count equally.
const (
	ensembleLexicalWeight  = 0.5
	ensembleSemanticWeight = 0.5
)

type EnsembleConfig struct {
	RRFConstant int
}

func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{RRFConstant: defaultRRFConstant}
}

// EnsembleReranker fuses a BM25 ranking with an embedding cosine ranking of
// the same candidates.
type EnsembleReranker struct {
	embedder ports.Embedder
	cfg      EnsembleConfig
	logger   *slog.Logger
}

func NewEnsembleReranker(embedder ports.Embedder, cfg EnsembleConfig, logger *slog.Logger) *EnsembleReranker {
	if cfg.RRFConstant <= 0 {
		cfg.RRFConstant = defaultRRFConstant
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EnsembleReranker{embedder: embedder, cfg: cfg, logger: logger}
}

var errNoEmbedder = errors.New("no embedder for documents without vectors")

// Rerank returns at most k service ids ordered by fused relevance. When the
// embedding service fails the error is returned together with the candidates
// in input order truncated to min(k, len(docs)).
func (r *EnsembleReranker) Rerank(ctx context.Context, docs []domain.Benefit, question string, k int) ([]string, error) {
	docs = uniqueBenefits(docs)
	if len(docs) == 0 {
		return []string{}, nil
	}
	if k <= 0 || k > len(docs) {
		k = len(docs)
	}
	ids := benefitIDs(docs)
	fallback := append([]string(nil), ids[:k]...)

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = benefitText(doc)
	}

	lexicalOrder := bm25Rank(question, texts, 2*k)
	lexical := make([]string, 0, len(lexicalOrder))
	for _, idx := range lexicalOrder {
		lexical = append(lexical, ids[idx])
	}

	vectors, err := r.documentVectors(ctx, docs, texts)
	if err != nil {
		return fallback, domain.WrapError(domain.ErrTemporary, "ensemble rerank", err)
	}
	if r.embedder == nil {
		return fallback, domain.WrapError(domain.ErrTemporary, "ensemble rerank", errNoEmbedder)
	}
	queryVector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return fallback, domain.WrapError(domain.ErrTemporary, "ensemble rerank", fmt.Errorf("embed question: %w", err))
	}

	semanticOrder := cosineRank(queryVector, vectors, k)
	semantic := make([]string, 0, len(semanticOrder))
	for _, idx := range semanticOrder {
		semantic = append(semantic, ids[idx])
	}

	fused := fuseWeightedRRF([]weightedRanking{
		{ids: lexical, weight: ensembleLexicalWeight},
		{ids: semantic, weight: ensembleSemanticWeight},
	}, r.cfg.RRFConstant, lexical)

	r.logger.Debug("ensemble_rerank_done", "candidates", len(docs), "k", k, "lexical", len(lexical), "semantic", len(semantic))
	return trimIDs(fused, k), nil
}

// documentVectors uses the vectors stored with the documents and embeds only
// the ones that lack them.
func (r *EnsembleReranker) documentVectors(ctx context.Context, docs []domain.Benefit, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(docs))
	var missing []int
	for i, doc := range docs {
		if len(doc.Vector) > 0 {
			vectors[i] = doc.Vector
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}
	if r.embedder == nil {
		return nil, errNoEmbedder
	}

	batch := make([]string, len(missing))
	for j, idx := range missing {
		batch[j] = texts[idx]
	}
	embedded, err := r.embedder.Embed(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(embedded) != len(batch) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(embedded), len(batch))
	}
	for j, idx := range missing {
		vectors[idx] = embedded[j]
	}
	return vectors, nil
}

func cosineRank(query []float32, vectors [][]float32, limit int) []int {
	if limit <= 0 || limit > len(vectors) {
		limit = len(vectors)
	}
	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		scores[i] = cosine(query, v)
	}
	order := make([]int, len(vectors))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order[:limit]
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func benefitText(b domain.Benefit) string {
	if strings.TrimSpace(b.Content) != "" {
		return b.Content
	}
	return b.DocumentText()
}

func benefitIDs(docs []domain.Benefit) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.ServiceID)
	}
	return out
}

// uniqueBenefits keeps the first document per service id.
func uniqueBenefits(docs []domain.Benefit) []domain.Benefit {
	seen := make(map[string]struct{}, len(docs))
	out := make([]domain.Benefit, 0, len(docs))
	for _, doc := range docs {
		if doc.ServiceID == "" {
			continue
		}
		if _, ok := seen[doc.ServiceID]; ok {
			continue
		}
		seen[doc.ServiceID] = struct{}{}
		out = append(out, doc)
	}
	return out
}
