package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

type SemanticRetrievalConfig struct {
	TopKInitial       int
	TopKRerank        int
	StepBackTimeout   time.Duration
	StepBackMaxTokens int
	CacheTTL          time.Duration
}

func DefaultSemanticRetrievalConfig() SemanticRetrievalConfig {
	return SemanticRetrievalConfig{
		TopKInitial:       30,
		TopKRerank:        15,
		StepBackTimeout:   20 * time.Second,
		StepBackMaxTokens: 256,
		CacheTTL:          24 * time.Hour,
	}
}

func (c SemanticRetrievalConfig) withDefaults() SemanticRetrievalConfig {
	d := DefaultSemanticRetrievalConfig()
	if c.TopKInitial <= 0 {
		c.TopKInitial = d.TopKInitial
	}
	if c.TopKRerank <= 0 {
		c.TopKRerank = d.TopKRerank
	}
	if c.StepBackTimeout <= 0 {
		c.StepBackTimeout = d.StepBackTimeout
	}
	if c.StepBackMaxTokens <= 0 {
		c.StepBackMaxTokens = d.StepBackMaxTokens
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	return c
}

// SemanticRetrievalUseCase widens the question with a step-back restatement,
// searches the vector index with both forms and re-ranks the merged hits.
type SemanticRetrievalUseCase struct {
	generator ports.Generator
	embedder  ports.Embedder
	index     ports.VectorIndex
	reranker  ports.SemanticReranker
	cache     ports.TextCache
	cfg       SemanticRetrievalConfig
	logger    *slog.Logger
}

// NewSemanticRetrievalUseCase accepts a nil reranker (merged order is kept)
// and a nil cache.
func NewSemanticRetrievalUseCase(
	generator ports.Generator,
	embedder ports.Embedder,
	index ports.VectorIndex,
	reranker ports.SemanticReranker,
	cache ports.TextCache,
	cfg SemanticRetrievalConfig,
	logger *slog.Logger,
) *SemanticRetrievalUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticRetrievalUseCase{
		generator: generator,
		embedder:  embedder,
		index:     index,
		reranker:  reranker,
		cache:     cache,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

func (uc *SemanticRetrievalUseCase) Retrieve(ctx context.Context, question string) (domain.RetrievalResult, error) {
	abstraction := uc.StepBack(ctx, question)

	merged, err := uc.search(ctx, question, abstraction)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	ranked := uc.rerank(ctx, question, merged)
	return domain.RetrievalResult{
		Provenance:  domain.ProvenanceVector,
		IDs:         ranked,
		Abstraction: abstraction,
	}, nil
}

// StepBack returns a broader restatement of the question, or the question
// itself when generation fails.
func (uc *SemanticRetrievalUseCase) StepBack(ctx context.Context, question string) string {
	question = strings.TrimSpace(question)
	key := stepBackCacheKey(question)
	if uc.cache != nil {
		cached, ok, err := uc.cache.Get(ctx, key)
		if err != nil {
			uc.logger.Warn("stepback_cache_get_failed", "error", err)
		} else if ok && cached != "" {
			return cached
		}
	}

	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.StepBackTimeout)
	defer cancel()
	raw, err := uc.generator.Generate(genCtx, buildStepBackPrompt(question), ports.GenerateOptions{
		MaxTokens:   uc.cfg.StepBackMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		uc.logger.Warn("stepback_failed", "error", err)
		return question
	}
	abstraction := cleanStepBack(raw)
	if abstraction == "" {
		return question
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, abstraction, uc.cfg.CacheTTL); err != nil {
			uc.logger.Warn("stepback_cache_set_failed", "error", err)
		}
	}
	return abstraction
}

// search queries the index with the original question and, when it differs,
// the abstraction. The original hits come first; the first occurrence of a
// service id wins. Either side may fail as long as the other one answers.
func (uc *SemanticRetrievalUseCase) search(ctx context.Context, question, abstraction string) ([]domain.Benefit, error) {
	primary, primaryErr := uc.searchText(ctx, question)
	if sameQuestion(question, abstraction) {
		if primaryErr != nil {
			return nil, fmt.Errorf("search original question: %w", primaryErr)
		}
		return uniqueBenefits(primary), nil
	}
	if primaryErr != nil {
		uc.logger.Warn("original_search_failed", "error", primaryErr)
	}

	secondary, err := uc.searchText(ctx, abstraction)
	if err != nil {
		if primaryErr != nil {
			return nil, fmt.Errorf("search original and step-back questions: %w", errors.Join(primaryErr, err))
		}
		uc.logger.Warn("stepback_search_failed", "error", err)
		return uniqueBenefits(primary), nil
	}
	return uniqueBenefits(append(primary, secondary...)), nil
}

func (uc *SemanticRetrievalUseCase) searchText(ctx context.Context, text string) ([]domain.Benefit, error) {
	vector, err := uc.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	docs, err := uc.index.Search(ctx, vector, uc.cfg.TopKInitial)
	if err != nil {
		return nil, fmt.Errorf("search vector index: %w", err)
	}
	return docs, nil
}

// rerank orders merged hits with the external reranker and tops the result
// up from the merged order when it comes back short.
func (uc *SemanticRetrievalUseCase) rerank(ctx context.Context, question string, merged []domain.Benefit) []string {
	limit := uc.cfg.TopKRerank
	mergedIDs := benefitIDs(merged)
	if uc.reranker == nil || len(merged) == 0 {
		return trimIDs(mergedIDs, limit)
	}

	reranked, err := uc.reranker.Rerank(ctx, question, merged, limit)
	if err != nil {
		uc.logger.Warn("semantic_rerank_failed", "error", err, "candidates", len(merged))
		return trimIDs(mergedIDs, limit)
	}

	out := make([]string, 0, limit)
	seen := make(map[string]struct{}, limit)
	add := func(id string) {
		if len(out) >= limit || id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, doc := range reranked {
		add(doc.ServiceID)
	}
	for _, id := range mergedIDs {
		add(id)
	}
	return out
}

func stepBackCacheKey(question string) string {
	sum := sha256.Sum256([]byte(question))
	return "stepback:" + hex.EncodeToString(sum[:])
}

var stepBackPrefixes = []string{"broader question:", "step-back question:", "question:", "질문:"}

func cleanStepBack(raw string) string {
	text := strings.TrimSpace(raw)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, prefix := range stepBackPrefixes {
			if strings.HasPrefix(lower, prefix) {
				line = strings.TrimSpace(line[len(prefix):])
				break
			}
		}
		return strings.Trim(line, "\"'` ")
	}
	return ""
}

func sameQuestion(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
