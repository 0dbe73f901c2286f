package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

const (
	layerCommon     = "common"
	layerVectorOnly = "vector_only"
)

type structuredSynthesizer interface {
	Synthesize(ctx context.Context, question string, profile domain.Profile) domain.StructuredQuery
}

type semanticRetriever interface {
	Retrieve(ctx context.Context, question string) (domain.RetrievalResult, error)
}

type documentReranker interface {
	Rerank(ctx context.Context, docs []domain.Benefit, question string, k int) ([]string, error)
}

type SupervisorConfig struct {
	FinalDocs int
}

// HybridSupervisor runs the structured and vector branches concurrently,
// reconciles their identifiers by provenance and fills the final ranked set.
type HybridSupervisor struct {
	profiles    ports.ProfileStore
	synthesizer structuredSynthesizer
	store       ports.BenefitStore
	semantic    semanticRetriever
	index       ports.VectorIndex
	reranker    documentReranker
	observer    ports.PipelineObserver
	cfg         SupervisorConfig
	logger      *slog.Logger
}

func NewHybridSupervisor(
	profiles ports.ProfileStore,
	synthesizer structuredSynthesizer,
	store ports.BenefitStore,
	semantic semanticRetriever,
	index ports.VectorIndex,
	reranker documentReranker,
	observer ports.PipelineObserver,
	cfg SupervisorConfig,
	logger *slog.Logger,
) *HybridSupervisor {
	if cfg.FinalDocs <= 0 {
		cfg.FinalDocs = 15
	}
	if observer == nil {
		observer = ports.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HybridSupervisor{
		profiles:    profiles,
		synthesizer: synthesizer,
		store:       store,
		semantic:    semantic,
		index:       index,
		reranker:    reranker,
		observer:    observer,
		cfg:         cfg,
		logger:      logger,
	}
}

var errEmptyQuestion = errors.New("question is empty")

// Search fails only for an empty question. Branch, fetch and re-rank
// failures degrade the result instead.
func (s *HybridSupervisor) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResult, error) {
	started := time.Now()
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errEmptyQuestion)
	}

	profile := s.loadProfile(ctx, req.UserID)

	var vectorRes, structuredRes domain.RetrievalResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorRes = s.degradeBranch(ctx, domain.ProvenanceVector, func(ctx context.Context) (domain.RetrievalResult, error) {
			return s.semantic.Retrieve(ctx, question)
		})
	}()
	go func() {
		defer wg.Done()
		structuredRes = s.degradeBranch(ctx, domain.ProvenanceStructured, func(ctx context.Context) (domain.RetrievalResult, error) {
			return s.runStructured(ctx, question, profile)
		})
	}()
	wg.Wait()

	reconciled := Reconcile(vectorRes.IDs, structuredRes.IDs)
	s.observer.ObserveReconciled(len(reconciled.Common), len(reconciled.VectorOnly), len(reconciled.StructuredOnly))

	result := domain.EmptySearchResult()
	result.CommonIDs = reconciled.Common
	result.VectorOnlyIDs = reconciled.VectorOnly
	result.StructuredOnlyIDs = reconciled.StructuredOnly
	result.ServiceIDs = reconciled.Union()
	result.StepBackQuestion = vectorRes.Abstraction
	if structuredRes.Query != nil {
		result.StructuredQuery = structuredRes.Query.Text
	}
	for _, branch := range []domain.RetrievalResult{vectorRes, structuredRes} {
		if branch.Degraded {
			result.Degraded = true
			result.DegradedBranches = append(result.DegradedBranches, string(branch.Provenance))
		}
	}

	if reconciled.IsEmpty() {
		s.finish(result, started)
		return result, nil
	}

	docs, err := s.index.FetchByServiceIDs(ctx, result.ServiceIDs)
	if err != nil {
		s.logger.Warn("document_fetch_failed", "ids", len(result.ServiceIDs), "error", err)
		result.Degraded = true
		s.finish(result, started)
		return result, nil
	}
	byID := make(map[string]domain.Benefit, len(docs))
	for _, doc := range docs {
		if _, ok := byID[doc.ServiceID]; !ok {
			byID[doc.ServiceID] = doc
		}
	}

	abstraction := vectorRes.Abstraction
	if strings.TrimSpace(abstraction) == "" {
		abstraction = question
	}

	target := s.cfg.FinalDocs
	final := s.rerankLayer(ctx, layerCommon, documentsFor(reconciled.Common, byID), abstraction, target)
	if remaining := target - len(final); remaining > 0 && len(reconciled.VectorOnly) > 0 {
		final = append(final, s.rerankLayer(ctx, layerVectorOnly, documentsFor(reconciled.VectorOnly, byID), question, remaining)...)
	}

	for _, id := range final {
		doc, ok := byID[id]
		if !ok {
			continue
		}
		result.Ranked = append(result.Ranked, id)
		result.Documents[strconv.Itoa(len(result.Ranked))] = doc
		result.Sources = append(result.Sources, sourceSummary(doc))
	}

	s.finish(result, started)
	return result, nil
}

func (s *HybridSupervisor) finish(result *domain.SearchResult, started time.Time) {
	duration := time.Since(started)
	s.observer.ObserveFinal(len(result.Documents), duration)
	s.logger.Info("search_completed",
		"documents", len(result.Documents),
		"common", len(result.CommonIDs),
		"vector_only", len(result.VectorOnlyIDs),
		"structured_only", len(result.StructuredOnlyIDs),
		"degraded", result.Degraded,
		"duration_ms", duration.Milliseconds(),
	)
}

func (s *HybridSupervisor) loadProfile(ctx context.Context, userID string) domain.Profile {
	userID = strings.TrimSpace(userID)
	if userID == "" || s.profiles == nil {
		return domain.Profile{}
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.logger.Warn("profile_load_failed", "user_id", userID, "error", err)
		return domain.Profile{}
	}
	return profile
}

func (s *HybridSupervisor) runStructured(ctx context.Context, question string, profile domain.Profile) (domain.RetrievalResult, error) {
	q := s.synthesizer.Synthesize(ctx, question, profile)
	s.observer.ObserveSynthesis(q.Attempts, q.Fallback)

	res := domain.RetrievalResult{Provenance: domain.ProvenanceStructured, Query: &q}
	ids, err := s.store.Execute(ctx, q)
	if err != nil {
		return res, fmt.Errorf("execute structured query: %w", err)
	}
	q.Stage = domain.StageExecuted
	res.IDs = dedupeIDs(ids)
	return res, nil
}

// degradeBranch converts a failing or panicking branch into an empty result
// tagged with its provenance.
func (s *HybridSupervisor) degradeBranch(
	ctx context.Context,
	provenance domain.Provenance,
	run func(context.Context) (domain.RetrievalResult, error),
) (res domain.RetrievalResult) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("branch_panicked", "branch", provenance, "panic", fmt.Sprint(r))
			res = domain.EmptyResult(provenance)
		}
		s.observer.ObserveBranch(string(provenance), len(res.IDs), res.Degraded, time.Since(started))
	}()

	res, err := run(ctx)
	if err != nil {
		s.logger.Warn("branch_degraded", "branch", provenance, "error", err)
		empty := domain.EmptyResult(provenance)
		empty.Abstraction = res.Abstraction
		empty.Query = res.Query
		return empty
	}
	res.Provenance = provenance
	if res.IDs == nil {
		res.IDs = []string{}
	}
	return res
}

// rerankLayer orders one provenance layer and keeps at most limit ids. A
// failed re-rank keeps the layer's own order.
func (s *HybridSupervisor) rerankLayer(ctx context.Context, layer string, docs []domain.Benefit, question string, limit int) []string {
	if len(docs) == 0 || limit <= 0 {
		return nil
	}
	ids, err := s.reranker.Rerank(ctx, docs, question, limit)
	if err != nil {
		s.logger.Warn("layer_rerank_failed", "layer", layer, "error", err)
		s.observer.ObserveRerankFallback(layer)
		return trimIDs(benefitIDs(docs), limit)
	}
	return trimIDs(ids, limit)
}

// Reconcile splits branch outputs by provenance. Common and vector-only keep
// the vector order; structured-only keeps the structured order.
func Reconcile(vectorIDs, structuredIDs []string) domain.ReconciledIDs {
	inStructured := make(map[string]struct{}, len(structuredIDs))
	for _, id := range structuredIDs {
		inStructured[id] = struct{}{}
	}
	inVector := make(map[string]struct{}, len(vectorIDs))

	out := domain.ReconciledIDs{Common: []string{}, VectorOnly: []string{}, StructuredOnly: []string{}}
	for _, id := range vectorIDs {
		if id == "" {
			continue
		}
		if _, dup := inVector[id]; dup {
			continue
		}
		inVector[id] = struct{}{}
		if _, ok := inStructured[id]; ok {
			out.Common = append(out.Common, id)
		} else {
			out.VectorOnly = append(out.VectorOnly, id)
		}
	}

	seen := make(map[string]struct{}, len(structuredIDs))
	for _, id := range structuredIDs {
		if id == "" {
			continue
		}
		if _, ok := inVector[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.StructuredOnly = append(out.StructuredOnly, id)
	}
	return out
}

func documentsFor(ids []string, byID map[string]domain.Benefit) []domain.Benefit {
	out := make([]domain.Benefit, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			out = append(out, doc)
		}
	}
	return out
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sourceSummary(doc domain.Benefit) domain.SourceSummary {
	return domain.SourceSummary{
		Title:       doc.Title,
		Content:     benefitText(doc),
		ServiceID:   doc.ServiceID,
		Eligibility: doc.Eligibility,
		Benefits:    doc.Support,
	}
}
