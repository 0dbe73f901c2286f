package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/catalog"
	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
	"github.com/kirillkom/benefit-finder/internal/core/sqlfilter"
)

const sqlStopSequence = "</SQL>"

type StructuredQueryConfig struct {
	MaxAttempts    int
	FirstTimeout   time.Duration
	RetryTimeout   time.Duration
	FirstMaxTokens int
	RetryMaxTokens int
	Temperature    float64
}

func DefaultStructuredQueryConfig() StructuredQueryConfig {
	return StructuredQueryConfig{
		MaxAttempts:    5,
		FirstTimeout:   15 * time.Second,
		RetryTimeout:   25 * time.Second,
		FirstMaxTokens: 2048,
		RetryMaxTokens: 3072,
		Temperature:    0.1,
	}
}

func (c StructuredQueryConfig) withDefaults() StructuredQueryConfig {
	d := DefaultStructuredQueryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.FirstTimeout <= 0 {
		c.FirstTimeout = d.FirstTimeout
	}
	if c.RetryTimeout <= 0 {
		c.RetryTimeout = d.RetryTimeout
	}
	if c.FirstMaxTokens <= 0 {
		c.FirstMaxTokens = d.FirstMaxTokens
	}
	if c.RetryMaxTokens <= 0 {
		c.RetryMaxTokens = d.RetryMaxTokens
	}
	if c.Temperature < 0 {
		c.Temperature = d.Temperature
	}
	return c
}

// budget returns the deadline and token cap of a 1-based attempt.
func (c StructuredQueryConfig) budget(attempt int) (time.Duration, int) {
	if attempt <= 1 {
		return c.FirstTimeout, c.FirstMaxTokens
	}
	return c.RetryTimeout, c.RetryMaxTokens
}

// StructuredQueryUseCase turns a question into a validated attribute filter
// over the benefits relation.
type StructuredQueryUseCase struct {
	generator  ports.Generator
	store      ports.BenefitStore
	catalog    *catalog.Catalog
	policy     sqlfilter.Policy
	strategies []sqlfilter.Strategy
	cfg        StructuredQueryConfig
	now        func() time.Time
	logger     *slog.Logger
}

func NewStructuredQueryUseCase(
	generator ports.Generator,
	store ports.BenefitStore,
	cat *catalog.Catalog,
	cfg StructuredQueryConfig,
	logger *slog.Logger,
) *StructuredQueryUseCase {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StructuredQueryUseCase{
		generator:  generator,
		store:      store,
		catalog:    cat,
		policy:     sqlfilter.DefaultPolicy().WithCatalog(cat),
		strategies: sqlfilter.DefaultStrategies(),
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		logger:     logger,
	}
}

// Synthesize never fails: when every attempt is rejected it returns the
// keyword-derived default query.
func (uc *StructuredQueryUseCase) Synthesize(ctx context.Context, question string, profile domain.Profile) domain.StructuredQuery {
	hints := resolveProfileHints(profile, uc.catalog, uc.now())
	prompt := buildStructuredQueryPrompt(question, hints, uc.catalog)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= uc.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attempts = attempt

		q, err := uc.attempt(ctx, prompt, attempt)
		if err == nil {
			q.Attempts = attempt
			uc.logger.Info("structured_query_validated", "attempt", attempt, "query", q.Text)
			return q
		}
		lastErr = err
		uc.logger.Warn("structured_query_attempt_failed",
			"attempt", attempt,
			"kind", attemptFailureKind(err),
			"error", err,
		)
	}

	fallback := uc.fallback(question, hints)
	fallback.Attempts = attempts
	if lastErr != nil {
		fallback.Reason = lastErr.Error()
	}
	uc.logger.Info("structured_query_fallback", "attempts", attempts, "query", fallback.Text)
	return fallback
}

func (uc *StructuredQueryUseCase) attempt(ctx context.Context, prompt string, attempt int) (domain.StructuredQuery, error) {
	timeout, maxTokens := uc.cfg.budget(attempt)
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	raw, err := uc.generator.Generate(genCtx, prompt, ports.GenerateOptions{
		MaxTokens:   maxTokens,
		Temperature: uc.cfg.Temperature,
		Stop:        []string{sqlStopSequence},
	})
	cancel()
	if err != nil {
		return domain.StructuredQuery{}, domain.WrapError(domain.ErrGeneration, "generate", err)
	}
	if strings.TrimSpace(raw) == "" {
		return domain.StructuredQuery{}, domain.WrapError(domain.ErrGeneration, "generate", errEmptyGeneration)
	}

	statement, strategy, err := sqlfilter.Extract(raw, uc.strategies)
	if err != nil {
		return domain.StructuredQuery{}, err
	}
	uc.logger.Debug("structured_query_extracted", "attempt", attempt, "strategy", strategy)

	parsed, err := sqlfilter.Parse(statement)
	if err != nil {
		return domain.StructuredQuery{}, domain.WrapError(domain.ErrExtraction, "parse", err)
	}
	q := sqlfilter.Sanitize(parsed, uc.policy)
	sqlfilter.EnsureIDColumn(q, uc.policy)
	if err := sqlfilter.Validate(q, uc.policy, uc.catalog); err != nil {
		return domain.StructuredQuery{}, err
	}

	candidate := renderQuery(q, domain.StageSanitized)
	if err := uc.store.DryRun(ctx, candidate); err != nil {
		return domain.StructuredQuery{}, domain.WrapError(domain.ErrValidation, "dry run", err)
	}

	sqlfilter.ProjectAll(q)
	out := renderQuery(q, domain.StageValidated)
	out.Raw = raw
	return out, nil
}

var errEmptyGeneration = errors.New("empty response")

func (uc *StructuredQueryUseCase) fallback(question string, hints profileHints) domain.StructuredQuery {
	q := buildFallbackQuery(question, hints, uc.catalog, uc.policy)
	if err := sqlfilter.Validate(q, uc.policy, uc.catalog); err != nil {
		uc.logger.Error("structured_query_fallback_invalid", "query", q.String(), "error", err)
		q.Where = nil
	}
	out := renderQuery(q, domain.StageValidated)
	out.Fallback = true
	return out
}

func renderQuery(q *sqlfilter.Query, stage domain.QueryStage) domain.StructuredQuery {
	statement, args := q.Bind()
	return domain.StructuredQuery{
		Stage:     stage,
		Text:      q.String(),
		Statement: statement,
		Args:      args,
	}
}

func attemptFailureKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrGeneration):
		return "generation"
	case domain.IsKind(err, domain.ErrExtraction):
		return "extraction"
	case domain.IsKind(err, domain.ErrValidation):
		return "validation"
	default:
		return "unknown"
	}
}
