package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/benefit-finder/internal/config"
	"github.com/kirillkom/benefit-finder/internal/core/catalog"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
	"github.com/kirillkom/benefit-finder/internal/core/usecase"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/cache"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/cache/redis"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/importer/xlsx"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/llm/ollama"
	openaillm "github.com/kirillkom/benefit-finder/internal/infrastructure/llm/openai"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/queue/nats"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/rerank"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/resilience"
	"github.com/kirillkom/benefit-finder/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/benefit-finder/internal/observability/metrics"
)

const redisKeyPrefix = "bf:"

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.ReindexQueue
	Searcher ports.BenefitSearcher
	Reader   ports.BenefitReader
	Importer ports.BenefitImporter
	Indexer  *usecase.IndexCorpusUseCase
	Pipeline *metrics.PipelineMetrics

	closeFn func()
}

// New wires every adapter. Pipeline metrics register on registerer, which
// may be nil.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, registerer prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewBenefitRepository(db)
	store := postgres.NewBenefitStore(db, cfg.StructuredRowLimit)
	profiles := postgres.NewProfileRepository(db)

	pipeline := metrics.NewPipelineMetrics("benefit-finder", registerer)
	rc := resilienceConfig(cfg)
	executor := resilience.NewExecutor(rc,
		resilience.WithLogger(logger),
		resilience.WithStateListener(pipeline.ObserveCircuitState),
	)
	generation := resilience.NewExecutor(rc.WithoutRetry(),
		resilience.WithLogger(logger),
		resilience.WithStateListener(pipeline.ObserveCircuitState),
	)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	closers = append(closers, queue.Close)

	var embedder ports.Embedder = ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor))
	generator := newGenerator(cfg, ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, generation), generation)

	var stepBackCache ports.TextCache
	if len(cfg.RedisAddrs) > 0 {
		redisCache, err := redis.New(cfg.RedisAddrs, cfg.RedisPassword, redisKeyPrefix)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		closers = append(closers, redisCache.Close)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis_unavailable", "error", err)
		}
		stepBackCache = cache.NewObserved(redisCache, pipeline.CacheLookupHook("stepback"))
		embedder = cache.NewEmbedder(embedder, redisCache, cfg.OllamaEmbedModel, cfg.CacheTTL,
			cache.WithLookupHook(pipeline.CacheLookupHook("embedding")),
			cache.WithLogger(logger),
		)
	}

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)

	var semanticReranker ports.SemanticReranker
	if strings.TrimSpace(cfg.RerankURL) != "" {
		semanticReranker = rerank.New(cfg.RerankURL, cfg.RerankAPIKey, cfg.RerankModel, executor)
	}

	structuredUC := usecase.NewStructuredQueryUseCase(generator, store, cat, usecase.StructuredQueryConfig{
		MaxAttempts:    cfg.SQLMaxAttempts,
		FirstTimeout:   cfg.SQLFirstTimeout,
		RetryTimeout:   cfg.SQLRetryTimeout,
		FirstMaxTokens: cfg.SQLFirstMaxTokens,
		RetryMaxTokens: cfg.SQLRetryMaxTokens,
		Temperature:    cfg.SQLTemperature,
	}, logger)
	semanticUC := usecase.NewSemanticRetrievalUseCase(generator, embedder, index, semanticReranker, stepBackCache, usecase.SemanticRetrievalConfig{
		TopKInitial:     cfg.RAGTopKInitial,
		TopKRerank:      cfg.RAGTopKRerank,
		StepBackTimeout: cfg.StepBackTimeout,
		CacheTTL:        cfg.CacheTTL,
	}, logger)
	ensemble := usecase.NewEnsembleReranker(embedder, usecase.EnsembleConfig{RRFConstant: cfg.EnsembleRRFK}, logger)
	supervisor := usecase.NewHybridSupervisor(profiles, structuredUC, store, semanticUC, index, ensemble, pipeline,
		usecase.SupervisorConfig{FinalDocs: cfg.RAGFinalDocs}, logger)

	indexer, err := usecase.NewIndexCorpusUseCase(repo, embedder, index, usecase.IndexCorpusConfig{
		Workers:   cfg.IndexWorkers,
		BatchSize: cfg.IndexBatchSize,
	}, logger)
	if err != nil {
		closeAll()
		return nil, err
	}
	closers = append(closers, indexer.Close)

	importer := usecase.NewImportBenefitsUseCase(xlsx.NewSource(cfg.ImportSheet), repo, queue, cfg.ImportPublishSize, logger)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:    queue,
		Searcher: supervisor,
		Reader:   usecase.NewBenefitQueryUseCase(repo),
		Importer: importer,
		Indexer:  indexer,
		Pipeline: pipeline,

		closeFn: closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func newGenerator(cfg config.Config, ollamaClient *ollama.Client, executor *resilience.Executor) ports.Generator {
	if cfg.LLMProvider == "openai" {
		return openaillm.NewGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, executor)
	}
	return ollama.NewGenerator(ollamaClient)
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	rc.RetryInitialBackoff = cfg.ResilienceRetryInitialBackoff
	rc.RetryMaxBackoff = cfg.ResilienceRetryMaxBackoff
	rc.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	rc.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpenTimeout
	return rc
}
