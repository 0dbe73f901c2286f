package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

type IndexCorpusConfig struct {
	Workers   int
	BatchSize int
}

// IndexCorpusUseCase embeds benefit rows and upserts them into the vector
// index. Batches run on a bounded worker pool.
type IndexCorpusUseCase struct {
	repo     ports.BenefitRepository
	embedder ports.Embedder
	index    ports.VectorIndex
	pool     *ants.Pool
	batch    int
	logger   *slog.Logger
}

func NewIndexCorpusUseCase(
	repo ports.BenefitRepository,
	embedder ports.Embedder,
	index ports.VectorIndex,
	cfg IndexCorpusConfig,
	logger *slog.Logger,
) (*IndexCorpusUseCase, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create index worker pool: %w", err)
	}
	return &IndexCorpusUseCase{
		repo:     repo,
		embedder: embedder,
		index:    index,
		pool:     pool,
		batch:    cfg.BatchSize,
		logger:   logger,
	}, nil
}

func (uc *IndexCorpusUseCase) Close() {
	uc.pool.Release()
}

func (uc *IndexCorpusUseCase) IndexAll(ctx context.Context) (int, error) {
	ids, err := uc.repo.ListServiceIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list service ids: %w", err)
	}
	return uc.IndexServiceIDs(ctx, ids)
}

func (uc *IndexCorpusUseCase) IndexServiceIDs(ctx context.Context, serviceIDs []string) (int, error) {
	serviceIDs = dedupeIDs(serviceIDs)
	if len(serviceIDs) == 0 {
		return 0, nil
	}

	benefits, err := uc.repo.ListByServiceIDs(ctx, serviceIDs)
	if err != nil {
		return 0, fmt.Errorf("load benefits: %w", err)
	}
	if missing := len(serviceIDs) - len(benefits); missing > 0 {
		uc.logger.Warn("index_rows_missing", "requested", len(serviceIDs), "missing", missing)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		indexed int
		errs    []error
	)
	record := func(n int, err error) {
		mu.Lock()
		defer mu.Unlock()
		indexed += n
		if err != nil {
			errs = append(errs, err)
		}
	}

	for start := 0; start < len(benefits); start += uc.batch {
		batch := benefits[start:min(start+uc.batch, len(benefits))]
		wg.Add(1)
		submitErr := uc.pool.Submit(func() {
			defer wg.Done()
			record(uc.indexBatch(ctx, batch))
		})
		if submitErr != nil {
			wg.Done()
			record(0, fmt.Errorf("submit index batch: %w", submitErr))
		}
	}
	wg.Wait()

	uc.logger.Info("index_completed", "requested", len(serviceIDs), "indexed", indexed, "failed_batches", len(errs))
	return indexed, errors.Join(errs...)
}

// HandleReindex is the reindex event handler.
func (uc *IndexCorpusUseCase) HandleReindex(ctx context.Context, serviceIDs []string) error {
	_, err := uc.IndexServiceIDs(ctx, serviceIDs)
	return err
}

func (uc *IndexCorpusUseCase) indexBatch(ctx context.Context, batch []domain.Benefit) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	docs := make([]domain.Benefit, len(batch))
	texts := make([]string, len(batch))
	for i, b := range batch {
		b.Content = b.DocumentText()
		docs[i] = b
		texts[i] = b.Content
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(docs) {
		return 0, fmt.Errorf("embed batch: got %d vectors for %d documents", len(vectors), len(docs))
	}
	if err := uc.index.Upsert(ctx, docs, vectors); err != nil {
		return 0, fmt.Errorf("upsert batch: %w", err)
	}
	return len(docs), nil
}
