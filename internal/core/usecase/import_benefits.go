package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

const defaultPublishBatch = 100

// ImportBenefitsUseCase stores decoded benefit rows and publishes reindex
// events for them.
type ImportBenefitsUseCase struct {
	source       ports.BenefitSource
	repo         ports.BenefitRepository
	queue        ports.ReindexQueue
	publishBatch int
	logger       *slog.Logger
}

func NewImportBenefitsUseCase(
	source ports.BenefitSource,
	repo ports.BenefitRepository,
	queue ports.ReindexQueue,
	publishBatch int,
	logger *slog.Logger,
) *ImportBenefitsUseCase {
	if publishBatch <= 0 {
		publishBatch = defaultPublishBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportBenefitsUseCase{
		source:       source,
		repo:         repo,
		queue:        queue,
		publishBatch: publishBatch,
		logger:       logger,
	}
}

func (uc *ImportBenefitsUseCase) Import(ctx context.Context, r io.Reader) (domain.ImportReport, error) {
	rows, err := uc.source.Decode(ctx, r)
	if err != nil {
		return domain.ImportReport{}, fmt.Errorf("decode benefits: %w", err)
	}

	report := domain.ImportReport{Rows: len(rows)}
	benefits := make([]domain.Benefit, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, b := range rows {
		b.ServiceID = strings.TrimSpace(b.ServiceID)
		if b.ServiceID == "" {
			report.Skipped++
			continue
		}
		if _, dup := seen[b.ServiceID]; dup {
			report.Skipped++
			continue
		}
		seen[b.ServiceID] = struct{}{}
		benefits = append(benefits, b)
	}
	if len(benefits) == 0 {
		return report, domain.WrapError(domain.ErrInvalidInput, "import benefits", errNoRows)
	}

	if err := uc.repo.Upsert(ctx, benefits); err != nil {
		return report, fmt.Errorf("upsert benefits: %w", err)
	}
	report.Upserted = len(benefits)

	ids := benefitIDs(benefits)
	for start := 0; start < len(ids); start += uc.publishBatch {
		end := min(start+uc.publishBatch, len(ids))
		if err := uc.queue.PublishReindex(ctx, ids[start:end]); err != nil {
			return report, fmt.Errorf("publish reindex event: %w", err)
		}
		report.Published += end - start
	}

	uc.logger.Info("benefits_imported",
		"rows", report.Rows,
		"upserted", report.Upserted,
		"skipped", report.Skipped,
	)
	return report, nil
}

var errNoRows = errors.New("no rows with a service id")
