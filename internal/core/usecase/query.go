package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/ports"
)

// BenefitQueryUseCase reads single benefits by service id.
type BenefitQueryUseCase struct {
	repo ports.BenefitRepository
}

func NewBenefitQueryUseCase(repo ports.BenefitRepository) *BenefitQueryUseCase {
	return &BenefitQueryUseCase{repo: repo}
}

func (uc *BenefitQueryUseCase) GetByServiceID(ctx context.Context, serviceID string) (*domain.Benefit, error) {
	serviceID = strings.TrimSpace(serviceID)
	if serviceID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get benefit", errors.New("service id is required"))
	}
	benefit, err := uc.repo.GetByServiceID(ctx, serviceID)
	if err != nil {
		return nil, fmt.Errorf("get benefit %s: %w", serviceID, err)
	}
	return benefit, nil
}
