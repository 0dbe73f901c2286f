package usecase

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

type benefitSourceFake struct {
	rows []domain.Benefit
	err  error
}

func (f *benefitSourceFake) Decode(_ context.Context, r io.Reader) ([]domain.Benefit, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	return f.rows, f.err
}

type benefitRepoFake struct {
	byID     map[string]domain.Benefit
	upserted []domain.Benefit
	err      error
}

func (f *benefitRepoFake) GetByServiceID(_ context.Context, id string) (*domain.Benefit, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrBenefitNotFound
	}
	return &b, nil
}

func (f *benefitRepoFake) ListByServiceIDs(_ context.Context, ids []string) ([]domain.Benefit, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Benefit, 0, len(ids))
	for _, id := range ids {
		if b, ok := f.byID[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *benefitRepoFake) ListServiceIDs(context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, 0, len(f.byID))
	for id := range f.byID {
		out = append(out, id)
	}
	return out, nil
}

func (f *benefitRepoFake) Upsert(_ context.Context, benefits []domain.Benefit) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, benefits...)
	return nil
}

type reindexQueueFake struct {
	published [][]string
	err       error
}

func (f *reindexQueueFake) PublishReindex(_ context.Context, ids []string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, append([]string(nil), ids...))
	return nil
}

func (f *reindexQueueFake) SubscribeReindex(context.Context, func(context.Context, []string) error) error {
	return errors.New("not implemented")
}

func TestImportStoresRowsAndPublishesBatches(t *testing.T) {
	source := &benefitSourceFake{rows: []domain.Benefit{
		{ServiceID: "svc-1", Title: "청년 월세"},
		{ServiceID: " svc-2 ", Title: "출산 장려금"},
		{ServiceID: "", Title: "no id"},
		{ServiceID: "svc-1", Title: "duplicate"},
		{ServiceID: "svc-3", Title: "노인 돌봄"},
	}}
	repo := &benefitRepoFake{}
	queue := &reindexQueueFake{}
	uc := NewImportBenefitsUseCase(source, repo, queue, 2, nil)

	report, err := uc.Import(context.Background(), strings.NewReader("xlsx bytes"))
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	want := domain.ImportReport{Rows: 5, Upserted: 3, Skipped: 2, Published: 3}
	if report != want {
		t.Fatalf("unexpected report: %+v", report)
	}
	if repo.upserted[1].ServiceID != "svc-2" || repo.upserted[0].Title != "청년 월세" {
		t.Fatalf("unexpected upserted rows: %+v", repo.upserted)
	}
	if !reflect.DeepEqual(queue.published, [][]string{{"svc-1", "svc-2"}, {"svc-3"}}) {
		t.Fatalf("unexpected published batches: %v", queue.published)
	}
}

func TestImportRejectsEmptySource(t *testing.T) {
	uc := NewImportBenefitsUseCase(&benefitSourceFake{rows: []domain.Benefit{{Title: "no id"}}}, &benefitRepoFake{}, &reindexQueueFake{}, 0, nil)
	_, err := uc.Import(context.Background(), strings.NewReader(""))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestImportReturnsRepositoryError(t *testing.T) {
	queue := &reindexQueueFake{}
	uc := NewImportBenefitsUseCase(
		&benefitSourceFake{rows: []domain.Benefit{{ServiceID: "svc-1"}}},
		&benefitRepoFake{err: errors.New("db down")},
		queue, 0, nil,
	)
	if _, err := uc.Import(context.Background(), strings.NewReader("")); err == nil {
		t.Fatalf("expected repository error")
	}
	if len(queue.published) != 0 {
		t.Fatalf("nothing should be published when storing fails")
	}
}
