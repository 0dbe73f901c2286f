package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

const benefitColumns = `service_id, title, department, field, purpose, support, eligibility, deadline,
	application_method, agency, area, district, min_age, max_age, gender, income_category,
	personal_category, household_category, support_type, benefit_category, start_date, end_date,
	date_summary, source`

type BenefitRepository struct {
	db *sql.DB
}

func NewBenefitRepository(db *sql.DB) *BenefitRepository {
	return &BenefitRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBenefit(row rowScanner) (domain.Benefit, error) {
	var b domain.Benefit
	err := row.Scan(
		&b.ServiceID, &b.Title, &b.Department, &b.Field, &b.Purpose, &b.Support, &b.Eligibility, &b.Deadline,
		&b.ApplicationMethod, &b.Agency, &b.Area, &b.District, &b.MinAge, &b.MaxAge, &b.Gender, &b.IncomeCategory,
		&b.PersonalCategory, &b.HouseholdCategory, &b.SupportType, &b.BenefitCategory, &b.StartDate, &b.EndDate,
		&b.DateSummary, &b.Source,
	)
	return b, err
}

func (r *BenefitRepository) GetByServiceID(ctx context.Context, serviceID string) (*domain.Benefit, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+benefitColumns+` FROM benefits WHERE service_id = $1`, serviceID)
	b, err := scanBenefit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrBenefitNotFound, "get benefit", fmt.Errorf("service_id=%s", serviceID))
		}
		return nil, fmt.Errorf("scan benefit: %w", err)
	}
	return &b, nil
}

// ListByServiceIDs returns the known rows in the order of serviceIDs.
func (r *BenefitRepository) ListByServiceIDs(ctx context.Context, serviceIDs []string) ([]domain.Benefit, error) {
	if len(serviceIDs) == 0 {
		return []domain.Benefit{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+benefitColumns+` FROM benefits WHERE service_id = ANY($1)`, serviceIDs)
	if err != nil {
		return nil, fmt.Errorf("list benefits: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Benefit, len(serviceIDs))
	for rows.Next() {
		b, err := scanBenefit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan benefit: %w", err)
		}
		byID[b.ServiceID] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benefits: %w", err)
	}

	out := make([]domain.Benefit, 0, len(byID))
	for _, id := range serviceIDs {
		if b, ok := byID[id]; ok {
			out = append(out, b)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *BenefitRepository) ListServiceIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT service_id FROM benefits ORDER BY service_id`)
	if err != nil {
		return nil, fmt.Errorf("list service ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan service id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service ids: %w", err)
	}
	return ids, nil
}

const upsertBenefitSQL = `
INSERT INTO benefits (` + benefitColumns + `, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24, now())
ON CONFLICT (service_id) DO UPDATE SET
	title = EXCLUDED.title,
	department = EXCLUDED.department,
	field = EXCLUDED.field,
	purpose = EXCLUDED.purpose,
	support = EXCLUDED.support,
	eligibility = EXCLUDED.eligibility,
	deadline = EXCLUDED.deadline,
	application_method = EXCLUDED.application_method,
	agency = EXCLUDED.agency,
	area = EXCLUDED.area,
	district = EXCLUDED.district,
	min_age = EXCLUDED.min_age,
	max_age = EXCLUDED.max_age,
	gender = EXCLUDED.gender,
	income_category = EXCLUDED.income_category,
	personal_category = EXCLUDED.personal_category,
	household_category = EXCLUDED.household_category,
	support_type = EXCLUDED.support_type,
	benefit_category = EXCLUDED.benefit_category,
	start_date = EXCLUDED.start_date,
	end_date = EXCLUDED.end_date,
	date_summary = EXCLUDED.date_summary,
	source = EXCLUDED.source,
	updated_at = now()
`

// Upsert writes all rows in one transaction.
func (r *BenefitRepository) Upsert(ctx context.Context, benefits []domain.Benefit) error {
	if len(benefits) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, upsertBenefitSQL)
	if err != nil {
		return fmt.Errorf("prepare benefit upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range benefits {
		if strings.TrimSpace(b.ServiceID) == "" {
			return domain.WrapError(domain.ErrInvalidInput, "upsert benefit", errors.New("service id is required"))
		}
		if _, err := stmt.ExecContext(ctx,
			b.ServiceID, b.Title, b.Department, b.Field, b.Purpose, b.Support, b.Eligibility, b.Deadline,
			b.ApplicationMethod, b.Agency, b.Area, b.District, b.MinAge, b.MaxAge, b.Gender, b.IncomeCategory,
			b.PersonalCategory, b.HouseholdCategory, b.SupportType, b.BenefitCategory, b.StartDate, b.EndDate,
			b.DateSummary, b.Source,
		); err != nil {
			return fmt.Errorf("upsert benefit %s: %w", b.ServiceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert tx: %w", err)
	}
	return nil
}
