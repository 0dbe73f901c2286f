package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// GetProfile returns an empty profile for unknown users.
func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	if userID == "" {
		return domain.Profile{}, nil
	}
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, area, district, birth_date, gender, income_range, personal_tags, household_tags
FROM users
WHERE user_id = $1
`, userID)

	var p domain.Profile
	var personalRaw, householdRaw []byte
	err := row.Scan(&p.UserID, &p.Area, &p.District, &p.BirthDate, &p.Gender, &p.IncomeRange, &personalRaw, &householdRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Profile{UserID: userID}, nil
		}
		return domain.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	if err := unmarshalTags(personalRaw, &p.PersonalTags); err != nil {
		return domain.Profile{}, fmt.Errorf("unmarshal personal tags: %w", err)
	}
	if err := unmarshalTags(householdRaw, &p.HouseholdTags); err != nil {
		return domain.Profile{}, fmt.Errorf("unmarshal household tags: %w", err)
	}
	return p, nil
}

func unmarshalTags(raw []byte, dest *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

