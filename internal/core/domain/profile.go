package domain

import (
	"strings"
	"time"
)

// Profile holds requester attributes used as synthesis hints.
type Profile struct {
	UserID        string   `json:"user_id,omitempty"`
	Area          string   `json:"area,omitempty"`
	District      string   `json:"district,omitempty"`
	BirthDate     string   `json:"birth_date,omitempty"`
	Gender        string   `json:"gender,omitempty"`
	IncomeRange   string   `json:"income_range,omitempty"`
	PersonalTags  []string `json:"personal_tags,omitempty"`
	HouseholdTags []string `json:"household_tags,omitempty"`
}

var birthDateLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02", "20060102"}

func (p Profile) IsEmpty() bool {
	return strings.TrimSpace(p.Area) == "" &&
		strings.TrimSpace(p.District) == "" &&
		strings.TrimSpace(p.BirthDate) == "" &&
		strings.TrimSpace(p.Gender) == "" &&
		strings.TrimSpace(p.IncomeRange) == "" &&
		len(p.PersonalTags) == 0 &&
		len(p.HouseholdTags) == 0
}

// Age returns the full years between the birth date and now.
func (p Profile) Age(now time.Time) (int, bool) {
	raw := strings.TrimSpace(p.BirthDate)
	if raw == "" {
		return 0, false
	}
	if len(raw) > 10 {
		raw = raw[:10]
	}
	for _, layout := range birthDateLayouts {
		born, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		age := now.Year() - born.Year()
		if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
			age--
		}
		if age < 0 {
			return 0, false
		}
		return age, true
	}
	return 0, false
}
