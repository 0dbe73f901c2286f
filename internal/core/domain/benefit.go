package domain

import (
	"fmt"
	"strings"
)

// Benefit is one public benefit program. The criteria columns back the
// structured branch; the descriptive fields back the vector index.
type Benefit struct {
	ServiceID string `json:"service_id"`

	Title             string `json:"title"`
	Department        string `json:"department,omitempty"`
	Field             string `json:"field,omitempty"`
	Purpose           string `json:"purpose,omitempty"`
	Support           string `json:"support,omitempty"`
	Eligibility       string `json:"eligibility,omitempty"`
	Deadline          string `json:"deadline,omitempty"`
	ApplicationMethod string `json:"application_method,omitempty"`
	Agency            string `json:"agency,omitempty"`

	Area              string `json:"area,omitempty"`
	District          string `json:"district,omitempty"`
	MinAge            int    `json:"min_age"`
	MaxAge            int    `json:"max_age"`
	Gender            string `json:"gender,omitempty"`
	IncomeCategory    string `json:"income_category,omitempty"`
	PersonalCategory  string `json:"personal_category,omitempty"`
	HouseholdCategory string `json:"household_category,omitempty"`
	SupportType       string `json:"support_type,omitempty"`
	BenefitCategory   string `json:"benefit_category,omitempty"`
	StartDate         string `json:"start_date,omitempty"`
	EndDate           string `json:"end_date,omitempty"`
	DateSummary       string `json:"date_summary,omitempty"`
	Source            string `json:"source,omitempty"`

	// Content is the indexed document text.
	Content string    `json:"content,omitempty"`
	Vector  []float32 `json:"-"`
}

// DocumentText renders the question-and-answer style text that gets embedded
// and shown as a source summary.
func (b Benefit) DocumentText() string {
	fields := []struct {
		label string
		value string
	}{
		{"서비스명", b.Title},
		{"서비스ID", b.ServiceID},
		{"부서명", b.Department},
		{"서비스분야", b.Field},
		{"서비스목적요약", b.Purpose},
		{"지원내용", b.Support},
		{"선정기준", b.Eligibility},
		{"신청기한", b.Deadline},
		{"신청방법", b.ApplicationMethod},
		{"접수기관", b.Agency},
	}

	var sb strings.Builder
	for _, f := range fields {
		value := strings.TrimSpace(f.value)
		if value == "" {
			continue
		}
		fmt.Fprintf(&sb, "Q: %s은(는) 무엇인가요?\nA: %s\n\n", f.label, value)
	}
	return strings.TrimSpace(sb.String())
}
