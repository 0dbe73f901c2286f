package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/benefit-finder/internal/core/catalog"
	"github.com/kirillkom/benefit-finder/internal/core/domain"
	"github.com/kirillkom/benefit-finder/internal/core/sqlfilter"
)

// profileHints are the profile attributes that survived catalog checks.
type profileHints struct {
	Age      int
	HasAge   bool
	Gender   string
	Area     string
	District string
}

func (h profileHints) empty() bool {
	return !h.HasAge && h.Gender == "" && h.Area == "" && h.District == ""
}

func resolveProfileHints(profile domain.Profile, cat *catalog.Catalog, now time.Time) profileHints {
	var h profileHints
	h.Age, h.HasAge = profile.Age(now)
	if h.HasAge && h.Age > 120 {
		h.Age, h.HasAge = 0, false
	}
	if g, ok := sqlfilter.NormalizeGender(profile.Gender); ok {
		h.Gender = g
	}

	district := strings.TrimSpace(profile.District)
	if district != "" && cat.Contains(catalog.FieldDistrict, district) {
		h.District = district
	}
	area := strings.TrimSpace(profile.Area)
	if area != "" && cat.Contains(catalog.FieldArea, area) {
		h.Area = area
	}
	if h.Area == "" && h.District != "" {
		if areas := cat.AreasForDistrict(h.District); len(areas) == 1 {
			h.Area = areas[0]
		}
	}
	return h
}

func buildStructuredQueryPrompt(question string, hints profileHints, cat *catalog.Catalog) string {
	var sb strings.Builder
	sb.WriteString("You translate a question about public benefit programs into one PostgreSQL SELECT statement.\n\n")
	sb.WriteString("Table benefits columns:\n")
	sb.WriteString("- service_id TEXT: program identifier\n")
	sb.WriteString("- area TEXT: province or metropolitan city, '" + cat.Nationwide() + "' for nationwide programs\n")
	sb.WriteString("- district TEXT: city, county or borough inside the area\n")
	sb.WriteString("- min_age INTEGER, max_age INTEGER: eligible age range\n")
	sb.WriteString("- gender TEXT\n\n")

	sb.WriteString("Rules:\n")
	sb.WriteString("1. Select service_id from benefits. Filter only on area, district, min_age, max_age and gender.\n")
	sb.WriteString("2. For an age N write min_age <= N AND max_age >= N.\n")
	sb.WriteString("3. Use only the values listed below for area, district and gender. Omit a condition you cannot express with them.\n")
	sb.WriteString("4. Do not use JOIN, GROUP BY, ORDER BY, LIMIT, functions or subqueries.\n")
	sb.WriteString("5. Answer with the statement between <SQL> and </SQL> and nothing else.\n\n")

	sb.WriteString("Allowed values:\n")
	fmt.Fprintf(&sb, "gender: %s\n", strings.Join(cat.Values(catalog.FieldGender), ", "))
	fmt.Fprintf(&sb, "area: %s\n", strings.Join(cat.Values(catalog.FieldArea), ", "))
	sb.WriteString("district by area:\n")
	for _, region := range cat.Regions() {
		if len(region.Districts) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s\n", region.Name, strings.Join(region.Districts, ", "))
	}

	if !hints.empty() {
		sb.WriteString("\nRequester profile (apply when the question does not say otherwise):\n")
		if hints.HasAge {
			fmt.Fprintf(&sb, "- age: %d\n", hints.Age)
		}
		if hints.Gender != "" {
			fmt.Fprintf(&sb, "- gender: %s\n", hints.Gender)
		}
		if hints.Area != "" {
			fmt.Fprintf(&sb, "- area: %s\n", hints.Area)
		}
		if hints.District != "" {
			fmt.Fprintf(&sb, "- district: %s\n", hints.District)
		}
	}

	sb.WriteString("\nExample:\n")
	sb.WriteString("Question: 마포구에 사는 30세 여성이 받을 수 있는 혜택\n")
	sb.WriteString("<SQL>SELECT service_id FROM benefits WHERE district = '마포구' AND min_age <= 30 AND max_age >= 30 AND gender = '여자'</SQL>\n\n")
	fmt.Fprintf(&sb, "Question: %s\n", strings.TrimSpace(question))
	return sb.String()
}

func buildStepBackPrompt(question string) string {
	return "Rewrite the question below as a broader, more general question about public benefit programs. " +
		"Keep the language of the question. Answer with the rewritten question only.\n\n" +
		"Question: 마포구에 사는 30세 여성인데 출산 지원금 받을 수 있나요?\n" +
		"Broader question: 출산과 양육을 지원하는 지역 복지 혜택에는 어떤 것이 있나요?\n\n" +
		"Question: " + strings.TrimSpace(question) + "\n" +
		"Broader question:"
}
