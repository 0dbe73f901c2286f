// Package xlsx decodes benefit corpus exports from spreadsheets.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

const (
	defaultMinAge = 0
	defaultMaxAge = 120
)

// Header aliases. Exports from the public service portal use Korean headers;
// prepared corpora use the column names of the benefits relation.
var headerAliases = map[string][]string{
	"service_id":         {"서비스ID", "서비스아이디"},
	"title":              {"서비스명"},
	"department":         {"부서명"},
	"field":              {"서비스분야"},
	"purpose":            {"서비스목적요약", "서비스목적"},
	"support":            {"지원내용"},
	"eligibility":        {"선정기준", "지원대상"},
	"deadline":           {"신청기한"},
	"application_method": {"신청방법"},
	"agency":             {"접수기관", "접수기관명"},
	"area":               {"지역", "시도"},
	"district":           {"시군구"},
	"min_age":            {"최소나이", "최소연령"},
	"max_age":            {"최대나이", "최대연령"},
	"gender":             {"성별"},
	"income_category":    {"소득구분"},
	"personal_category":  {"개인특성"},
	"household_category": {"가구특성"},
	"support_type":       {"지원유형"},
	"benefit_category":   {"혜택분류"},
	"start_date":         {"시작일"},
	"end_date":           {"종료일"},
	"date_summary":       {"기간요약"},
	"source":             {"출처"},
}

// Source reads one sheet of a workbook. An empty sheet name selects the first sheet.
type Source struct {
	sheet string
}

func NewSource(sheet string) *Source {
	return &Source{sheet: strings.TrimSpace(sheet)}
}

func (s *Source) Decode(ctx context.Context, r io.Reader) ([]domain.Benefit, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", err)
	}
	defer func() {
		_ = f.Close()
	}()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "open workbook", errors.New("workbook has no sheets"))
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read sheet "+sheet, err)
	}
	if len(rows) == 0 {
		return []domain.Benefit{}, nil
	}

	columns := resolveColumns(rows[0])
	if _, ok := columns["service_id"]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read sheet "+sheet, errors.New("service id column is missing"))
	}

	out := make([]domain.Benefit, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if isBlank(row) {
			continue
		}
		b, err := decodeRow(row, columns)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, fmt.Sprintf("row %d", i+2), err)
		}
		out = append(out, b)
	}
	return out, nil
}

func resolveColumns(header []string) map[string]int {
	lookup := make(map[string]string)
	for name, aliases := range headerAliases {
		lookup[name] = name
		for _, alias := range aliases {
			lookup[alias] = name
		}
	}

	columns := make(map[string]int)
	for i, cell := range header {
		name, ok := lookup[strings.TrimSpace(cell)]
		if !ok {
			name, ok = lookup[strings.ToLower(strings.TrimSpace(cell))]
		}
		if !ok {
			continue
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	return columns
}

func decodeRow(row []string, columns map[string]int) (domain.Benefit, error) {
	get := func(name string) string {
		i, ok := columns[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	minAge, err := parseAge(get("min_age"), defaultMinAge)
	if err != nil {
		return domain.Benefit{}, fmt.Errorf("min_age: %w", err)
	}
	maxAge, err := parseAge(get("max_age"), defaultMaxAge)
	if err != nil {
		return domain.Benefit{}, fmt.Errorf("max_age: %w", err)
	}
	if minAge > maxAge {
		return domain.Benefit{}, fmt.Errorf("min_age %d exceeds max_age %d", minAge, maxAge)
	}

	return domain.Benefit{
		ServiceID:         get("service_id"),
		Title:             get("title"),
		Department:        get("department"),
		Field:             get("field"),
		Purpose:           get("purpose"),
		Support:           get("support"),
		Eligibility:       get("eligibility"),
		Deadline:          get("deadline"),
		ApplicationMethod: get("application_method"),
		Agency:            get("agency"),
		Area:              get("area"),
		District:          get("district"),
		MinAge:            minAge,
		MaxAge:            maxAge,
		Gender:            get("gender"),
		IncomeCategory:    get("income_category"),
		PersonalCategory:  get("personal_category"),
		HouseholdCategory: get("household_category"),
		SupportType:       get("support_type"),
		BenefitCategory:   get("benefit_category"),
		StartDate:         get("start_date"),
		EndDate:           get("end_date"),
		DateSummary:       get("date_summary"),
		Source:            get("source"),
	}, nil
}

// parseAge accepts "19", "19.0" and "19세".
func parseAge(raw string, fallback int) (int, error) {
	raw = strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(raw), "세"), "살")
	if raw == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return checkAge(n)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q", raw)
	}
	return checkAge(int(f))
}

func checkAge(n int) (int, error) {
	if n < 0 || n > 150 {
		return 0, fmt.Errorf("age %d out of range", n)
	}
	return n, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
