package sqlfilter

import (
	"reflect"
	"testing"

	"github.com/kirillkom/benefit-finder/internal/core/catalog"
	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

func TestSanitizeKeepsOnlyAllowedFields(t *testing.T) {
	q := mustParse(t, `SELECT service_id, title FROM benefits b
JOIN users u ON b.area = u.area
WHERE b.gender = 'male' AND u.income_category = '0 ~ 50%' AND 48 BETWEEN b.min_age AND b.max_age
ORDER BY title LIMIT 10;`)

	got := Sanitize(q, DefaultPolicy()).String()
	want := "SELECT service_id, title FROM benefits WHERE gender = '남자' AND min_age <= 48 AND max_age >= 48"
	if got != want {
		t.Fatalf("unexpected sanitized query:\n got %s\nwant %s", got, want)
	}
}

func TestSanitizeCollapsesEmptyGroups(t *testing.T) {
	q := mustParse(t, "SELECT * FROM benefits WHERE (support_type = '현금' OR benefit_category = '생활안정') AND district LIKE '%마포%'")
	got := Sanitize(q, DefaultPolicy()).String()
	if got != "SELECT * FROM benefits WHERE district LIKE '%마포%'" {
		t.Fatalf("unexpected sanitized query: %s", got)
	}

	q = mustParse(t, "SELECT * FROM benefits WHERE NOT (personal_category = '임신부') AND household_category = '1인 가구'")
	if s := Sanitize(q, DefaultPolicy()); s.Where != nil {
		t.Fatalf("expected empty filter, got %s", s.String())
	}
}

func TestSanitizeRewritesRelation(t *testing.T) {
	q := mustParse(t, "SELECT service_id FROM public.users WHERE area = '서울특별시'")
	if got := Sanitize(q, DefaultPolicy()).String(); got != "SELECT service_id FROM benefits WHERE area = '서울특별시'" {
		t.Fatalf("unexpected sanitized query: %s", got)
	}
}

func TestSanitizeNormalizesGenderAndAgeLiterals(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM benefits WHERE gender = 'F'":                "SELECT * FROM benefits WHERE gender = '여자'",
		"SELECT * FROM benefits WHERE gender = '남성'":               "SELECT * FROM benefits WHERE gender = '남자'",
		"SELECT * FROM benefits WHERE gender LIKE '%female%'":       "SELECT * FROM benefits WHERE gender LIKE '%여자%'",
		"SELECT * FROM benefits WHERE gender IN ('male', 'woman')":  "SELECT * FROM benefits WHERE gender IN ('남자', '여자')",
		"SELECT * FROM benefits WHERE min_age <= '48'":              "SELECT * FROM benefits WHERE min_age <= 48",
		"SELECT * FROM benefits WHERE age = 35 AND gender = 'male'": "SELECT * FROM benefits WHERE min_age <= 35 AND max_age >= 35 AND gender = '남자'",
	}
	for input, want := range cases {
		got := Sanitize(mustParse(t, input), DefaultPolicy()).String()
		if got != want {
			t.Fatalf("Sanitize(%q):\n got %s\nwant %s", input, got, want)
		}
	}
}

func TestSanitizeRewritesRegionAliases(t *testing.T) {
	cat := catalog.Default()
	policy := DefaultPolicy().WithCatalog(cat)
	cases := map[string]string{
		"SELECT * FROM benefits WHERE area = '서울'":          "SELECT * FROM benefits WHERE area = '서울특별시'",
		"SELECT * FROM benefits WHERE area IN ('부산', '전국')": "SELECT * FROM benefits WHERE area IN ('부산광역시', '전국')",
		"SELECT * FROM benefits WHERE area LIKE '%경기%'":     "SELECT * FROM benefits WHERE area LIKE '%경기도%'",
		"SELECT * FROM benefits WHERE area = '서울특별시'":       "SELECT * FROM benefits WHERE area = '서울특별시'",
		"SELECT * FROM benefits WHERE district = '서울'":      "SELECT * FROM benefits WHERE district = '서울'",
	}
	for input, want := range cases {
		q := Sanitize(mustParse(t, input), policy)
		if got := q.String(); got != want {
			t.Fatalf("Sanitize(%q):\n got %s\nwant %s", input, got, want)
		}
	}

	q := Sanitize(mustParse(t, "SELECT service_id FROM benefits WHERE area = '서울' AND district = '마포구'"), policy)
	if err := Validate(q, policy, cat); err != nil {
		t.Fatalf("expected alias to validate after sanitization, got %v", err)
	}
	if got := Sanitize(mustParse(t, "SELECT * FROM benefits WHERE area = '서울'"), DefaultPolicy()).String(); got != "SELECT * FROM benefits WHERE area = '서울'" {
		t.Fatalf("policy without catalog should leave area untouched, got %s", got)
	}
}

func TestSanitizeReplacesComplexProjection(t *testing.T) {
	q := mustParse(t, "SELECT service_id, CASE WHEN gender = '남자' THEN 1 ELSE 0 END AS flag FROM benefits")
	s := Sanitize(q, DefaultPolicy())
	if !reflect.DeepEqual(s.Columns, DefaultPolicy().DefaultColumns) {
		t.Fatalf("unexpected columns: %v", s.Columns)
	}
}

func TestEnsureIDColumnAndProjectAll(t *testing.T) {
	q := Sanitize(mustParse(t, "SELECT title, area FROM benefits WHERE area = '전국'"), DefaultPolicy())
	EnsureIDColumn(q, DefaultPolicy())
	if !reflect.DeepEqual(q.Columns, []string{"service_id", "title", "area"}) {
		t.Fatalf("unexpected columns after enforcement: %v", q.Columns)
	}

	ProjectAll(q)
	if got := q.String(); got != "SELECT * FROM benefits WHERE area = '전국'" {
		t.Fatalf("unexpected projection: %s", got)
	}
}

func TestSanitizedQueriesOnlyTouchAllowedFields(t *testing.T) {
	inputs := []string{
		"SELECT * FROM benefits WHERE income_category = '0 ~ 50%' OR gender = '남자'",
		"SELECT * FROM benefits WHERE support_type IN ('현금') AND (district = '마포구' OR benefit_category = '생활안정')",
		"SELECT * FROM benefits WHERE application_method = '온라인 신청' AND NOT household_category = '1인 가구' AND min_age >= 19",
	}
	policy := DefaultPolicy()
	for _, input := range inputs {
		for _, p := range Sanitize(mustParse(t, input), policy).Predicates() {
			if !policy.allows(p.Field) {
				t.Fatalf("field %q survived sanitization of %q", p.Field, input)
			}
		}
	}
}

func TestValidateChecksCatalogMembership(t *testing.T) {
	cat := catalog.Default()
	policy := DefaultPolicy()

	valid := []string{
		"SELECT * FROM benefits WHERE district = '마포구' AND gender = '남자'",
		"SELECT * FROM benefits WHERE area IN ('서울특별시', '전국')",
		"SELECT * FROM benefits WHERE district LIKE '%마포%' AND min_age <= 48 AND max_age >= 48",
		"SELECT * FROM benefits WHERE district = ''",
		"SELECT service_id FROM benefits",
	}
	for _, input := range valid {
		if err := Validate(mustParse(t, input), policy, cat); err != nil {
			t.Fatalf("Validate(%q) error = %v", input, err)
		}
	}

	invalid := []string{
		"SELECT * FROM benefits WHERE district = '강남구'",
		"SELECT * FROM benefits WHERE area IN ('서울특별시', '뉴욕')",
		"SELECT * FROM benefits WHERE gender = 'male'",
		"SELECT * FROM benefits WHERE min_age <= 200",
		"SELECT * FROM benefits WHERE district LIKE '%잠실동%'",
		"SELECT * FROM benefits WHERE income_category = '0 ~ 50%'",
		"SELECT * FROM users",
		"SELECT title FROM benefits",
	}
	for _, input := range invalid {
		err := Validate(mustParse(t, input), policy, cat)
		if err == nil {
			t.Fatalf("expected validation error for %q", input)
		}
		if !domain.IsKind(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation for %q, got %v", input, err)
		}
	}
}
