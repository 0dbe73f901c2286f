package sqlfilter

import (
	"reflect"
	"testing"
)

func mustParse(t *testing.T, input string) *Query {
	t.Helper()
	q, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q) error = %v", input, err)
	}
	return q
}

func TestParseDropsJoinsOrderingAndLimit(t *testing.T) {
	q := mustParse(t, `SELECT service_id, title FROM benefits b
JOIN users u ON b.area = u.area
WHERE b.gender = 'male' AND u.income_category = '0 ~ 50%' AND 48 BETWEEN b.min_age AND b.max_age
ORDER BY title LIMIT 10;`)

	want := "SELECT service_id, title FROM benefits WHERE gender = 'male' AND income_category = '0 ~ 50%' AND min_age <= 48 AND max_age >= 48"
	if got := q.String(); got != want {
		t.Fatalf("unexpected rendering:\n got %s\nwant %s", got, want)
	}
}

func TestParseHandlesDanglingConnectors(t *testing.T) {
	q := mustParse(t, "SELECT service_id FROM benefits WHERE")
	if q.Where != nil {
		t.Fatalf("expected empty filter, got %s", q.String())
	}

	q = mustParse(t, "SELECT service_id FROM benefits WHERE AND gender = '여자' AND")
	if got := q.String(); got != "SELECT service_id FROM benefits WHERE gender = '여자'" {
		t.Fatalf("unexpected rendering: %s", got)
	}
}

func TestParseNormalizesValueFirstComparison(t *testing.T) {
	q := mustParse(t, "SELECT service_id FROM benefits WHERE 30 >= min_age")
	preds := q.Predicates()
	if len(preds) != 1 || preds[0].Field != "min_age" || preds[0].Op != OpLe {
		t.Fatalf("unexpected predicates: %+v", preds)
	}
}

func TestParseDropsTautology(t *testing.T) {
	q := mustParse(t, "SELECT service_id FROM benefits WHERE 1=1 AND district = '마포구'")
	if got := q.String(); got != "SELECT service_id FROM benefits WHERE district = '마포구'" {
		t.Fatalf("unexpected rendering: %s", got)
	}
}

func TestParseTreatsQuotedValueAsString(t *testing.T) {
	q := mustParse(t, `SELECT service_id FROM benefits WHERE gender = "남성"`)
	preds := q.Predicates()
	if len(preds) != 1 || preds[0].Values[0].Kind != LiteralString || preds[0].Values[0].Text != "남성" {
		t.Fatalf("unexpected predicates: %+v", preds)
	}
}

func TestParseKeepsNestedGroups(t *testing.T) {
	q := mustParse(t, "SELECT * FROM benefits WHERE (area = '서울특별시' OR area = '전국') AND gender IN ('남자', '여자') AND district IS NOT NULL")
	want := "SELECT * FROM benefits WHERE (area = '서울특별시' OR area = '전국') AND gender IN ('남자', '여자') AND district IS NOT NULL"
	if got := q.String(); got != want {
		t.Fatalf("unexpected rendering:\n got %s\nwant %s", got, want)
	}
}

func TestParseMarksComplexProjection(t *testing.T) {
	q := mustParse(t, "SELECT service_id, CASE WHEN gender = '남자' THEN 1 ELSE 0 END AS flag FROM benefits")
	if !q.ComplexProjection {
		t.Fatalf("expected complex projection for CASE expression")
	}

	q = mustParse(t, "SELECT b.service_id AS id, b.* FROM benefits AS b")
	if q.ComplexProjection || !reflect.DeepEqual(q.Columns, []string{"service_id", "*"}) {
		t.Fatalf("unexpected columns: %v complex=%v", q.Columns, q.ComplexProjection)
	}
}

func TestParseRejectsUnsupportedStatements(t *testing.T) {
	inputs := []string{
		"DELETE FROM benefits",
		"SELECT * FROM benefits UNION SELECT * FROM users",
		"SELECT * FROM (SELECT * FROM benefits) t",
		"SELECT * FROM benefits WHERE service_id IN (SELECT service_id FROM users)",
		"SELECT * FROM benefits WHERE LOWER(gender) = 'male'",
		"SELECT * FROM benefits WHERE min_age <= max_age",
		"SELECT * FROM benefits; DROP TABLE benefits",
		"SELECT * FROM benefits WHERE gender = 'unterminated",
	}
	for _, input := range inputs {
		if _, err := Parse(input); err == nil {
			t.Fatalf("expected parse error for %q", input)
		}
	}
}

func TestBindUsesPlaceholders(t *testing.T) {
	q := mustParse(t, "SELECT * FROM benefits WHERE district LIKE '%마포%' AND min_age <= 48 AND gender IS NULL")
	stmt, args := q.Bind()
	if stmt != "SELECT * FROM benefits WHERE district LIKE $1 AND min_age <= $2 AND gender IS NULL" {
		t.Fatalf("unexpected statement: %s", stmt)
	}
	if !reflect.DeepEqual(args, []any{"%마포%", int64(48)}) {
		t.Fatalf("unexpected args: %#v", args)
	}
}

func TestLiteralEscapesQuotes(t *testing.T) {
	q := &Query{Columns: []string{"*"}, Relation: "benefits", Where: &Predicate{
		Field: "district", Op: OpEq, Values: []Literal{StringLit("a'b")},
	}}
	if got := q.String(); got != "SELECT * FROM benefits WHERE district = 'a''b'" {
		t.Fatalf("unexpected rendering: %s", got)
	}
}
