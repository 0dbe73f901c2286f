package usecase

import (
	"regexp"
	"strconv"

	"github.com/kirillkom/benefit-finder/internal/core/catalog"
	"github.com/kirillkom/benefit-finder/internal/core/sqlfilter"
)

const maxFallbackAge = 120

var agePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|\D)(\d{1,3})\s*(?:세|살)`),
	regexp.MustCompile(`(?i)(?:^|\D)(\d{1,3})[\s-]*years?[\s-]*old`),
	regexp.MustCompile(`(?i)(?:나이|age(?:d)?)\s*:?\s*(\d{1,3})\b`),
}

var (
	femaleTokens = regexp.MustCompile(`(?i)여자|여성|\b(?:female|woman|women)\b`)
	maleTokens   = regexp.MustCompile(`(?i)남자|남성|\b(?:male|man|men)\b`)
)

// buildFallbackQuery derives an attribute filter from keywords in the
// question. Profile hints fill attributes the question leaves out.
func buildFallbackQuery(question string, hints profileHints, cat *catalog.Catalog, policy sqlfilter.Policy) *sqlfilter.Query {
	var terms []sqlfilter.Expr

	districts := cat.FindDistricts(question)
	if len(districts) == 0 && hints.District != "" {
		districts = []string{hints.District}
	}
	areas := cat.FindAreas(question)

	switch {
	case len(districts) > 0:
		terms = append(terms, anyOf(districts, func(d string) sqlfilter.Expr {
			return &sqlfilter.Predicate{Field: "district", Op: sqlfilter.OpLike, Values: []sqlfilter.Literal{sqlfilter.StringLit("%" + d + "%")}}
		}))
	case len(areas) > 0:
		terms = append(terms, anyOf(areas, func(a string) sqlfilter.Expr {
			return &sqlfilter.Predicate{Field: "area", Op: sqlfilter.OpEq, Values: []sqlfilter.Literal{sqlfilter.StringLit(a)}}
		}))
	case hints.Area != "":
		terms = append(terms, &sqlfilter.Predicate{Field: "area", Op: sqlfilter.OpEq, Values: []sqlfilter.Literal{sqlfilter.StringLit(hints.Area)}})
	}

	age, hasAge := ageFromText(question)
	if !hasAge && hints.HasAge {
		age, hasAge = hints.Age, true
	}
	if hasAge {
		terms = append(terms,
			&sqlfilter.Predicate{Field: "min_age", Op: sqlfilter.OpLe, Values: []sqlfilter.Literal{sqlfilter.NumberLit(age)}},
			&sqlfilter.Predicate{Field: "max_age", Op: sqlfilter.OpGe, Values: []sqlfilter.Literal{sqlfilter.NumberLit(age)}},
		)
	}

	gender := genderFromText(question)
	if gender == "" {
		gender = hints.Gender
	}
	if gender != "" {
		terms = append(terms, &sqlfilter.Predicate{Field: "gender", Op: sqlfilter.OpEq, Values: []sqlfilter.Literal{sqlfilter.StringLit(gender)}})
	}

	q := &sqlfilter.Query{Columns: []string{"*"}, Relation: policy.Relation}
	switch len(terms) {
	case 0:
	case 1:
		q.Where = terms[0]
	default:
		q.Where = &sqlfilter.Logical{Op: sqlfilter.OpAnd, Terms: terms}
	}
	return q
}

func anyOf(values []string, build func(string) sqlfilter.Expr) sqlfilter.Expr {
	if len(values) == 1 {
		return build(values[0])
	}
	terms := make([]sqlfilter.Expr, 0, len(values))
	for _, v := range values {
		terms = append(terms, build(v))
	}
	return &sqlfilter.Logical{Op: sqlfilter.OpOr, Terms: terms}
}

func ageFromText(text string) (int, bool) {
	for _, re := range agePatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 0 || n > maxFallbackAge {
			continue
		}
		return n, true
	}
	return 0, false
}

// genderFromText returns the catalog gender named in text. Mentions of both
// leave gender unconstrained.
func genderFromText(text string) string {
	female := femaleTokens.MatchString(text)
	male := maleTokens.MatchString(text)
	switch {
	case female && !male:
		return "여자"
	case male && !female:
		return "남자"
	default:
		return ""
	}
}
