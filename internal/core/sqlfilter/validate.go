package sqlfilter

import (
	"fmt"
	"strings"

	"github.com/kirillkom/benefit-finder/internal/core/catalog"
	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

const maxAge = 150

// Validate checks a sanitized query against the policy and the catalog.
// Every literal bound to a catalog-governed field must be a catalog value:
// equality and IN by membership, LIKE by containment. Empty strings and NULL
// are accepted.
func Validate(q *Query, policy Policy, cat *catalog.Catalog) error {
	if q.Relation != policy.Relation {
		return domain.WrapError(domain.ErrValidation, "validate", fmt.Errorf("relation %q is not permitted", q.Relation))
	}
	if !q.HasColumn(policy.IDColumn) {
		return domain.WrapError(domain.ErrValidation, "validate", fmt.Errorf("projection lacks %s", policy.IDColumn))
	}

	for _, p := range q.Predicates() {
		if !policy.allows(p.Field) {
			return domain.WrapError(domain.ErrValidation, "validate", fmt.Errorf("field %q is not permitted", p.Field))
		}
		if err := validatePredicate(p, policy, cat); err != nil {
			return domain.WrapError(domain.ErrValidation, "validate", err)
		}
	}
	return nil
}

func validatePredicate(p Predicate, policy Policy, cat *catalog.Catalog) error {
	for _, v := range p.Values {
		if v.Kind == LiteralNull {
			continue
		}
		if policy.isAge(p.Field) {
			n, ok := v.Int()
			if !ok || n < 0 || n > maxAge {
				return fmt.Errorf("%s literal %q is not an age", p.Field, v.Text)
			}
			continue
		}
		if !cat.Governs(p.Field) {
			continue
		}
		if v.Kind != LiteralString {
			return fmt.Errorf("%s literal %q is not text", p.Field, v.Text)
		}
		if strings.TrimSpace(v.Text) == "" {
			continue
		}

		switch p.Op {
		case OpLike, OpNotLike:
			if !cat.MatchesLike(p.Field, v.Text) {
				return fmt.Errorf("%s pattern %q matches no catalog value", p.Field, v.Text)
			}
		default:
			if !cat.Contains(p.Field, v.Text) {
				return fmt.Errorf("%s value %q is not in the catalog", p.Field, v.Text)
			}
		}
	}
	return nil
}
