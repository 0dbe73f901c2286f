package sqlfilter

import (
	"strings"

	"github.com/kirillkom/benefit-finder/internal/core/catalog"
)

// Policy describes what a sanitized query may contain.
type Policy struct {
	Relation       string
	IDColumn       string
	AllowedFields  []string
	DefaultColumns []string
	AgeFields      []string
	// AreaAliases maps a lowercased short region name onto its catalog name.
	AreaAliases    map[string]string
}

func DefaultPolicy() Policy {
	return Policy{
		Relation:       "benefits",
		IDColumn:       "service_id",
		AllowedFields:  []string{"min_age", "max_age", "gender", "area", "district"},
		DefaultColumns: []string{"service_id", "area", "district", "min_age", "max_age", "gender"},
		AgeFields:      []string{"min_age", "max_age"},
	}
}

// WithCatalog returns a copy of p that rewrites region aliases from cat
// ("서울" becomes "서울특별시") on the area field.
func (p Policy) WithCatalog(cat *catalog.Catalog) Policy {
	if cat == nil {
		return p
	}
	aliases := make(map[string]string)
	for _, region := range cat.Regions() {
		for _, alias := range region.Aliases {
			alias = strings.ToLower(strings.TrimSpace(alias))
			if alias != "" {
				aliases[alias] = region.Name
			}
		}
	}
	p.AreaAliases = aliases
	return p
}

func (p Policy) allows(field string) bool { return contains(p.AllowedFields, field) }

func (p Policy) isAge(field string) bool { return contains(p.AgeFields, field) }

var genderSynonyms = map[string]string{
	"여자": "여자", "여성": "여자", "여": "여자", "female": "여자", "woman": "여자", "women": "여자", "f": "여자",
	"남자": "남자", "남성": "남자", "남": "남자", "male": "남자", "man": "남자", "men": "남자", "m": "남자",
}

// NormalizeGender maps a gender token onto its catalog literal.
func NormalizeGender(value string) (string, bool) {
	v, ok := genderSynonyms[strings.ToLower(strings.TrimSpace(value))]
	return v, ok
}

// Sanitize returns a copy of q restricted to the policy: the relation is
// forced, predicates on other fields are pruned from the tree (empty groups
// collapse, an empty filter disappears), gender synonyms and numeric age
// strings are normalized, region aliases become catalog names, and a projection that is not a plain column list
// is replaced by the default columns.
func Sanitize(q *Query, policy Policy) *Query {
	out := &Query{
		Relation: policy.Relation,
		Where:    prune(q.Where, policy),
	}

	switch {
	case q.ComplexProjection:
		out.Columns = append([]string(nil), policy.DefaultColumns...)
	case len(q.Columns) == 0:
		out.Columns = []string{"*"}
	default:
		seen := make(map[string]struct{}, len(q.Columns))
		for _, c := range q.Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out.Columns = append(out.Columns, c)
		}
	}
	return out
}

// EnsureIDColumn injects the identifier column into the projection when absent.
func EnsureIDColumn(q *Query, policy Policy) {
	if q.HasColumn(policy.IDColumn) {
		return
	}
	q.Columns = append([]string{policy.IDColumn}, q.Columns...)
}

// ProjectAll replaces the projection with a full-row projection.
func ProjectAll(q *Query) {
	q.Columns = []string{"*"}
	q.ComplexProjection = false
}

func prune(e Expr, policy Policy) Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *Predicate:
		return prunePredicate(n, policy)
	case *Not:
		inner := prune(n.Term, policy)
		if inner == nil {
			return nil
		}
		return &Not{Term: inner}
	case *Logical:
		terms := make([]Expr, 0, len(n.Terms))
		for _, t := range n.Terms {
			kept := prune(t, policy)
			if kept == nil {
				continue
			}
			// Flatten same-connector groups left behind by pruning.
			if inner, ok := kept.(*Logical); ok && inner.Op == n.Op {
				terms = append(terms, inner.Terms...)
				continue
			}
			terms = append(terms, kept)
		}
		switch len(terms) {
		case 0:
			return nil
		case 1:
			return terms[0]
		}
		return &Logical{Op: n.Op, Terms: terms}
	}
	return nil
}

func prunePredicate(p *Predicate, policy Policy) Expr {
	// There is no age column; an exact age becomes a range containment test.
	if p.Field == "age" && p.Op == OpEq && len(p.Values) == 1 {
		if n, ok := p.Values[0].Int(); ok {
			return &Logical{Op: OpAnd, Terms: []Expr{
				&Predicate{Field: "min_age", Op: OpLe, Values: []Literal{NumberLit(n)}},
				&Predicate{Field: "max_age", Op: OpGe, Values: []Literal{NumberLit(n)}},
			}}
		}
	}
	if !policy.allows(p.Field) {
		return nil
	}

	out := &Predicate{Field: p.Field, Op: p.Op, Values: make([]Literal, len(p.Values))}
	copy(out.Values, p.Values)
	for i, v := range out.Values {
		switch {
		case p.Field == "gender" && v.Kind == LiteralString:
			out.Values[i] = normalizeGenderLiteral(v, p.Op)
		case p.Field == catalog.FieldArea && v.Kind == LiteralString:
			out.Values[i] = normalizeAreaLiteral(v, p.Op, policy.AreaAliases)
		case policy.isAge(p.Field) && v.Kind == LiteralString:
			if n, ok := v.Int(); ok {
				out.Values[i] = NumberLit(n)
			}
		}
	}
	return out
}

func normalizeGenderLiteral(v Literal, op Operator) Literal {
	if op != OpLike && op != OpNotLike {
		if g, ok := NormalizeGender(v.Text); ok {
			return StringLit(g)
		}
		return v
	}
	core := strings.Trim(v.Text, "%_ ")
	g, ok := NormalizeGender(core)
	if !ok || core == "" {
		return v
	}
	return StringLit(strings.Replace(v.Text, core, g, 1))
}

func normalizeAreaLiteral(v Literal, op Operator, aliases map[string]string) Literal {
	if len(aliases) == 0 {
		return v
	}
	if op != OpLike && op != OpNotLike {
		if name, ok := aliases[strings.ToLower(strings.TrimSpace(v.Text))]; ok {
			return StringLit(name)
		}
		return v
	}
	core := strings.Trim(v.Text, "%_ ")
	name, ok := aliases[strings.ToLower(core)]
	if !ok || core == "" {
		return v
	}
	return StringLit(strings.Replace(v.Text, core, name, 1))
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
