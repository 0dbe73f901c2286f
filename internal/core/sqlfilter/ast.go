package sqlfilter

import (
	"fmt"
	"strconv"
	"strings"
)

// Query is a single-relation filter query: a projection, one relation and an
// optional predicate tree. Joins, grouping, ordering and row limits are not
// representable and are dropped by the parser.
type Query struct {
	Columns  []string
	Relation string
	Where    Expr

	// ComplexProjection is set when a projection item was not a plain column.
	ComplexProjection bool
}

type Expr interface {
	render(w *writer)
}

type LogicalOp string

const (
	OpAnd LogicalOp = "AND"
	OpOr  LogicalOp = "OR"
)

// Logical joins two or more terms with one connector.
type Logical struct {
	Op    LogicalOp
	Terms []Expr
}

type Not struct {
	Term Expr
}

type Operator string

const (
	OpEq         Operator = "="
	OpNe         Operator = "<>"
	OpLt         Operator = "<"
	OpLe         Operator = "<="
	OpGt         Operator = ">"
	OpGe         Operator = ">="
	OpLike       Operator = "LIKE"
	OpNotLike    Operator = "NOT LIKE"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT IN"
	OpBetween    Operator = "BETWEEN"
	OpNotBetween Operator = "NOT BETWEEN"
	OpIsNull     Operator = "IS NULL"
	OpIsNotNull  Operator = "IS NOT NULL"
)

// Predicate is a (field, operator, literals) triple. Field is lower-cased
// and unqualified.
type Predicate struct {
	Field  string
	Op     Operator
	Values []Literal
}

type LiteralKind int

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralNull
	LiteralBool
)

type Literal struct {
	Kind LiteralKind
	Text string
}

func StringLit(s string) Literal { return Literal{Kind: LiteralString, Text: s} }

func NumberLit(n int) Literal { return Literal{Kind: LiteralNumber, Text: strconv.Itoa(n)} }

// Int returns the literal as an integer when it is a whole number, numeric
// strings included.
func (l Literal) Int() (int, bool) {
	if l.Kind != LiteralNumber && l.Kind != LiteralString {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(l.Text))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (l Literal) sql() string {
	switch l.Kind {
	case LiteralString:
		return "'" + strings.ReplaceAll(l.Text, "'", "''") + "'"
	case LiteralNull:
		return "NULL"
	case LiteralBool:
		return strings.ToUpper(l.Text)
	default:
		return l.Text
	}
}

func (l Literal) arg() any {
	switch l.Kind {
	case LiteralNumber:
		if n, err := strconv.ParseInt(l.Text, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(l.Text, 64); err == nil {
			return f
		}
		return l.Text
	case LiteralBool:
		return strings.EqualFold(l.Text, "true")
	case LiteralNull:
		return nil
	default:
		return l.Text
	}
}

// String renders the query with inline literals.
func (q *Query) String() string {
	w := &writer{}
	q.render(w)
	return w.sb.String()
}

// Bind renders the query with $n placeholders and returns the arguments.
func (q *Query) Bind() (string, []any) {
	w := &writer{bind: true}
	q.render(w)
	return w.sb.String(), w.args
}

func (q *Query) render(w *writer) {
	w.sb.WriteString("SELECT ")
	if len(q.Columns) == 0 {
		w.sb.WriteString("*")
	} else {
		w.sb.WriteString(strings.Join(q.Columns, ", "))
	}
	w.sb.WriteString(" FROM ")
	w.sb.WriteString(q.Relation)
	if q.Where != nil {
		w.sb.WriteString(" WHERE ")
		q.Where.render(w)
	}
}

// Predicates lists every predicate in the tree, left to right.
func (q *Query) Predicates() []Predicate {
	var out []Predicate
	walk(q.Where, func(p *Predicate) { out = append(out, *p) })
	return out
}

func (q *Query) HasColumn(name string) bool {
	for _, c := range q.Columns {
		if c == "*" || strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

func walk(e Expr, fn func(*Predicate)) {
	switch n := e.(type) {
	case *Predicate:
		fn(n)
	case *Logical:
		for _, t := range n.Terms {
			walk(t, fn)
		}
	case *Not:
		walk(n.Term, fn)
	}
}

type writer struct {
	sb   strings.Builder
	bind bool
	args []any
}

func (w *writer) literal(l Literal) {
	if !w.bind || l.Kind == LiteralNull {
		w.sb.WriteString(l.sql())
		return
	}
	w.args = append(w.args, l.arg())
	fmt.Fprintf(&w.sb, "$%d", len(w.args))
}

func (l *Logical) render(w *writer) {
	for i, t := range l.Terms {
		if i > 0 {
			w.sb.WriteString(" " + string(l.Op) + " ")
		}
		if inner, ok := t.(*Logical); ok && inner.Op != l.Op {
			w.sb.WriteString("(")
			inner.render(w)
			w.sb.WriteString(")")
			continue
		}
		t.render(w)
	}
}

func (n *Not) render(w *writer) {
	w.sb.WriteString("NOT (")
	n.Term.render(w)
	w.sb.WriteString(")")
}

func (p *Predicate) render(w *writer) {
	w.sb.WriteString(p.Field)
	switch p.Op {
	case OpIsNull, OpIsNotNull:
		w.sb.WriteString(" " + string(p.Op))
	case OpIn, OpNotIn:
		w.sb.WriteString(" " + string(p.Op) + " (")
		for i, v := range p.Values {
			if i > 0 {
				w.sb.WriteString(", ")
			}
			w.literal(v)
		}
		w.sb.WriteString(")")
	case OpBetween, OpNotBetween:
		w.sb.WriteString(" " + string(p.Op) + " ")
		w.literal(p.Values[0])
		w.sb.WriteString(" AND ")
		w.literal(p.Values[1])
	default:
		w.sb.WriteString(" " + string(p.Op) + " ")
		w.literal(p.Values[0])
	}
}
