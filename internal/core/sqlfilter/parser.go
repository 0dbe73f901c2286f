package sqlfilter

import (
	"fmt"
	"strings"
)

// Parse reads a single SELECT statement into a Query. It is lenient about
// clause boundaries: a dangling WHERE or a dangling AND/OR is ignored, and
// JOIN, GROUP BY, HAVING, ORDER BY, LIMIT and OFFSET clauses are consumed and
// dropped. Set operations and subqueries are rejected.
func Parse(input string) (*Query, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseQuery()
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peek().keyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf("expected %s", kw)
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.peek()
	where := "end of input"
	if t.kind != tokEOF {
		where = fmt.Sprintf("%q at %d", t.text, t.pos)
	}
	return fmt.Errorf("parse: "+format+" near %s", append(args, where)...)
}

var clauseKeywords = []string{"WHERE", "GROUP", "ORDER", "HAVING", "LIMIT", "OFFSET", "FETCH", "UNION", "INTERSECT", "EXCEPT"}

var joinKeywords = []string{"JOIN", "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "OUTER", "NATURAL"}

func (p *parser) atAnyKeyword(kws []string) bool {
	for _, kw := range kws {
		if p.peek().keyword(kw) {
			return true
		}
	}
	return false
}

func (p *parser) atClauseEnd() bool {
	t := p.peek()
	return t.is(tokEOF) || t.is(tokSemicolon) || t.is(tokRParen) || p.atAnyKeyword(clauseKeywords)
}

func (p *parser) parseQuery() (*Query, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	p.acceptKeyword("DISTINCT")

	q := &Query{}
	if err := p.parseProjection(q); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	relation, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}
	q.Relation = relation

	if err := p.skipJoins(); err != nil {
		return nil, err
	}

	if p.acceptKeyword("WHERE") {
		for p.peek().keyword("AND") || p.peek().keyword("OR") {
			p.next()
		}
		if !p.atClauseEnd() {
			where, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			q.Where = where
		}
	}

	if err := p.skipTail(); err != nil {
		return nil, err
	}
	return q, nil
}

// parseProjection splits the select list on top-level commas.
func (p *parser) parseProjection(q *Query) error {
	var item []token
	depth := 0
	flush := func() error {
		if len(item) == 0 {
			return p.errorf("empty projection item")
		}
		column, simple := simpleColumn(item)
		if !simple {
			q.ComplexProjection = true
			column = renderTokens(item)
		}
		q.Columns = append(q.Columns, column)
		item = item[:0]
		return nil
	}

	for {
		t := p.peek()
		switch {
		case t.is(tokEOF):
			return p.errorf("expected FROM")
		case depth == 0 && t.keyword("FROM"):
			return flush()
		case depth == 0 && t.is(tokComma):
			if err := flush(); err != nil {
				return err
			}
			p.next()
			continue
		case t.is(tokLParen):
			depth++
		case t.is(tokRParen):
			depth--
		case t.keyword("SELECT"):
			return p.errorf("subqueries are not supported")
		}
		item = append(item, t)
		p.next()
	}
}

// simpleColumn recognises `*`, `col`, `t.col`, `t.*`, optionally aliased.
func simpleColumn(item []token) (string, bool) {
	if len(item) >= 2 && item[len(item)-2].keyword("AS") && isName(item[len(item)-1]) {
		item = item[:len(item)-2]
	} else if len(item) == 2 && isName(item[0]) && item[1].is(tokIdent) && !isReserved(item[1].text) {
		item = item[:1]
	}
	switch {
	case len(item) == 1 && item[0].is(tokStar):
		return "*", true
	case len(item) == 1 && isName(item[0]) && !isReserved(item[0].text):
		return strings.ToLower(item[0].text), true
	case len(item) == 3 && isName(item[0]) && item[1].is(tokDot) && item[2].is(tokStar):
		return "*", true
	case len(item) == 3 && isName(item[0]) && item[1].is(tokDot) && isName(item[2]):
		return strings.ToLower(item[2].text), true
	}
	return "", false
}

func isName(t token) bool { return t.is(tokIdent) || t.is(tokQuotedIdent) }

var reserved = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "WHERE": {}, "AND": {}, "OR": {}, "NOT": {}, "CASE": {}, "WHEN": {},
	"THEN": {}, "ELSE": {}, "END": {}, "AS": {}, "ON": {}, "IN": {}, "IS": {}, "NULL": {},
	"LIKE": {}, "ILIKE": {}, "BETWEEN": {}, "JOIN": {}, "INNER": {}, "LEFT": {}, "RIGHT": {},
	"FULL": {}, "CROSS": {}, "OUTER": {}, "NATURAL": {}, "USING": {}, "GROUP": {}, "ORDER": {},
	"BY": {}, "HAVING": {}, "LIMIT": {}, "OFFSET": {}, "FETCH": {}, "UNION": {}, "INTERSECT": {},
	"EXCEPT": {}, "DISTINCT": {}, "TRUE": {}, "FALSE": {},
}

func isReserved(word string) bool {
	_, ok := reserved[strings.ToUpper(word)]
	return ok
}

func renderTokens(tokens []token) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		switch t.kind {
		case tokString:
			parts = append(parts, StringLit(t.text).sql())
		case tokQuotedIdent:
			parts = append(parts, `"`+t.text+`"`)
		default:
			parts = append(parts, t.text)
		}
	}
	return strings.Join(parts, " ")
}

// parseTableRef reads `name`, `schema.name`, and an optional alias.
func (p *parser) parseTableRef() (string, error) {
	if p.peek().is(tokLParen) {
		return "", p.errorf("subqueries are not supported")
	}
	t := p.next()
	if !isName(t) || (t.is(tokIdent) && isReserved(t.text)) {
		return "", p.errorf("expected relation name")
	}
	name := t.text
	if p.peek().is(tokDot) && isName(p.peekAt(1)) {
		p.next()
		name = p.next().text
	}
	if p.acceptKeyword("AS") {
		if !isName(p.next()) {
			return "", p.errorf("expected alias")
		}
	} else if isName(p.peek()) && !(p.peek().is(tokIdent) && isReserved(p.peek().text)) {
		p.next()
	}
	return strings.ToLower(name), nil
}

// skipJoins consumes comma joins and JOIN clauses including their conditions.
func (p *parser) skipJoins() error {
	for {
		switch {
		case p.peek().is(tokComma):
			p.next()
			if _, err := p.parseTableRef(); err != nil {
				return err
			}
		case p.atAnyKeyword(joinKeywords):
			for p.atAnyKeyword(joinKeywords) && !p.peek().keyword("JOIN") {
				p.next()
			}
			if err := p.expectKeyword("JOIN"); err != nil {
				return err
			}
			if _, err := p.parseTableRef(); err != nil {
				return err
			}
			if p.acceptKeyword("ON") {
				p.skipJoinCondition()
			} else if p.acceptKeyword("USING") {
				if err := p.skipParenGroup(); err != nil {
					return err
				}
			}
		default:
			return nil
		}
	}
}

// skipJoinCondition drops an ON condition, which may compare columns.
func (p *parser) skipJoinCondition() {
	depth := 0
	for {
		t := p.peek()
		switch {
		case t.is(tokEOF), t.is(tokSemicolon):
			return
		case depth == 0 && (t.is(tokComma) || t.is(tokRParen) || p.atAnyKeyword(clauseKeywords) || p.atAnyKeyword(joinKeywords)):
			return
		case t.is(tokLParen):
			depth++
		case t.is(tokRParen):
			depth--
		}
		p.next()
	}
}

func (p *parser) skipParenGroup() error {
	if !p.peek().is(tokLParen) {
		return p.errorf("expected (")
	}
	depth := 0
	for {
		t := p.next()
		switch t.kind {
		case tokEOF:
			return p.errorf("unbalanced parentheses")
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
}

// skipTail drops GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET and FETCH clauses.
func (p *parser) skipTail() error {
	for {
		t := p.peek()
		switch {
		case t.is(tokEOF):
			return nil
		case t.is(tokSemicolon):
			p.next()
			if !p.peek().is(tokEOF) {
				return p.errorf("multiple statements are not supported")
			}
			return nil
		case t.keyword("UNION"), t.keyword("INTERSECT"), t.keyword("EXCEPT"), t.keyword("SELECT"):
			return p.errorf("compound queries are not supported")
		case t.keyword("GROUP"), t.keyword("ORDER"), t.keyword("HAVING"), t.keyword("LIMIT"),
			t.keyword("OFFSET"), t.keyword("FETCH"):
			p.next()
			for !p.peek().is(tokEOF) && !p.peek().is(tokSemicolon) {
				if p.peek().keyword("SELECT") || p.peek().keyword("UNION") {
					return p.errorf("compound queries are not supported")
				}
				p.next()
			}
		default:
			return p.errorf("unexpected token")
		}
	}
}

func (p *parser) parseOr() (Expr, error) {
	return p.parseLogical(OpOr, p.parseAnd)
}

func (p *parser) parseAnd() (Expr, error) {
	return p.parseLogical(OpAnd, p.parseNot)
}

func (p *parser) parseLogical(op LogicalOp, operand func() (Expr, error)) (Expr, error) {
	var terms []Expr
	for {
		term, err := operand()
		if err != nil {
			return nil, err
		}
		if term != nil {
			terms = append(terms, term)
		}
		if !p.acceptKeyword(string(op)) || p.atClauseEnd() {
			break
		}
	}
	switch len(terms) {
	case 0:
		return nil, nil
	case 1:
		return terms[0], nil
	}
	return &Logical{Op: op, Terms: terms}, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.acceptKeyword("NOT") {
		term, err := p.parseNot()
		if err != nil || term == nil {
			return nil, err
		}
		return &Not{Term: term}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	if p.peek().is(tokLParen) {
		p.next()
		if p.peek().keyword("SELECT") {
			return nil, p.errorf("subqueries are not supported")
		}
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.peek().is(tokRParen) {
			return nil, p.errorf("expected )")
		}
		p.next()
		return inner, nil
	}
	return p.parsePredicate()
}

// operand is either a column reference or a literal.
type operand struct {
	column  string
	literal Literal
	isCol   bool
}

func (p *parser) parseOperand(valueSide bool) (operand, error) {
	t := p.peek()
	switch {
	case t.is(tokString):
		p.next()
		return operand{literal: StringLit(t.text)}, nil
	case t.is(tokNumber):
		p.next()
		return operand{literal: Literal{Kind: LiteralNumber, Text: t.text}}, nil
	case t.is(tokOp) && t.text == "-" && p.peekAt(1).is(tokNumber):
		p.next()
		n := p.next()
		return operand{literal: Literal{Kind: LiteralNumber, Text: "-" + n.text}}, nil
	case t.keyword("NULL"):
		p.next()
		return operand{literal: Literal{Kind: LiteralNull, Text: "NULL"}}, nil
	case t.keyword("TRUE"), t.keyword("FALSE"):
		p.next()
		return operand{literal: Literal{Kind: LiteralBool, Text: strings.ToUpper(t.text)}}, nil
	case t.is(tokQuotedIdent) && valueSide:
		// "남자" on the value side is a mis-quoted string literal.
		p.next()
		return operand{literal: StringLit(t.text)}, nil
	case isName(t) && !(t.is(tokIdent) && isReserved(t.text)):
		p.next()
		name := t.text
		if p.peek().is(tokDot) && isName(p.peekAt(1)) {
			p.next()
			name = p.next().text
		}
		if p.peek().is(tokLParen) {
			return operand{}, p.errorf("function calls are not supported")
		}
		return operand{column: strings.ToLower(name), isCol: true}, nil
	}
	return operand{}, p.errorf("expected column or literal")
}

var comparisonOps = map[string]Operator{
	"=": OpEq, "<>": OpNe, "!=": OpNe, "<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
}

// flipped maps `literal op column` onto `column flipped(op) literal`.
var flipped = map[Operator]Operator{
	OpEq: OpEq, OpNe: OpNe, OpLt: OpGt, OpLe: OpGe, OpGt: OpLt, OpGe: OpLe,
}

func (p *parser) parsePredicate() (Expr, error) {
	left, err := p.parseOperand(false)
	if err != nil {
		return nil, err
	}

	t := p.peek()
	if t.is(tokOp) {
		op, ok := comparisonOps[t.text]
		if !ok {
			return nil, p.errorf("unsupported operator")
		}
		p.next()
		right, err := p.parseOperand(left.isCol)
		if err != nil {
			return nil, err
		}
		switch {
		case left.isCol && !right.isCol:
			return &Predicate{Field: left.column, Op: op, Values: []Literal{right.literal}}, nil
		case !left.isCol && right.isCol:
			return &Predicate{Field: right.column, Op: flipped[op], Values: []Literal{left.literal}}, nil
		case !left.isCol && !right.isCol && op == OpEq && left.literal == right.literal:
			// WHERE 1=1 style tautology.
			return nil, nil
		default:
			return nil, p.errorf("comparison needs exactly one column")
		}
	}

	negated := p.acceptKeyword("NOT")
	switch {
	case p.acceptKeyword("LIKE"), p.acceptKeyword("ILIKE"):
		if !left.isCol {
			return nil, p.errorf("LIKE needs a column")
		}
		right, err := p.parseOperand(true)
		if err != nil || right.isCol {
			return nil, p.errorf("LIKE needs a literal pattern")
		}
		op := OpLike
		if negated {
			op = OpNotLike
		}
		return &Predicate{Field: left.column, Op: op, Values: []Literal{right.literal}}, nil

	case p.acceptKeyword("IN"):
		if !left.isCol {
			return nil, p.errorf("IN needs a column")
		}
		values, err := p.parseLiteralList()
		if err != nil {
			return nil, err
		}
		op := OpIn
		if negated {
			op = OpNotIn
		}
		return &Predicate{Field: left.column, Op: op, Values: values}, nil

	case p.acceptKeyword("BETWEEN"):
		return p.parseBetween(left, negated)

	case !negated && p.acceptKeyword("IS"):
		not := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		if !left.isCol {
			return nil, p.errorf("IS NULL needs a column")
		}
		op := OpIsNull
		if not {
			op = OpIsNotNull
		}
		return &Predicate{Field: left.column, Op: op}, nil
	}
	return nil, p.errorf("expected predicate operator")
}

func (p *parser) parseLiteralList() ([]Literal, error) {
	if !p.peek().is(tokLParen) {
		return nil, p.errorf("expected (")
	}
	p.next()
	var values []Literal
	for {
		if p.peek().keyword("SELECT") {
			return nil, p.errorf("subqueries are not supported")
		}
		v, err := p.parseOperand(true)
		if err != nil {
			return nil, err
		}
		if v.isCol {
			return nil, p.errorf("IN list needs literals")
		}
		values = append(values, v.literal)
		if p.peek().is(tokComma) {
			p.next()
			continue
		}
		if p.peek().is(tokRParen) {
			p.next()
			return values, nil
		}
		return nil, p.errorf("expected , or )")
	}
}

// parseBetween handles `col BETWEEN a AND b` and the range-containment form
// `n BETWEEN lo_col AND hi_col`, which becomes `lo_col <= n AND hi_col >= n`.
func (p *parser) parseBetween(left operand, negated bool) (Expr, error) {
	lo, err := p.parseOperand(left.isCol)
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AND"); err != nil {
		return nil, err
	}
	hi, err := p.parseOperand(left.isCol)
	if err != nil {
		return nil, err
	}

	if left.isCol && !lo.isCol && !hi.isCol {
		op := OpBetween
		if negated {
			op = OpNotBetween
		}
		return &Predicate{Field: left.column, Op: op, Values: []Literal{lo.literal, hi.literal}}, nil
	}
	if !left.isCol && lo.isCol && hi.isCol {
		var expr Expr = &Logical{Op: OpAnd, Terms: []Expr{
			&Predicate{Field: lo.column, Op: OpLe, Values: []Literal{left.literal}},
			&Predicate{Field: hi.column, Op: OpGe, Values: []Literal{left.literal}},
		}}
		if negated {
			expr = &Not{Term: expr}
		}
		return expr, nil
	}
	return nil, p.errorf("unsupported BETWEEN form")
}
