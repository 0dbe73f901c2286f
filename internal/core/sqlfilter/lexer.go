package sqlfilter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokOp
	tokComma
	tokDot
	tokLParen
	tokRParen
	tokStar
	tokSemicolon
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(kind tokenKind) bool { return t.kind == kind }

// keyword reports whether an unquoted identifier spells kw, case-insensitively.
func (t token) keyword(kw string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

// lex splits a statement into tokens. Comments (--, #, /* */) are dropped.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '-' && strings.HasPrefix(input[i:], "--"), r == '#':
			for i < len(input) && input[i] != '\n' {
				i++
			}
		case r == '/' && strings.HasPrefix(input[i:], "/*"):
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				i = len(input)
			} else {
				i += end + 4
			}
		case r == '\'':
			text, next, err := scanQuoted(input, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, pos: i})
			i = next
		case r == '"' || r == '`':
			text, next, err := scanQuoted(input, i, byte(r))
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokQuotedIdent, text: text, pos: i})
			i = next
		case isDigit(r):
			start := i
			for i < len(input) && (isDigit(rune(input[i])) || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: input[start:i], pos: start})
		case isIdentStart(r):
			start := i
			for i < len(input) {
				r2, s2 := utf8.DecodeRuneInString(input[i:])
				if !isIdentPart(r2) {
					break
				}
				i += s2
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:i], pos: start})
		default:
			tok, n, err := scanPunct(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i += n
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

func scanQuoted(input string, start int, quote byte) (string, int, error) {
	var sb strings.Builder
	i := start + 1
	for i < len(input) {
		if input[i] == quote {
			if i+1 < len(input) && input[i+1] == quote {
				sb.WriteByte(quote)
				i += 2
				continue
			}
			return sb.String(), i + 1, nil
		}
		sb.WriteByte(input[i])
		i++
	}
	return "", 0, fmt.Errorf("unterminated quoted text at %d", start)
}

func scanPunct(input string, i int) (token, int, error) {
	two := ""
	if i+2 <= len(input) {
		two = input[i : i+2]
	}
	switch two {
	case "<=", ">=", "<>", "!=":
		return token{kind: tokOp, text: two, pos: i}, 2, nil
	}
	switch input[i] {
	case '=', '<', '>', '-':
		return token{kind: tokOp, text: input[i : i+1], pos: i}, 1, nil
	case ',':
		return token{kind: tokComma, text: ",", pos: i}, 1, nil
	case '.':
		return token{kind: tokDot, text: ".", pos: i}, 1, nil
	case '(':
		return token{kind: tokLParen, text: "(", pos: i}, 1, nil
	case ')':
		return token{kind: tokRParen, text: ")", pos: i}, 1, nil
	case '*':
		return token{kind: tokStar, text: "*", pos: i}, 1, nil
	case ';':
		return token{kind: tokSemicolon, text: ";", pos: i}, 1, nil
	}
	// Operators the filter model does not support still lex, so projections
	// using them can be detected and replaced.
	_, size := utf8.DecodeRuneInString(input[i:])
	return token{kind: tokOp, text: input[i : i+size], pos: i}, size, nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
