package sqlfilter

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/kirillkom/benefit-finder/internal/core/domain"
)

// Strategy pulls candidate statements out of raw model output.
type Strategy struct {
	Name    string
	Extract func(raw string) []string
}

var (
	tagPattern      = regexp.MustCompile(`(?is)<SQL>(.*?)</SQL>`)
	openTagPattern  = regexp.MustCompile(`(?is)<SQL>(.*)$`)
	markerPattern   = regexp.MustCompile(`(?s)SQL_BEGIN(.*?)SQL_END`)
	fencePattern    = regexp.MustCompile("(?is)```[a-z]*\\s*(.*?)```")
	jsonPattern     = regexp.MustCompile(`(?s)\{.*\}`)
	barePattern     = regexp.MustCompile(`(?is)\bSELECT\s.+?\sFROM\s+benefits\b.*?(?:;|$)`)
	leadingSelectRe = regexp.MustCompile(`(?i)^SELECT\b`)
)

// DefaultStrategies is the extraction order: explicit tags (closed, then
// unterminated since generation stops on the closing tag), begin/end markers,
// fenced blocks, a JSON object carrying the statement, and a bare SELECT.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "tag", Extract: submatches(tagPattern)},
		{Name: "open_tag", Extract: firstParagraph(submatches(openTagPattern))},
		{Name: "markers", Extract: submatches(markerPattern)},
		{Name: "fence", Extract: submatches(fencePattern)},
		{Name: "json", Extract: extractJSON},
		{Name: "bare", Extract: func(raw string) []string { return barePattern.FindAllString(raw, -1) }},
	}
}

var placeholders = []string{"조건1", "조건2", "조건n", "<조건>", "condition1", "condition2", "<condition>", "...", "???"}

// Extract returns the first candidate that is not a template and starts with
// SELECT, along with the strategy that produced it.
func Extract(raw string, strategies []Strategy) (string, string, error) {
	for _, s := range strategies {
		for _, candidate := range s.Extract(raw) {
			candidate = cleanCandidate(candidate)
			if candidate == "" || isTemplate(candidate) {
				continue
			}
			if !leadingSelectRe.MatchString(candidate) {
				continue
			}
			return candidate, s.Name, nil
		}
	}
	return "", "", domain.WrapError(domain.ErrExtraction, "extract", errNoCandidate)
}

var errNoCandidate = errors.New("no SELECT statement found")

func submatches(re *regexp.Regexp) func(string) []string {
	return func(raw string) []string {
		var out []string
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			if len(m) > 1 {
				out = append(out, m[1])
			}
		}
		return out
	}
}

// firstParagraph keeps candidates up to the first blank line, so prose the
// model writes after an unterminated tag stays out of the statement.
func firstParagraph(extract func(string) []string) func(string) []string {
	return func(raw string) []string {
		out := extract(raw)
		for i, candidate := range out {
			candidate = strings.TrimLeft(candidate, " \t\r\n")
			if idx := blankLine.FindStringIndex(candidate); idx != nil {
				candidate = candidate[:idx[0]]
			}
			out[i] = candidate
		}
		return out
	}
}

var blankLine = regexp.MustCompile(`\n[ \t\r]*\n`)

func extractJSON(raw string) []string {
	obj := jsonPattern.FindString(raw)
	if obj == "" {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return nil
	}
	var out []string
	for _, key := range []string{"sql", "query", "SQL"} {
		if s, ok := payload[key].(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// cleanCandidate drops line comments and everything from the first
// unquoted semicolon on.
func cleanCandidate(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if idx := commentStart(line); idx >= 0 {
			line = line[:idx]
		}
		if strings.TrimSpace(line) != "" {
			kept = append(kept, strings.TrimSpace(line))
		}
	}
	out := strings.Join(kept, " ")
	if idx := statementEnd(out); idx >= 0 {
		out = out[:idx]
	}
	return strings.TrimSpace(out)
}

// statementEnd finds the first ; outside quoted text.
func statementEnd(s string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\'':
			inQuote = !inQuote
		case !inQuote && s[i] == ';':
			return i
		}
	}
	return -1
}

// commentStart finds -- or # outside quoted text.
func commentStart(line string) int {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\'':
			inQuote = !inQuote
		case inQuote:
		case line[i] == '#':
			return i
		case line[i] == '-' && i+1 < len(line) && line[i+1] == '-':
			return i
		}
	}
	return -1
}

func isTemplate(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range placeholders {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
