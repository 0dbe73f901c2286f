package usecase

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// bm25Rank orders texts by BM25 score against the question and returns at
// most limit indices. Equal scores keep input order.
func bm25Rank(question string, texts []string, limit int) []int {
	if len(texts) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(texts) {
		limit = len(texts)
	}

	docs := make([]map[string]float64, len(texts))
	lengths := make([]float64, len(texts))
	docFreq := make(map[string]int, 64)
	totalLen := 0.0
	for i, text := range texts {
		tokens := tokenize(text)
		tf := make(map[string]float64, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		for token := range tf {
			docFreq[token]++
		}
		docs[i] = tf
		lengths[i] = float64(len(tokens))
		totalLen += lengths[i]
	}
	avgLen := totalLen / float64(len(texts))
	if avgLen == 0 {
		avgLen = 1
	}

	queryTerms := toTokenSet(question)
	n := float64(len(texts))
	scores := make([]float64, len(texts))
	for i, tf := range docs {
		norm := bm25K1 * (1 - bm25B + bm25B*lengths[i]/avgLen)
		for term := range queryTerms {
			freq := tf[term]
			if freq == 0 {
				continue
			}
			df := float64(docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			weight := (freq * (bm25K1 + 1)) / (freq + norm)
			if math.IsNaN(weight) || math.IsInf(weight, 0) {
				continue
			}
			scores[i] += idf * weight
		}
	}

	order := make([]int, len(texts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order[:limit]
}

func toTokenSet(s string) map[string]struct{} {
	tokens := tokenize(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// tokenize splits on anything that is not a letter or digit and lowercases.
// Hangul words also contribute their syllable bigrams so that particles and
// compounds still overlap ("청년수당을" shares "청년" with "청년").
func tokenize(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		word := b.String()
		b.Reset()
		tokens = append(tokens, word)
		tokens = append(tokens, hangulBigrams(word)...)
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return tokens
}

func hangulBigrams(word string) []string {
	runes := []rune(word)
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		if !unicode.Is(unicode.Hangul, runes[i]) || !unicode.Is(unicode.Hangul, runes[i+1]) {
			continue
		}
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
