package services

import (
	"strings"
	"unicode"
)

// stopwords are skipped when matching query terms against content.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "did": true, "do": true, "does": true,
	"for": true, "from": true, "has": true, "have": true, "how": true, "in": true,
	"is": true, "it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true, "were": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "will": true, "with": true,
}

// queryTerms returns the distinct content-bearing terms of query.
func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 3 || stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// termCoverage returns the fraction of query terms that occur in content.
func termCoverage(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// relevance combines the dense similarity of a hit, if it had one, with its
// lexical coverage of the query.
func relevance(similarity float64, dense bool, terms []string, content string) float64 {
	r := termCoverage(terms, content)
	if dense {
		r = max(r, clamp01(similarity))
	}
	return r
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}
