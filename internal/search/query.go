package search

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/webseek/webseek/internal/textproc"
)

// Query is a processed search query.
type Query struct {
	// Raw is the original query string.
	Raw string
	// RawTokens are the tokenized, stopword-filtered surface tokens before
	// stemming, deduplicated in order. Snippet highlighting matches these.
	RawTokens []string
	// Terms are the processed (stopword-filtered, stemmed) terms in order,
	// duplicates preserved.
	Terms []string
	// Unique are the distinct terms, sorted.
	Unique []string
	// CacheKey is a stable digest of the unique terms: queries that differ
	// only in word order, case, or duplication share cached results.
	CacheKey string
}

// ProcessQuery runs the indexing pipeline over a query string. A query of
// nothing but stopwords yields no terms; callers return empty results for it.
func ProcessQuery(raw string) Query {
	terms := textproc.Process(raw)

	var rawTokens []string
	seenRaw := make(map[string]bool)
	for _, t := range textproc.Tokenize(raw) {
		if textproc.IsStopword(t) || seenRaw[t] {
			continue
		}
		seenRaw[t] = true
		rawTokens = append(rawTokens, t)
	}

	seen := make(map[string]bool, len(terms))
	unique := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			unique = append(unique, t)
		}
	}
	sort.Strings(unique)

	sum := sha256.Sum256([]byte(strings.Join(unique, " ")))
	return Query{
		Raw:       raw,
		RawTokens: rawTokens,
		Terms:     terms,
		Unique:    unique,
		CacheKey:  hex.EncodeToString(sum[:]),
	}
}

// Empty reports whether processing left no searchable terms.
func (q Query) Empty() bool {
	return len(q.Terms) == 0
}
