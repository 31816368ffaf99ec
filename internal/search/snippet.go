package search

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	snippetContext = 50
	snippetMaxLen  = 250
)

// makeSnippet extracts a window of content around the first occurrence of any
// query term. Falls back to the leading content when no term matches. Window
// edges land on byte offsets, so both are backed off to rune boundaries.
func makeSnippet(content string, terms []string) string {
	if content == "" {
		return ""
	}

	lower := strings.ToLower(content)
	pos := -1
	for _, term := range terms {
		if i := strings.Index(lower, strings.ToLower(term)); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}

	start := 0
	if pos > snippetContext {
		start = pos - snippetContext
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	end := start + snippetMaxLen
	if end > len(content) {
		end = len(content)
	}
	for end > start && end < len(content) && !utf8.RuneStart(content[end]) {
		end--
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

// highlight wraps every occurrence of the given surface tokens in <mark>
// tags. Tokens are the query's stopword-filtered unstemmed tokens, so filler
// words never get marked. A single combined alternation keeps already-wrapped
// matches from being wrapped again.
func highlight(snippet string, tokens []string) string {
	tokens = orderForHighlight(tokens)
	if len(tokens) == 0 {
		return snippet
	}
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = regexp.QuoteMeta(t)
	}
	re, err := regexp.Compile(`(?i)\b(` + strings.Join(parts, "|") + `)\b`)
	if err != nil {
		return snippet
	}
	return re.ReplaceAllString(snippet, "<mark>$1</mark>")
}

// orderForHighlight dedupes case-insensitively and puts longer tokens first
// so "searching" beats "search" in the alternation.
func orderForHighlight(tokens []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range tokens {
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && len(out[j]) > len(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
