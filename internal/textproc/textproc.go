// Package textproc implements text normalization for indexing and querying:
// HTML stripping, tokenization, stopword removal, and Porter stemming.
// Index-time and query-time paths share the same pipeline so query terms
// match posting terms exactly.
package textproc

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/blevesearch/go-porterstemmer"
)

const (
	minTokenLen = 2
	maxTokenLen = 50
)

var (
	tokenRe      = regexp.MustCompile(`[a-zA-Z0-9]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// strippedSelectors are removed from the DOM before text extraction.
var strippedSelectors = []string{"script", "style", "nav", "header", "footer", "noscript"}

// HTMLToText extracts readable text from an HTML document. Boilerplate
// elements are removed, remaining text nodes are joined with spaces, entities
// unescaped, and whitespace collapsed. Malformed HTML never fails: the parser
// is lenient, and on a hard parse error the raw input is tag-stripped.
func HTMLToText(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return normalizeWhitespace(html.UnescapeString(stripTags(rawHTML)))
	}

	for _, sel := range strippedSelectors {
		doc.Find(sel).Remove()
	}

	// doc.Text() concatenates adjacent text nodes without separators, which
	// glues words across element boundaries. Walk the nodes instead.
	var parts []string
	doc.Find("body, body *").Each(func(_ int, s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			}
		})
	})
	if len(parts) == 0 {
		// Fragment without a body element.
		return normalizeWhitespace(html.UnescapeString(stripTags(rawHTML)))
	}

	return normalizeWhitespace(html.UnescapeString(strings.Join(parts, " ")))
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return tagRe.ReplaceAllString(s, " ")
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Tokenize lowercases the text and extracts alphanumeric runs, dropping
// tokens shorter than 2 or longer than 50 characters.
func Tokenize(text string) []string {
	raw := tokenRe.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if len(t) >= minTokenLen && len(t) <= maxTokenLen {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// Stem reduces a token to its Porter stem.
func Stem(token string) string {
	return porterstemmer.StemString(token)
}

// Process runs the full pipeline: tokenize, drop stopwords, stem.
// Duplicates are preserved in order of appearance.
func Process(text string) []string {
	tokens := Tokenize(text)
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if stopwords[t] {
			continue
		}
		out = append(out, porterstemmer.StemString(t))
	}
	return out
}

// TermPositions maps each stemmed term to the ordinal positions (0-based,
// counted over the full tokenized sequence, stopwords included) at which it
// occurs. Keeping stopword slots in the numbering preserves the original
// word distances between surviving terms.
type TermPositions map[string][]int

// ProcessWithPositions runs the pipeline and records term positions for
// posting lists and snippet generation.
func ProcessWithPositions(text string) TermPositions {
	tokens := Tokenize(text)
	positions := make(TermPositions)
	for pos, t := range tokens {
		if stopwords[t] {
			continue
		}
		stem := porterstemmer.StemString(t)
		positions[stem] = append(positions[stem], pos)
	}
	return positions
}
