package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a token's byte range within the text it was read from.
type Span struct {
	Start int
	End   int
}

// Tokenizer counts budget tokens and extracts normalised terms.
//
// A budget token is a maximal run of non-space runes, cut every
// MaxTokenBytes bytes so unbroken runs such as base64 blobs or long URLs
// are not counted as a single token. Counting this way is exact and stable
// under slicing at token boundaries, which chunking and context packing
// rely on.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// MaxTokenBytes is the longest budget token; longer runs are cut on rune
// boundaries.
const MaxTokenBytes = 32

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
	}
}

// Spans returns the byte ranges of every budget token in text.
func (t *Tokenizer) Spans(text string) []Span {
	var spans []Span
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		if i+utf8.RuneLen(r)-start > MaxTokenBytes {
			spans = append(spans, Span{Start: start, End: i})
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text)})
	}
	return spans
}

// CountTokens returns the number of budget tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Spans(text))
}

// Terms splits text into lowercased words with stopwords and single
// characters removed.
func (t *Tokenizer) Terms(text string) []string {
	words := splitWords(text)
	terms := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		terms = append(terms, word)
	}

	return terms
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
