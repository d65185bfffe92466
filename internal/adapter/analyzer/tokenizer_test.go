package analyzer

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTokenizer_Terms(t *testing.T) {
	tok := NewTokenizer()

	terms := tok.Terms("The vendor shall provide 24x7 support")
	want := []string{"vendor", "provide", "24x7", "support"}
	if len(terms) != len(want) {
		t.Fatalf("expected %v, got %v", want, terms)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("term %d: expected %q, got %q", i, want[i], terms[i])
		}
	}
}

func TestTokenizer_ShortWordRemoval(t *testing.T) {
	tok := NewTokenizer()

	terms := tok.Terms("a I go to")
	for _, term := range terms {
		if len(term) < 2 {
			t.Errorf("short word should be removed: %s", term)
		}
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		input    string
		expected int
	}{
		{"", 0},
		{"   \n\t ", 0},
		{"hello world", 2},
		{"hello,   world.\n\nNext paragraph!", 4},
		{"func(x, y)", 2},
	}

	for _, tt := range tests {
		if got := tok.CountTokens(tt.input); got != tt.expected {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}

func TestTokenizer_SpansMatchCount(t *testing.T) {
	tok := NewTokenizer()
	text := "  Section 1.\nThe  contractor shall\tcomply. "

	spans := tok.Spans(text)
	if len(spans) != tok.CountTokens(text) {
		t.Fatalf("expected %d spans, got %d", tok.CountTokens(text), len(spans))
	}
	if got := text[spans[0].Start:spans[0].End]; got != "Section" {
		t.Errorf("expected first span 'Section', got %q", got)
	}
	last := spans[len(spans)-1]
	if got := text[last.Start:last.End]; got != "comply." {
		t.Errorf("expected last span 'comply.', got %q", got)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 1},
		{"hello-world", 2},
		{"func(x, y)", 3},
		{"CamelCase", 1},
		{"123numbers456", 1},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}

func TestTokenizer_LongRunsAreCut(t *testing.T) {
	tok := NewTokenizer()
	blob := strings.Repeat("QUJD", 250)
	text := "attachment " + blob + " end"

	spans := tok.Spans(text)
	want := 2 + (len(blob)+MaxTokenBytes-1)/MaxTokenBytes
	if len(spans) != want {
		t.Fatalf("expected %d spans, got %d", want, len(spans))
	}
	if got := tok.CountTokens(text); got != len(spans) {
		t.Errorf("CountTokens = %d, want %d", got, len(spans))
	}
	var rebuilt strings.Builder
	for _, sp := range spans[1 : len(spans)-1] {
		if sp.End-sp.Start > MaxTokenBytes {
			t.Errorf("span %v longer than %d bytes", sp, MaxTokenBytes)
		}
		rebuilt.WriteString(text[sp.Start:sp.End])
	}
	if rebuilt.String() != blob {
		t.Error("cut spans do not reassemble the original run")
	}
}

func TestTokenizer_LongRunsCutOnRuneBoundaries(t *testing.T) {
	tok := NewTokenizer()
	text := strings.Repeat("é", 100)

	spans := tok.Spans(text)
	if len(spans) < 2 {
		t.Fatalf("expected the run to be cut, got %d spans", len(spans))
	}
	for _, sp := range spans {
		if !utf8.ValidString(text[sp.Start:sp.End]) {
			t.Errorf("span %v splits a rune", sp)
		}
	}
	if spans[len(spans)-1].End != len(text) {
		t.Error("last span should end at the end of text")
	}
}
