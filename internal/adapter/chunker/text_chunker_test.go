package chunker

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"rfprag/internal/adapter/analyzer"
	"rfprag/internal/domain"
	"rfprag/internal/port"
)

var testDoc = port.DocumentRef{ProjectID: 1, DocumentID: "doc1"}

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func collect(c *TextChunker, text string) []domain.Chunk {
	return slices.Collect(c.Chunks(testDoc, text))
}

func TestTextChunkerEmptyContent(t *testing.T) {
	c := NewTextChunker(50, 10, analyzer.NewTokenizer())

	for _, text := range []string{"", "   ", "\n\n\t"} {
		if chunks := collect(c, text); len(chunks) != 0 {
			t.Errorf("expected no chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestTextChunkerSingleChunk(t *testing.T) {
	c := NewTextChunker(50, 10, analyzer.NewTokenizer())

	chunks := collect(c, "  The vendor shall provide support.  ")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	ch := chunks[0]
	if ch.Text != "The vendor shall provide support." {
		t.Errorf("unexpected text %q", ch.Text)
	}
	if ch.TokenCount != 5 {
		t.Errorf("expected 5 tokens, got %d", ch.TokenCount)
	}
	if ch.OffsetStart != 2 || ch.OffsetEnd != 35 {
		t.Errorf("unexpected offsets %d-%d", ch.OffsetStart, ch.OffsetEnd)
	}
	if ch.ProjectID != 1 || ch.DocumentID != "doc1" || ch.Sequence != 0 {
		t.Errorf("unexpected ownership %+v", ch)
	}
}

func TestTextChunkerRespectsMaxTokens(t *testing.T) {
	tok := analyzer.NewTokenizer()
	c := NewTextChunker(30, 5, tok)

	text := words("w", 100)
	chunks := collect(c, text)

	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.TokenCount > 30 {
			t.Errorf("chunk %d has %d tokens", i, ch.TokenCount)
		}
		if got := tok.CountTokens(ch.Text); got != ch.TokenCount {
			t.Errorf("chunk %d: TokenCount %d but text has %d tokens", i, ch.TokenCount, got)
		}
		if text[ch.OffsetStart:ch.OffsetEnd] != ch.Text {
			t.Errorf("chunk %d: offsets do not address its text", i)
		}
		if ch.Sequence != i {
			t.Errorf("chunk %d has sequence %d", i, ch.Sequence)
		}
	}
	if !strings.HasSuffix(chunks[len(chunks)-1].Text, "w99") {
		t.Error("last chunk does not reach the end of the text")
	}
}

func TestTextChunkerOverlap(t *testing.T) {
	c := NewTextChunker(20, 4, analyzer.NewTokenizer())

	chunks := collect(c, words("t", 70))
	if len(chunks) < 2 {
		t.Fatal("need at least 2 chunks to test overlap")
	}

	for i := 0; i < len(chunks)-1; i++ {
		cur := strings.Fields(chunks[i].Text)
		next := strings.Fields(chunks[i+1].Text)
		tail := strings.Join(cur[len(cur)-4:], " ")
		head := strings.Join(next[:4], " ")
		if tail != head {
			t.Errorf("chunk %d tail %q does not match chunk %d head %q", i, tail, i+1, head)
		}
	}
}

func TestTextChunkerPrefersParagraphs(t *testing.T) {
	c := NewTextChunker(25, 0, analyzer.NewTokenizer())

	text := words("a", 10) + "\n\n" + words("b", 10) + "\n\n" + words("c", 10)
	chunks := collect(c, text)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].TokenCount != 20 || !strings.HasSuffix(chunks[0].Text, "b9") {
		t.Errorf("expected first chunk to end at second paragraph, got %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, "c0") {
		t.Errorf("expected second chunk to start at third paragraph, got %q", chunks[1].Text)
	}
}

func TestTextChunkerPrefersSentences(t *testing.T) {
	c := NewTextChunker(12, 0, analyzer.NewTokenizer())

	text := "One two three four five six seven eight. Nine ten eleven twelve thirteen fourteen."
	chunks := collect(c, text)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "One two three four five six seven eight." {
		t.Errorf("expected cut at sentence end, got %q", chunks[0].Text)
	}
}

func TestTextChunkerDeterministic(t *testing.T) {
	c := NewTextChunker(16, 3, analyzer.NewTokenizer())
	text := "Scope of work. " + words("x", 40) + ".\n\nEvaluation criteria follow. " + words("y", 25)

	first := collect(c, text)
	second := collect(NewTextChunker(16, 3, analyzer.NewTokenizer()), text)

	if !slices.Equal(first, second) {
		t.Fatal("same input produced different chunk sequences")
	}

	seq := c.Chunks(testDoc, text)
	again := slices.Collect(seq)
	if !slices.Equal(first, again) {
		t.Fatal("ranging over the sequence twice produced different chunks")
	}
}

func TestTextChunkerStopsEarly(t *testing.T) {
	c := NewTextChunker(10, 2, analyzer.NewTokenizer())

	n := 0
	for range c.Chunks(testDoc, words("z", 200)) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("expected to stop after 3 chunks, got %d", n)
	}
}

func TestTextChunkerUniqueIDs(t *testing.T) {
	c := NewTextChunker(10, 2, analyzer.NewTokenizer())

	seen := make(map[string]bool)
	for ch := range c.Chunks(testDoc, words("id", 80)) {
		if seen[ch.ID] {
			t.Fatalf("duplicate chunk id %s", ch.ID)
		}
		seen[ch.ID] = true
	}

	other := port.DocumentRef{ProjectID: 2, DocumentID: "doc1"}
	for ch := range c.Chunks(other, words("id", 80)) {
		if seen[ch.ID] {
			t.Fatalf("chunk id %s collides across projects", ch.ID)
		}
	}
}

func TestNewTextChunkerClampsOverlap(t *testing.T) {
	c := NewTextChunker(8, 8, analyzer.NewTokenizer())
	if c.Overlap() != 2 {
		t.Errorf("expected overlap clamped to 2, got %d", c.Overlap())
	}

	c = NewTextChunker(0, -1, analyzer.NewTokenizer())
	if c.MaxTokens() != DefaultMaxTokens || c.Overlap() != 0 {
		t.Errorf("unexpected defaults: max=%d overlap=%d", c.MaxTokens(), c.Overlap())
	}
}
