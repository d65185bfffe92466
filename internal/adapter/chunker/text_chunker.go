package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"strings"

	"rfprag/internal/adapter/analyzer"
	"rfprag/internal/domain"
	"rfprag/internal/port"
)

const (
	DefaultMaxTokens     = 256
	DefaultOverlapTokens = 48
)

type boundary int

const (
	boundaryNone boundary = iota
	boundarySentence
	boundaryParagraph
)

// TextChunker splits prose into overlapping token-bounded chunks, cutting at
// paragraph ends first, sentence ends second and at a hard token boundary
// only when a single sentence does not fit.
type TextChunker struct {
	maxTokens int
	overlap   int
	tokenizer *analyzer.Tokenizer
}

var _ port.Chunker = (*TextChunker)(nil)

func NewTextChunker(maxTokens, overlap int, tokenizer *analyzer.Tokenizer) *TextChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxTokens {
		overlap = maxTokens / 4
	}
	return &TextChunker{
		maxTokens: maxTokens,
		overlap:   overlap,
		tokenizer: tokenizer,
	}
}

func (c *TextChunker) MaxTokens() int {
	return c.maxTokens
}

func (c *TextChunker) Overlap() int {
	return c.overlap
}

// Chunks returns a lazy sequence over the chunks of text. Nothing is computed
// until the sequence is ranged over, and every range starts from scratch.
func (c *TextChunker) Chunks(doc port.DocumentRef, text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		spans := c.tokenizer.Spans(text)
		n := len(spans)
		if n == 0 {
			return
		}
		bounds := classifyBoundaries(text, spans)

		start, seq := 0, 0
		for start < n {
			end := c.cutPoint(bounds, start, n)

			offStart, offEnd := spans[start].Start, spans[end-1].End
			chunk := domain.Chunk{
				ID:          chunkID(doc, seq, offStart, offEnd),
				DocumentID:  doc.DocumentID,
				ProjectID:   doc.ProjectID,
				Sequence:    seq,
				Text:        text[offStart:offEnd],
				TokenCount:  end - start,
				OffsetStart: offStart,
				OffsetEnd:   offEnd,
			}
			if !yield(chunk) {
				return
			}

			if end == n {
				return
			}
			start = end - c.overlap
			seq++
		}
	}
}

// cutPoint returns the exclusive token index the chunk starting at start
// should end at.
func (c *TextChunker) cutPoint(bounds []boundary, start, n int) int {
	limit := start + c.maxTokens
	if limit >= n {
		return n
	}

	// A boundary cut must leave room to advance past the overlap and should
	// not produce a sliver of a chunk.
	minEnd := start + c.overlap + 1
	if half := start + c.maxTokens/2; half > minEnd {
		minEnd = half
	}

	sentenceEnd := 0
	for end := limit; end >= minEnd; end-- {
		switch bounds[end-1] {
		case boundaryParagraph:
			return end
		case boundarySentence:
			if sentenceEnd == 0 {
				sentenceEnd = end
			}
		}
	}
	if sentenceEnd > 0 {
		return sentenceEnd
	}
	return limit
}

// classifyBoundaries reports, for every token, what kind of break follows it.
func classifyBoundaries(text string, spans []analyzer.Span) []boundary {
	bounds := make([]boundary, len(spans))
	for i, sp := range spans {
		if i == len(spans)-1 {
			bounds[i] = boundaryParagraph
			break
		}
		gap := text[sp.End:spans[i+1].Start]
		switch {
		case strings.Count(gap, "\n") >= 2:
			bounds[i] = boundaryParagraph
		case gap != "" && endsSentence(text[sp.Start:sp.End]):
			bounds[i] = boundarySentence
		}
	}
	return bounds
}

func endsSentence(token string) bool {
	token = strings.TrimRight(token, `"')]”’`)
	if token == "" {
		return false
	}
	switch token[len(token)-1] {
	case '.', '!', '?', ':', ';':
		return true
	}
	return false
}

func chunkID(doc port.DocumentRef, seq, start, end int) string {
	data := fmt.Sprintf("%d:%s:%d:%d-%d", doc.ProjectID, doc.DocumentID, seq, start, end)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
