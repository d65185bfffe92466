// Package vectorindex keeps per-project embedded chunks in memory and
// answers cosine similarity queries against them.
//
// Each project is a separate shard holding an immutable snapshot. Writers
// build a new snapshot under the shard's write lock and publish it with one
// atomic pointer swap; readers load the pointer and never block.
package vectorindex

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"rfprag/internal/domain"
	"rfprag/internal/port"
)

// Journal durably records index writes before they are published.
type Journal interface {
	Apply(projectID int64, deletes []string, puts []domain.EmbeddedChunk) error
}

type snapshot struct {
	entries map[string]domain.EmbeddedChunk
	byDoc   map[string][]string
}

var emptySnapshot = &snapshot{
	entries: map[string]domain.EmbeddedChunk{},
	byDoc:   map[string][]string{},
}

func (s *snapshot) clone() *snapshot {
	return &snapshot{
		entries: maps.Clone(s.entries),
		byDoc:   maps.Clone(s.byDoc),
	}
}

// without drops every chunk of documentID and returns the removed IDs.
func (s *snapshot) without(documentID string) []string {
	ids := s.byDoc[documentID]
	for _, id := range ids {
		delete(s.entries, id)
	}
	delete(s.byDoc, documentID)
	return ids
}

func (s *snapshot) put(ec domain.EmbeddedChunk) {
	id, doc := ec.Chunk.ID, ec.Chunk.DocumentID
	prev, ok := s.entries[id]
	switch {
	case ok && prev.Chunk.DocumentID == doc:
	case ok:
		rest := slices.DeleteFunc(slices.Clone(s.byDoc[prev.Chunk.DocumentID]), func(x string) bool { return x == id })
		if len(rest) == 0 {
			delete(s.byDoc, prev.Chunk.DocumentID)
		} else {
			s.byDoc[prev.Chunk.DocumentID] = rest
		}
		fallthrough
	default:
		s.byDoc[doc] = append(slices.Clone(s.byDoc[doc]), id)
	}
	s.entries[id] = ec
}

type shard struct {
	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

func (sh *shard) load() *snapshot {
	if s := sh.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Index is an in-memory, project-sharded vector index.
type Index struct {
	dimension int
	journal   Journal

	mu     sync.RWMutex
	shards map[int64]*shard
}

var _ port.VectorIndex = (*Index)(nil)

// New creates an index for vectors of the given dimension. journal may be
// nil for a purely in-memory index.
func New(dimension int, journal Journal) *Index {
	return &Index{
		dimension: dimension,
		journal:   journal,
		shards:    make(map[int64]*shard),
	}
}

// Restore publishes previously journaled chunks without writing them back.
func (x *Index) Restore(data map[int64][]domain.EmbeddedChunk) error {
	for projectID, chunks := range data {
		if err := x.validate(projectID, "", chunks); err != nil {
			return err
		}
		sh := x.shard(projectID, true)
		sh.writeMu.Lock()
		next := sh.load().clone()
		for _, ec := range chunks {
			next.put(ec)
		}
		sh.current.Store(next)
		sh.writeMu.Unlock()
	}
	return nil
}

func (x *Index) shard(projectID int64, create bool) *shard {
	x.mu.RLock()
	sh := x.shards[projectID]
	x.mu.RUnlock()
	if sh != nil || !create {
		return sh
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if sh = x.shards[projectID]; sh == nil {
		sh = &shard{}
		x.shards[projectID] = sh
	}
	return sh
}

func (x *Index) validate(projectID int64, documentID string, chunks []domain.EmbeddedChunk) error {
	for _, ec := range chunks {
		if ec.Chunk.ProjectID != projectID {
			return fmt.Errorf("%w: chunk %s belongs to project %d, not %d",
				domain.ErrInvalidInput, ec.Chunk.ID, ec.Chunk.ProjectID, projectID)
		}
		if documentID != "" && ec.Chunk.DocumentID != documentID {
			return fmt.Errorf("%w: chunk %s belongs to document %s, not %s",
				domain.ErrInvalidInput, ec.Chunk.ID, ec.Chunk.DocumentID, documentID)
		}
		if x.dimension > 0 && len(ec.Vector) != x.dimension {
			return fmt.Errorf("%w: chunk %s has dimension %d, expected %d",
				domain.ErrEmbeddingContractViolation, ec.Chunk.ID, len(ec.Vector), x.dimension)
		}
	}
	return nil
}

func (x *Index) persist(projectID int64, deletes []string, puts []domain.EmbeddedChunk) error {
	if x.journal == nil {
		return nil
	}
	if err := x.journal.Apply(projectID, deletes, puts); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexUnavailable, err)
	}
	return nil
}

func (x *Index) Upsert(ctx context.Context, projectID int64, chunks []domain.EmbeddedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := x.validate(projectID, "", chunks); err != nil {
		return err
	}

	sh := x.shard(projectID, true)
	sh.writeMu.Lock()
	defer sh.writeMu.Unlock()

	next := sh.load().clone()
	for _, ec := range chunks {
		next.put(ec)
	}
	if err := x.persist(projectID, nil, chunks); err != nil {
		return err
	}
	sh.current.Store(next)
	return nil
}

func (x *Index) DeleteByDocument(ctx context.Context, projectID int64, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sh := x.shard(projectID, false)
	if sh == nil {
		return 0, nil
	}
	sh.writeMu.Lock()
	defer sh.writeMu.Unlock()

	cur := sh.load()
	if len(cur.byDoc[documentID]) == 0 {
		return 0, nil
	}
	next := cur.clone()
	removed := next.without(documentID)
	if err := x.persist(projectID, removed, nil); err != nil {
		return 0, err
	}
	sh.current.Store(next)
	return len(removed), nil
}

func (x *Index) ReplaceDocument(ctx context.Context, projectID int64, documentID string, chunks []domain.EmbeddedChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := x.validate(projectID, documentID, chunks); err != nil {
		return err
	}

	sh := x.shard(projectID, true)
	sh.writeMu.Lock()
	defer sh.writeMu.Unlock()

	next := sh.load().clone()
	removed := next.without(documentID)
	for _, ec := range chunks {
		next.put(ec)
	}
	if err := x.persist(projectID, removed, chunks); err != nil {
		return err
	}
	sh.current.Store(next)
	return nil
}

func (x *Index) Search(ctx context.Context, projectID int64, query []float32, k int) ([]domain.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if x.dimension > 0 && len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, expected %d",
			domain.ErrEmbeddingContractViolation, len(query), x.dimension)
	}
	sh := x.shard(projectID, false)
	if sh == nil || k <= 0 {
		return nil, nil
	}

	snap := sh.load()
	if len(snap.entries) == 0 {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(snap.entries))
	for _, ec := range snap.entries {
		scored = append(scored, domain.ScoredChunk{
			Chunk: ec.Chunk,
			Score: cosineSimilarity(query, ec.Vector),
		})
	}

	slices.SortFunc(scored, func(a, b domain.ScoredChunk) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.ID, b.Chunk.ID)
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Documents lists the indexed document IDs of a project in sorted order.
func (x *Index) Documents(projectID int64) []string {
	sh := x.shard(projectID, false)
	if sh == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(sh.load().byDoc))
}

func (x *Index) Stats(projectID int64) domain.IndexStats {
	stats := domain.IndexStats{ProjectID: projectID}
	if sh := x.shard(projectID, false); sh != nil {
		snap := sh.load()
		stats.Documents = len(snap.byDoc)
		stats.Chunks = len(snap.entries)
	}
	return stats
}

// Projects lists every project with at least one indexed chunk.
func (x *Index) Projects() []int64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var ids []int64
	for id, sh := range x.shards {
		if len(sh.load().entries) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Count returns the number of chunks indexed for a project.
func (x *Index) Count(projectID int64) int {
	return x.Stats(projectID).Chunks
}
