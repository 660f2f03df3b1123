package chroma

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mhxia/finsight/internal/core/domain"
)

// MemoryIndex is a process-local stand-in for the Chroma-backed index, used
// in development mode and tests. Ranking matches the server: cosine
// similarity, best first.
type MemoryIndex struct {
	mu       sync.RWMutex
	channels map[domain.Channel][]memoryEntry
}

type memoryEntry struct {
	doc    domain.Document
	vector []float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		channels: make(map[domain.Channel][]memoryEntry),
	}
}

func (m *MemoryIndex) Add(_ context.Context, channel domain.Channel, docs []domain.Document, vectors [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(vectors) {
		return fmt.Errorf("docs/vectors mismatch: %d/%d", len(docs), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, doc := range docs {
		stored := doc
		stored.Metadata = doc.Metadata.Clone()
		m.channels[channel] = append(m.channels[channel], memoryEntry{
			doc:    stored,
			vector: vectors[i],
		})
	}
	return nil
}

func (m *MemoryIndex) Query(_ context.Context, channel domain.Channel, vector []float32, limit int) ([]domain.ScoredDocument, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	entries := m.channels[channel]
	hits := make([]domain.ScoredDocument, 0, len(entries))
	for _, entry := range entries {
		hits = append(hits, domain.ScoredDocument{
			Document:   entry.doc,
			Similarity: cosineSimilarity(vector, entry.vector),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryIndex) Count(_ context.Context, channel domain.Channel) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.channels[channel]), nil
}

func (m *MemoryIndex) DeleteByFilename(_ context.Context, channel domain.Channel, filename string) error {
	if filename == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.channels[channel]
	kept := entries[:0]
	for _, entry := range entries {
		if entry.doc.Metadata.String(domain.MetaSourceFile) != filename {
			kept = append(kept, entry)
		}
	}
	m.channels[channel] = kept
	return nil
}

func (m *MemoryIndex) Reset(_ context.Context, channel domain.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, channel)
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
