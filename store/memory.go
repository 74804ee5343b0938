package store

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"sync"

	"qnabot/model"
	"qnabot/types"
)

type memoryItem struct {
	record types.Record
	vector []float32
}

type memoryCollection struct {
	order []string
	items map[string]memoryItem
}

// MemoryIndex is a brute-force cosine VectorIndex kept in process memory.
type MemoryIndex struct {
	mu          sync.RWMutex
	embedder    model.Embedder
	batchSize   int
	collections map[string]*memoryCollection
	logger      *slog.Logger
}

func NewMemoryIndex(embedder model.Embedder, batchSize int) *MemoryIndex {
	return &MemoryIndex{
		embedder:    embedder,
		batchSize:   batchSize,
		collections: make(map[string]*memoryCollection),
		logger:      slog.Default(),
	}
}

func (m *MemoryIndex) EnsureCollection(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(name)
	return nil
}

func (m *MemoryIndex) ensure(name string) *memoryCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{items: make(map[string]memoryItem)}
		m.collections[name] = c
	}
	return c
}

func (m *MemoryIndex) Add(ctx context.Context, collection string, records []types.Record) error {
	for n, group := range batches(records, m.batchSize) {
		vectors, err := m.embedder.Embed(ctx, contents(group))
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", n, err)
		}
		if len(vectors) != len(group) {
			return fmt.Errorf("embedder returned %d vectors for %d records", len(vectors), len(group))
		}

		m.mu.Lock()
		c := m.ensure(collection)
		for i, rec := range group {
			if _, exists := c.items[rec.ID]; !exists {
				c.order = append(c.order, rec.ID)
			}
			c.items[rec.ID] = memoryItem{record: rec, vector: vectors[i]}
		}
		m.mu.Unlock()
		m.logger.Debug("stored embedding batch", "collection", collection, "batch", n, "records", len(group))
	}
	return nil
}

func (m *MemoryIndex) Count(_ context.Context, collection string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}
	return len(c.items), nil
}

func (m *MemoryIndex) Query(ctx context.Context, collection, text string, k int) ([]types.Match, error) {
	total, _ := m.Count(ctx, collection)
	if k <= 0 || total == 0 {
		return nil, nil
	}

	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	query := vectors[0]

	m.mu.RLock()
	c := m.collections[collection]
	matches := make([]types.Match, 0, len(c.items))
	for _, id := range c.order {
		item := c.items[id]
		matches = append(matches, types.Match{
			ID:       id,
			Content:  item.record.Content,
			Metadata: item.record.Metadata,
			Distance: clampDistance(1 - cosine(query, item.vector)),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches[:min(k, len(matches))], nil
}

func (m *MemoryIndex) ListCollections(_ context.Context) ([]types.CollectionInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.CollectionInfo, 0, len(m.collections))
	for name, c := range m.collections {
		out = append(out, types.CollectionInfo{Name: name, Count: len(c.items)})
	}
	slices.SortFunc(out, func(a, b types.CollectionInfo) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (m *MemoryIndex) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
