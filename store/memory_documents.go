package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"qnabot/types"
)

// MemoryDocumentStore is a DocumentStorer for runs without Postgres.
type MemoryDocumentStore struct {
	mu       sync.RWMutex
	docs     map[uuid.UUID]types.Document
	versions map[uuid.UUID][]types.DocumentVersion
	now      func() time.Time
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs:     make(map[uuid.UUID]types.Document),
		versions: make(map[uuid.UUID][]types.DocumentVersion),
		now:      time.Now,
	}
}

func (s *MemoryDocumentStore) AddDocument(_ context.Context, doc *types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Version = 1
	doc.UploadedAt = s.now().UTC()
	doc.IsDeleted = false
	s.docs[doc.ID] = *doc
	s.versions[doc.ID] = append(s.versions[doc.ID], types.DocumentVersion{
		DocID:      doc.ID,
		Version:    doc.Version,
		FilePath:   doc.FilePath,
		UploadedAt: doc.UploadedAt,
	})
	return nil
}

func (s *MemoryDocumentStore) GetDocument(_ context.Context, id uuid.UUID) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok || doc.IsDeleted {
		return nil, types.ErrDocumentNotFound
	}
	return &doc, nil
}

func (s *MemoryDocumentStore) ListDocuments(_ context.Context, f types.DocumentFilter) ([]types.Document, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	s.mu.RLock()
	docs := []types.Document{}
	for _, d := range s.docs {
		if d.IsDeleted || (f.Category != "" && d.Category != f.Category) {
			continue
		}
		docs = append(docs, d)
	}
	s.mu.RUnlock()

	slices.SortFunc(docs, func(a, b types.Document) int {
		return b.UploadedAt.Compare(a.UploadedAt)
	})
	if f.Offset >= len(docs) {
		return []types.Document{}, nil
	}
	docs = docs[f.Offset:]
	return docs[:min(f.Limit, len(docs))], nil
}

func (s *MemoryDocumentStore) UpdateDocument(_ context.Context, id uuid.UUID, params types.UpdateDocumentParams) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.IsDeleted {
		return nil, types.ErrDocumentNotFound
	}
	if params.Title != nil {
		doc.Title = *params.Title
	}
	if params.Description != nil {
		doc.Description = *params.Description
	}
	if params.Category != nil {
		doc.Category = *params.Category
	}
	s.docs[id] = doc
	return &doc, nil
}

func (s *MemoryDocumentStore) DeleteDocument(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.IsDeleted {
		return types.ErrDocumentNotFound
	}
	doc.IsDeleted = true
	s.docs[id] = doc
	return nil
}

func (s *MemoryDocumentStore) GetDocumentVersions(_ context.Context, id uuid.UUID) ([]types.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	versions := slices.Clone(s.versions[id])
	slices.SortFunc(versions, func(a, b types.DocumentVersion) int {
		return cmp.Compare(b.Version, a.Version)
	})
	if versions == nil {
		versions = []types.DocumentVersion{}
	}
	return versions, nil
}

func (s *MemoryDocumentStore) GetDocumentStats(_ context.Context) (*types.DocumentStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &types.DocumentStats{DocumentsByType: map[string]int{}}
	for _, d := range s.docs {
		if d.IsDeleted {
			continue
		}
		stats.TotalDocuments++
		stats.DocumentsByType[d.FileType]++
		stats.TotalSizeBytes += d.FileSize
	}
	stats.TotalSizeMB = toMB(stats.TotalSizeBytes)
	return stats, nil
}
