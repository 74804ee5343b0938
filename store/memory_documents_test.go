package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qnabot/types"
)

func TestMemoryDocumentStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDocumentStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	guide := &types.Document{Filename: "a.pdf", OriginalFilename: "guide.pdf", FileType: ".pdf", FileSize: 2 * 1024 * 1024, Category: "hr"}
	notes := &types.Document{Filename: "b.txt", OriginalFilename: "notes.txt", FileType: ".txt", FileSize: 1024}
	require.NoError(t, s.AddDocument(ctx, guide))
	require.NoError(t, s.AddDocument(ctx, notes))
	assert.NotEqual(t, uuid.Nil, guide.ID)
	assert.Equal(t, 1, guide.Version)

	t.Run("get", func(t *testing.T) {
		doc, err := s.GetDocument(ctx, guide.ID)
		require.NoError(t, err)
		assert.Equal(t, "guide.pdf", doc.OriginalFilename)

		_, err = s.GetDocument(ctx, uuid.New())
		assert.ErrorIs(t, err, types.ErrDocumentNotFound)
	})

	t.Run("list newest first and filter", func(t *testing.T) {
		docs, err := s.ListDocuments(ctx, types.DocumentFilter{})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, notes.ID, docs[0].ID)

		docs, err = s.ListDocuments(ctx, types.DocumentFilter{Category: "hr"})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, guide.ID, docs[0].ID)

		docs, err = s.ListDocuments(ctx, types.DocumentFilter{Offset: 5})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("update", func(t *testing.T) {
		title := "Employee Guide"
		doc, err := s.UpdateDocument(ctx, guide.ID, types.UpdateDocumentParams{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Employee Guide", doc.Title)
		assert.Equal(t, "hr", doc.Category)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := s.GetDocumentStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalDocuments)
		assert.Equal(t, map[string]int{".pdf": 1, ".txt": 1}, stats.DocumentsByType)
		assert.Equal(t, int64(2*1024*1024+1024), stats.TotalSizeBytes)
		assert.Equal(t, 2.0, stats.TotalSizeMB)
	})

	t.Run("versions", func(t *testing.T) {
		versions, err := s.GetDocumentVersions(ctx, guide.ID)
		require.NoError(t, err)
		require.Len(t, versions, 1)
		assert.Equal(t, 1, versions[0].Version)
	})

	t.Run("soft delete hides the document", func(t *testing.T) {
		require.NoError(t, s.DeleteDocument(ctx, notes.ID))
		_, err := s.GetDocument(ctx, notes.ID)
		assert.ErrorIs(t, err, types.ErrDocumentNotFound)
		assert.ErrorIs(t, s.DeleteDocument(ctx, notes.ID), types.ErrDocumentNotFound)

		stats, err := s.GetDocumentStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.TotalDocuments)
	})
}
