package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qnabot/model"
	"qnabot/types"
)

type countingEmbedder struct {
	*model.HashEmbedder
	calls []int
}

func (e *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, len(texts))
	return e.HashEmbedder.Embed(ctx, texts)
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) Dimension() int { return 8 }

func record(id, content string) types.Record {
	return types.Record{ID: id, Content: content, Metadata: types.ChunkMetadata{Filename: id}}
}

func TestMemoryIndex_AddAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(model.NewHashEmbedder(256), 100)

	require.NoError(t, idx.Add(ctx, "documents", []types.Record{
		record("france.txt_0", "Paris is the capital of France."),
		record("planes.txt_0", "Airplanes fly because wings generate lift."),
	}))

	matches, err := idx.Query(ctx, "documents", "What is the capital of France?", 5)
	require.NoError(t, err)
	require.Len(t, matches, 2, "k is clamped to the collection size")
	assert.Equal(t, "france.txt_0", matches[0].ID)
	assert.LessOrEqual(t, matches[0].Distance, matches[1].Distance)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Distance, 0.0)
		assert.LessOrEqual(t, m.Distance, 1.0)
	}
	assert.Equal(t, "france.txt_0", matches[0].Metadata.Filename)
}

func TestMemoryIndex_EmptyAndMissing(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(failingEmbedder{}, 100)

	matches, err := idx.Query(ctx, "nope", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, idx.EnsureCollection(ctx, "empty"))
	matches, err = idx.Query(ctx, "empty", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	n, err := idx.Count(ctx, "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryIndex_UpsertAndBatches(t *testing.T) {
	ctx := context.Background()
	emb := &countingEmbedder{HashEmbedder: model.NewHashEmbedder(64)}
	idx := NewMemoryIndex(emb, 100)

	records := make([]types.Record, 250)
	for i := range records {
		records[i] = record(fmt.Sprintf("big.txt_%d", i), fmt.Sprintf("chunk number %d", i))
	}
	require.NoError(t, idx.Add(ctx, "documents", records))
	assert.Equal(t, []int{100, 100, 50}, emb.calls)

	require.NoError(t, idx.Add(ctx, "documents", records[:10]))
	n, err := idx.Count(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, 250, n, "re-adding the same ids does not duplicate")
}

func TestMemoryIndex_AddError(t *testing.T) {
	idx := NewMemoryIndex(failingEmbedder{}, 100)
	err := idx.Add(context.Background(), "documents", []types.Record{record("a_0", "a")})
	assert.ErrorContains(t, err, "embedding service down")
}

func TestMemoryIndex_ListCollections(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(model.NewHashEmbedder(32), 10)
	require.NoError(t, idx.EnsureCollection(ctx, "zeta"))
	require.NoError(t, idx.Add(ctx, "alpha", []types.Record{record("a_0", "a"), record("a_1", "b")}))

	cols, err := idx.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.CollectionInfo{{Name: "alpha", Count: 2}, {Name: "zeta", Count: 0}}, cols)
}

func TestBatches(t *testing.T) {
	recs := make([]types.Record, 5)
	assert.Len(t, batches(recs, 2), 3)
	assert.Len(t, batches(recs, 0), 1)
	assert.Empty(t, batches(nil, 2))
}

func TestClampDistance(t *testing.T) {
	assert.Equal(t, 0.0, clampDistance(-0.1))
	assert.Equal(t, 1.0, clampDistance(1.7))
	assert.Equal(t, 0.4, clampDistance(0.4))
	assert.Equal(t, 1.0, clampDistance(math.NaN()))
}

func TestEfSearch(t *testing.T) {
	assert.Equal(t, 100, efSearch(1))
	assert.Equal(t, 200, efSearch(20))
	assert.Equal(t, 1000, efSearch(500))
}
