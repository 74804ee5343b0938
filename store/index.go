package store

import (
	"context"
	"math"

	"qnabot/types"
)

// VectorIndex stores embedding records grouped into named collections and
// answers nearest-neighbour queries over them.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string) error
	// Add upserts records keyed by (collection, ID).
	Add(ctx context.Context, collection string, records []types.Record) error
	Count(ctx context.Context, collection string) (int, error)
	// Query returns at most k matches ordered by ascending distance.
	// A missing or empty collection yields no matches and no error.
	Query(ctx context.Context, collection, text string, k int) ([]types.Match, error)
	ListCollections(ctx context.Context) ([]types.CollectionInfo, error)
	Close() error
}

// clampDistance maps d into [0,1]. NaN, as returned by <=> for a zero
// vector, is treated as the farthest distance.
func clampDistance(d float64) float64 {
	switch {
	case math.IsNaN(d):
		return 1
	case d < 0:
		return 0
	case d > 1:
		return 1
	default:
		return d
	}
}

func batches(records []types.Record, size int) [][]types.Record {
	if size <= 0 {
		size = len(records)
	}
	var out [][]types.Record
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}

func contents(records []types.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Content
	}
	return out
}
