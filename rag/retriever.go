// Package rag answers questions from the vector index: retrieve fragments,
// build a prompt, generate, and post-process the answer.
package rag

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"qnabot/types"
)

// Index is the read side of the vector index.
type Index interface {
	Query(ctx context.Context, collection, text string, k int) ([]types.Match, error)
}

const DefaultTopK = 5

type Retriever struct {
	index     Index
	topK      int
	threshold float64
	logger    *slog.Logger
}

// NewRetriever returns a Retriever keeping at most topK fragments whose
// relevance is at least threshold. A zero threshold keeps everything.
func NewRetriever(index Index, topK int, threshold float64) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Retriever{
		index:     index,
		topK:      topK,
		threshold: threshold,
		logger:    slog.Default(),
	}
}

// Retrieve returns fragments sorted by descending relevance. An unavailable
// index or a missing collection yields no fragments.
func (r *Retriever) Retrieve(ctx context.Context, query, collection string) []types.Fragment {
	if collection == "" {
		collection = types.DefaultCollection
	}

	matches, err := r.index.Query(ctx, collection, query, r.topK)
	if err != nil {
		r.logger.Warn("vector index query failed, treating as no knowledge", "collection", collection, "error", err)
		return nil
	}

	fragments := make([]types.Fragment, 0, len(matches))
	for _, m := range matches {
		rel := Relevance(m.Distance)
		if rel < r.threshold {
			r.logger.Debug("fragment below threshold", "id", m.ID, "relevance", rel)
			continue
		}
		fragments = append(fragments, types.Fragment{
			Content:   m.Content,
			Metadata:  m.Metadata,
			Relevance: rel,
		})
	}

	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].Relevance > fragments[j].Relevance
	})
	r.logger.Debug("retrieved fragments", "collection", collection, "matches", len(matches), "kept", len(fragments))
	return fragments
}

// Relevance converts a cosine distance in [0,1] into a score in [0,1].
func Relevance(distance float64) float64 {
	rel := 1 - distance
	switch {
	case math.IsNaN(rel), rel < 0:
		return 0
	case rel > 1:
		return 1
	default:
		return rel
	}
}
