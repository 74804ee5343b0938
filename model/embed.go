// Package model provides the text embedders used by the vector index.
package model

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"qnabot/config"
)

// Embedder turns texts into vectors of a fixed dimension.
// The result has one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// NewEmbedder builds the embedder selected by cfg.Type.
func NewEmbedder(cfg config.EmbedderConfig, llm config.LLMConfig) (Embedder, error) {
	switch cfg.Type {
	case "openai":
		slog.Info("using OpenAI embeddings", "model", cfg.Model, "dim", cfg.Dimension)
		return NewOpenAIEmbedder(llm.APIKey, llm.BaseURL, cfg.Model, cfg.Dimension), nil
	case "ollama":
		slog.Info("using local Ollama embeddings", "model", cfg.OllamaModel, "dim", cfg.Dimension)
		return NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaModel, cfg.Dimension), nil
	case "hash":
		slog.Info("using offline hash embeddings", "dim", cfg.Dimension)
		return NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Type)
	}
}

func normalize(vec []float64) []float32 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, x := range vec {
		if norm == 0 {
			out[i] = float32(x)
			continue
		}
		out[i] = float32(x / norm)
	}
	return out
}
