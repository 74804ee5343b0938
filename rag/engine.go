package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"qnabot/types"
)

// Generator produces the raw model answer for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt Prompt) (string, error)
}

type EngineConfig struct {
	TopK                  int
	RelevanceThreshold    float64
	SkipGenerationOnEmpty bool
	CitationPolicy        types.CitationPolicy
	QueryTimeout          time.Duration
	GenerationTimeout     time.Duration
	Classifier            Classifier
}

// Engine runs the retrieve, prompt, generate and post-process pipeline.
// It holds no per-question state and is safe for concurrent use.
type Engine struct {
	retriever *Retriever
	builder   *PromptBuilder
	generator Generator
	post      *PostProcessor
	cfg       EngineConfig
	logger    *slog.Logger
}

// NewEngine pairs the prompt builder and post-processor on one citation policy.
func NewEngine(index Index, generator Generator, cfg EngineConfig) *Engine {
	if cfg.CitationPolicy == "" {
		cfg.CitationPolicy = types.CitationSilent
	}
	return &Engine{
		retriever: NewRetriever(index, cfg.TopK, cfg.RelevanceThreshold),
		builder:   NewPromptBuilder(cfg.CitationPolicy),
		generator: generator,
		post:      NewPostProcessor(cfg.CitationPolicy, cfg.Classifier),
		cfg:       cfg,
		logger:    slog.Default(),
	}
}

// AnswerQuestion never returns an error: every failure, including a panic,
// becomes a result with StatusError.
func (e *Engine) AnswerQuestion(ctx context.Context, question, collection string) (res types.AnswerResult) {
	if collection == "" {
		collection = types.DefaultCollection
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic while answering question", "collection", collection, "panic", r)
			res = types.AnswerResult{
				Answer:  "An unexpected error occurred while processing your question.",
				Status:  types.StatusError,
				Sources: []string{},
			}
		}
		e.logger.Info("question answered", "collection", collection, "status", res.Status,
			"sources", len(res.Sources), "took", time.Since(start))
	}()

	fragments := e.retrieve(ctx, question, collection)
	if len(fragments) == 0 && e.cfg.SkipGenerationOnEmpty {
		return types.AnswerResult{Answer: NoInformationAnswer, Status: types.StatusSuccess, Sources: []string{}}
	}

	prompt := e.builder.Build(fragments, question)
	raw, err := e.generate(ctx, prompt)
	if err != nil {
		e.logger.Error("generation failed", "collection", collection, "error", err)
		return types.AnswerResult{
			Answer:  fmt.Sprintf("Error generating answer: %v", err),
			Status:  types.StatusError,
			Sources: []string{},
		}
	}
	return e.post.Finalize(raw, fragments)
}

func (e *Engine) retrieve(ctx context.Context, question, collection string) []types.Fragment {
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}
	return e.retriever.Retrieve(ctx, question, collection)
}

func (e *Engine) generate(ctx context.Context, prompt Prompt) (string, error) {
	if e.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.GenerationTimeout)
		defer cancel()
	}
	return e.generator.Generate(ctx, prompt)
}
