// Package agent calls the chat completion model that writes answers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/pkoukk/tiktoken-go"

	"qnabot/config"
	"qnabot/rag"
)

var ErrEmptyCompletion = errors.New("model returned no choices")

// Generator sends prompts to an OpenAI-compatible chat completions API.
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

func NewGenerator(cfg config.LLMConfig, opts ...option.RequestOption) *Generator {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	reqOpts = append(reqOpts, opts...)

	return &Generator{
		client:      openai.NewClient(reqOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      slog.Default(),
	}
}

func (g *Generator) Generate(ctx context.Context, prompt rag.Prompt) (string, error) {
	start := time.Now()
	// the tokenizer fetches its vocabulary on first use
	if g.logger.Enabled(ctx, slog.LevelDebug) {
		if n, err := CountTokens(prompt.System + "\n" + prompt.User); err == nil {
			g.logger.Debug("sending prompt to LLM", "model", g.model, "prompt_tokens", n, "prompt_chars", len(prompt.System)+len(prompt.User))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", describeError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	g.logger.Info("LLM answered", "model", g.model, "took", time.Since(start),
		"completion_tokens", resp.Usage.CompletionTokens)
	return answer, nil
}

func describeError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("model API returned status %d: %w", apiErr.StatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("model request timed out: %w", err)
	}
	return fmt.Errorf("model request failed: %w", err)
}

// CountTokens estimates prompt size with the cl100k tokenizer.
func CountTokens(text string) (int, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}
