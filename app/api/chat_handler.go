package api

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"qnabot/types"
)

// Answerer is the question answering core.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question, collection string) types.AnswerResult
}

type ChatHandler struct {
	answerer Answerer
	logger   *slog.Logger
}

func NewChatHandler(answerer Answerer) *ChatHandler {
	return &ChatHandler{
		answerer: answerer,
		logger:   slog.Default(),
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	collection := strings.TrimSpace(params.CollectionName)
	if collection == "" {
		collection = types.DefaultCollection
	}

	h.logger.Info("processing chat request", "collection", collection, "question", truncate(params.Question, 100))
	res := h.answerer.AnswerQuestion(c.UserContext(), params.Question, collection)
	return c.JSON(types.NewChatResponse(res))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
