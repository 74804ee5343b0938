package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"qnabot/types"
)

type CollectionLister interface {
	ListCollections(ctx context.Context) ([]types.CollectionInfo, error)
}

type CollectionHandler struct {
	index CollectionLister
}

func NewCollectionHandler(index CollectionLister) *CollectionHandler {
	return &CollectionHandler{index: index}
}

func (h *CollectionHandler) HandleListCollections(c *fiber.Ctx) error {
	cols, err := h.index.ListCollections(c.UserContext())
	if err != nil {
		return NewError(fiber.StatusInternalServerError, "error listing collections: "+err.Error())
	}

	names := make([]string, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return c.JSON(fiber.Map{
		"collections": names,
		"count":       len(cols),
		"details":     cols,
	})
}
