package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"qnabot/store"
	"qnabot/types"
)

// Ingestor indexes a stored file.
type Ingestor interface {
	ProcessDocument(ctx context.Context, path string, docID *uuid.UUID) types.IngestResult
}

type UploadConfig struct {
	Directory    string
	MaxFileSize  int64
	AllowedTypes []string
}

type DocumentHandler struct {
	store    store.DocumentStorer
	ingestor Ingestor
	cfg      UploadConfig
	logger   *slog.Logger
}

func NewDocumentHandler(s store.DocumentStorer, ingestor Ingestor, cfg UploadConfig) *DocumentHandler {
	return &DocumentHandler{
		store:    s,
		ingestor: ingestor,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// HandleUpload saves the multipart "file" as {uuid}{ext}, registers it and
// indexes it into the default collection.
func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return NewError(fiber.StatusBadRequest, "file is required")
	}

	var params types.DocumentParams
	if err := c.BodyParser(&params); err != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	if fileHeader.Filename == "" {
		return NewError(fiber.StatusBadRequest, "filename is required")
	}
	if h.cfg.MaxFileSize > 0 && fileHeader.Size > h.cfg.MaxFileSize {
		return NewError(fiber.StatusBadRequest, fmt.Sprintf("file size %d exceeds maximum allowed size of %d bytes",
			fileHeader.Size, h.cfg.MaxFileSize))
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !slices.Contains(h.cfg.AllowedTypes, ext) {
		return NewError(fiber.StatusBadRequest, fmt.Sprintf("file type %s is not allowed. Allowed types: %s",
			ext, strings.Join(h.cfg.AllowedTypes, ", ")))
	}

	if err := os.MkdirAll(h.cfg.Directory, 0o755); err != nil {
		return err
	}
	id := uuid.New()
	stored := id.String() + ext
	path := filepath.Join(h.cfg.Directory, stored)
	if err := c.SaveFile(fileHeader, path); err != nil {
		return fmt.Errorf("save upload: %w", err)
	}
	h.logger.Info("saved uploaded file", "original", fileHeader.Filename, "path", path)

	doc := &types.Document{
		ID:               id,
		Filename:         stored,
		OriginalFilename: fileHeader.Filename,
		FilePath:         path,
		FileSize:         fileHeader.Size,
		FileType:         ext,
		Title:            params.Title,
		Description:      params.Description,
		Category:         params.Category,
	}
	if err := h.store.AddDocument(c.UserContext(), doc); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("register document: %w", err)
	}

	ingest := h.ingestor.ProcessDocument(c.UserContext(), path, &doc.ID)
	message := "Document uploaded successfully"
	if ingest.Status != types.StatusSuccess {
		h.logger.Warn("uploaded document was not indexed", "document_id", doc.ID, "reason", ingest.Message)
		message = "Document uploaded but not indexed: " + ingest.Message
	}

	// The document stays registered either way; status reports indexing.
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status":    ingest.Status,
		"document":  doc,
		"ingestion": ingest,
		"message":   message,
	})
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	filter := types.DocumentFilter{
		Limit:    c.QueryInt("limit", 100),
		Offset:   c.QueryInt("offset", 0),
		Category: c.Query("category"),
	}
	if filter.Limit <= 0 || filter.Limit > 1000 || filter.Offset < 0 {
		return NewError(fiber.StatusBadRequest, "limit must be in 1..1000 and offset must not be negative")
	}

	docs, err := h.store.ListDocuments(c.UserContext(), filter)
	if err != nil {
		return err
	}
	stats, err := h.store.GetDocumentStats(c.UserContext())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":    types.StatusSuccess,
		"documents": docs,
		"stats":     stats,
		"pagination": fiber.Map{
			"limit":  filter.Limit,
			"offset": filter.Offset,
			"total":  stats.TotalDocuments,
		},
	})
}

func (h *DocumentHandler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	doc, err := h.store.GetDocument(c.UserContext(), id)
	if err != nil {
		return notFoundOr(err, id)
	}
	versions, err := h.store.GetDocumentVersions(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"status":   types.StatusSuccess,
		"document": doc,
		"versions": versions,
	})
}

func (h *DocumentHandler) HandleUpdate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	var params types.UpdateDocumentParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}
	if params.Empty() {
		return NewError(fiber.StatusBadRequest, "nothing to update")
	}

	doc, err := h.store.UpdateDocument(c.UserContext(), id, params)
	if err != nil {
		return notFoundOr(err, id)
	}
	return c.JSON(fiber.Map{
		"status":   types.StatusSuccess,
		"document": doc,
	})
}

func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return ErrInvalidID()
	}

	if err := h.store.DeleteDocument(c.UserContext(), id); err != nil {
		return notFoundOr(err, id)
	}
	return c.JSON(fiber.Map{
		"status":  types.StatusSuccess,
		"message": fmt.Sprintf("Document %s deleted successfully", id),
	})
}

func (h *DocumentHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.store.GetDocumentStats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": types.StatusSuccess,
		"stats":  stats,
	})
}

func notFoundOr(err error, id uuid.UUID) error {
	if errors.Is(err, types.ErrDocumentNotFound) {
		return ErrNotFound(id, "document")
	}
	return err
}
