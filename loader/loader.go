// Package loader turns files on disk into chunks stored in the vector index.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"qnabot/loader/internal"
	"qnabot/types"
)

// Index is the part of the vector index ingestion writes to.
type Index interface {
	EnsureCollection(ctx context.Context, name string) error
	Add(ctx context.Context, collection string, records []types.Record) error
}

// DocumentLookup resolves registry metadata for uploaded documents.
type DocumentLookup interface {
	GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error)
}

var SupportedExtensions = []string{".txt", ".md", ".pdf"}

type Config struct {
	Collection string
	ChunkSize  int

	// PDF page margins cropped before extraction, in points.
	PDFCropTop    float64
	PDFCropBottom float64
}

type Loader struct {
	index  Index
	docs   DocumentLookup
	cfg    Config
	logger *slog.Logger
}

// New builds a Loader. docs may be nil when no registry is available.
func New(index Index, docs DocumentLookup, cfg Config) *Loader {
	if cfg.Collection == "" {
		cfg.Collection = types.DefaultCollection
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	return &Loader{
		index:  index,
		docs:   docs,
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// ProcessDocument reads, chunks and stores one file. Failures are reported
// in the result, never returned.
func (l *Loader) ProcessDocument(ctx context.Context, path string, docID *uuid.UUID) types.IngestResult {
	res := types.IngestResult{File: filepath.Base(path), Status: types.StatusError}

	n, err := l.ingest(ctx, path, docID)
	if err != nil {
		res.Message = ingestMessage(err)
		l.logger.Warn("document not ingested", "file", path, "error", err)
		return res
	}

	res.Status = types.StatusSuccess
	res.ChunksCreated = n
	res.Message = fmt.Sprintf("Successfully processed %d chunks", n)
	l.logger.Info("document ingested", "file", path, "collection", l.cfg.Collection, "chunks", n)
	return res
}

func (l *Loader) ingest(ctx context.Context, path string, docID *uuid.UUID) (int, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: %s", types.ErrFileNotFound, path)
	}
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", types.ErrUnsupportedFileType, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(SupportedExtensions, ext) {
		return 0, fmt.Errorf("%w: %s", types.ErrUnsupportedFileType, ext)
	}

	src := Source{
		Filename: filepath.Base(path),
		Filepath: path,
		Filetype: ext,
	}
	if docID != nil {
		src.DocID = uuid.NullUUID{UUID: *docID, Valid: true}
		l.describe(ctx, &src, *docID)
	}

	text, err := l.readText(path, ext)
	if err != nil {
		return 0, err
	}

	chunks, err := ChunkText(text, src, l.cfg.ChunkSize)
	if err != nil {
		return 0, err
	}

	if err := l.index.EnsureCollection(ctx, l.cfg.Collection); err != nil {
		return 0, err
	}
	if err := l.index.Add(ctx, l.cfg.Collection, ToRecords(chunks, src)); err != nil {
		return 0, fmt.Errorf("store chunks: %w", err)
	}
	return len(chunks), nil
}

// describe copies title and original filename from the registry; a lookup
// failure leaves the stored filename as the label.
func (l *Loader) describe(ctx context.Context, src *Source, id uuid.UUID) {
	if l.docs == nil {
		return
	}
	doc, err := l.docs.GetDocument(ctx, id)
	if err != nil {
		l.logger.Warn("document metadata unavailable", "document_id", id, "error", err)
		return
	}
	src.Title = doc.Title
	src.OriginalFilename = doc.OriginalFilename
}

func (l *Loader) readText(path, ext string) (string, error) {
	switch ext {
	case ".pdf":
		opts := internal.PDFOptions{CropTop: l.cfg.PDFCropTop, CropBottom: l.cfg.PDFCropBottom}
		text, pages, err := internal.ReadPDF(path, opts)
		if err != nil {
			return "", err
		}
		l.logger.Debug("pdf text extracted", "file", path, "pages", pages, "chars", len(text))
		return strings.ToValidUTF8(text, ""), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: %s", types.ErrInvalidEncoding, filepath.Base(path))
		}
		return string(data), nil
	}
}

// IngestDirectory processes every regular file directly inside dir. Files that
// fail are reported and the batch continues.
func (l *Loader) IngestDirectory(ctx context.Context, dir string) ([]types.IngestResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var results []types.IngestResult
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, l.ProcessDocument(ctx, filepath.Join(dir, entry.Name()), nil))
	}
	l.logger.Info("directory ingested", "dir", dir, "files", len(results))
	return results, nil
}

func ingestMessage(err error) string {
	switch {
	case errors.Is(err, types.ErrEmptyDocument):
		return "File is empty"
	case errors.Is(err, types.ErrFileNotFound):
		return "File not found"
	case errors.Is(err, types.ErrInvalidEncoding):
		return "File is not valid UTF-8 text"
	case errors.Is(err, types.ErrUnsupportedFileType):
		return err.Error()
	default:
		return fmt.Sprintf("Error processing document: %v", err)
	}
}
