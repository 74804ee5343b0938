package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultCollection is the collection used when a caller does not name one.
const DefaultCollection = "documents"

var (
	ErrEmptyDocument       = errors.New("empty file")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileNotFound        = errors.New("file not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidEncoding     = errors.New("file is not valid UTF-8 text")
)

// Chunk is a fixed-size slice of a document's text.
// Its key inside a collection is {Filename}_{Index}.
type Chunk struct {
	Filename   string
	Filepath   string
	Filetype   string
	Index      int
	Content    string
	DocID      uuid.NullUUID
	SourceName string
}

// ChunkMetadata is persisted next to every embedding record.
type ChunkMetadata struct {
	Filename         string `json:"filename"`
	Filepath         string `json:"filepath"`
	Filetype         string `json:"filetype"`
	ChunkIndex       int    `json:"chunk_id"`
	DocumentID       string `json:"document_id,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
	Title            string `json:"title,omitempty"`
	SourceName       string `json:"source_name,omitempty"`
}

// Label returns the human-readable source name: title, else original
// filename, else stored filename.
func (m ChunkMetadata) Label() string {
	switch {
	case m.Title != "":
		return m.Title
	case m.OriginalFilename != "":
		return m.OriginalFilename
	case m.SourceName != "":
		return m.SourceName
	default:
		return m.Filename
	}
}

// Record is one embedding record handed to the vector index.
type Record struct {
	ID       string
	Content  string
	Metadata ChunkMetadata
}

// Match is a raw nearest-neighbour hit. Distance is in [0,1], smaller is closer.
type Match struct {
	ID       string
	Content  string
	Metadata ChunkMetadata
	Distance float64
}

// Fragment is a retrieved chunk with its derived relevance score.
type Fragment struct {
	Content   string
	Metadata  ChunkMetadata
	Relevance float64
}

// Source returns the label used when citing this fragment.
func (f Fragment) Source() string {
	return f.Metadata.Label()
}

type CollectionInfo struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// AnswerResult is the outcome of one question.
type AnswerResult struct {
	Answer  string   `json:"answer"`
	Status  Status   `json:"status"`
	Sources []string `json:"sources"`
}

// IngestResult reports what happened to a single file during ingestion.
type IngestResult struct {
	File          string `json:"file"`
	Status        Status `json:"status"`
	Message       string `json:"message"`
	ChunksCreated int    `json:"chunks_created"`
}

// CitationPolicy decides who attributes sources: the model inline, or the system.
type CitationPolicy string

const (
	CitationSilent CitationPolicy = "silent"
	CitationInline CitationPolicy = "inline"
)

type Document struct {
	ID               uuid.UUID `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	FileType         string    `json:"file_type"`
	Title            string    `json:"title,omitempty"`
	Description      string    `json:"description,omitempty"`
	Category         string    `json:"category,omitempty"`
	UploadedAt       time.Time `json:"uploaded_at"`
	IsDeleted        bool      `json:"is_deleted"`
	Version          int       `json:"version"`
}

type DocumentVersion struct {
	DocID      uuid.UUID `json:"document_id"`
	Version    int       `json:"version"`
	FilePath   string    `json:"file_path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type DocumentStats struct {
	TotalDocuments  int            `json:"total_documents"`
	DocumentsByType map[string]int `json:"documents_by_type"`
	TotalSizeBytes  int64          `json:"total_size_bytes"`
	TotalSizeMB     float64        `json:"total_size_mb"`
}

type DocumentFilter struct {
	Limit    int
	Offset   int
	Category string
}
