package loader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"qnabot/types"
)

const DefaultChunkSize = 1000

// Source describes the file a text was read from.
type Source struct {
	Filename         string
	Filepath         string
	Filetype         string
	DocID            uuid.NullUUID
	Title            string
	OriginalFilename string
}

// Name is the human-readable name of the file, falling back to Filename.
func (s Source) Name() string {
	if s.OriginalFilename != "" {
		return s.OriginalFilename
	}
	return s.Filename
}

// SplitText slices text into consecutive, non-overlapping windows of size
// runes. The last window may be shorter. Words may be split. text must be
// valid UTF-8 for the windows to join back into it.
func SplitText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	parts := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}

// ChunkText splits a document's text into indexed chunks. Text that is empty
// after trimming is rejected with types.ErrEmptyDocument, invalid UTF-8 with
// types.ErrInvalidEncoding.
func ChunkText(text string, src Source, size int) ([]types.Chunk, error) {
	if !utf8.ValidString(text) {
		return nil, types.ErrInvalidEncoding
	}
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyDocument
	}
	parts := SplitText(text, size)
	chunks := make([]types.Chunk, len(parts))
	for i, part := range parts {
		chunks[i] = types.Chunk{
			Filename:   src.Filename,
			Filepath:   src.Filepath,
			Filetype:   src.Filetype,
			Index:      i,
			Content:    part,
			DocID:      src.DocID,
			SourceName: src.Name(),
		}
	}
	return chunks, nil
}

// ChunkID is the key of a chunk inside its collection.
func ChunkID(c types.Chunk) string {
	return fmt.Sprintf("%s_%d", c.Filename, c.Index)
}

// ToRecords converts chunks into index records carrying label metadata.
func ToRecords(chunks []types.Chunk, src Source) []types.Record {
	records := make([]types.Record, len(chunks))
	for i, c := range chunks {
		meta := types.ChunkMetadata{
			Filename:         c.Filename,
			Filepath:         c.Filepath,
			Filetype:         c.Filetype,
			ChunkIndex:       c.Index,
			OriginalFilename: src.OriginalFilename,
			Title:            src.Title,
			SourceName:       c.SourceName,
		}
		if c.DocID.Valid {
			meta.DocumentID = c.DocID.UUID.String()
		}
		records[i] = types.Record{ID: ChunkID(c), Content: c.Content, Metadata: meta}
	}
	return records
}
