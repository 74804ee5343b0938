package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qnabot/types"
)

// DocumentStorer is the registry of uploaded documents. Soft-deleted
// documents are invisible to every read.
type DocumentStorer interface {
	AddDocument(context.Context, *types.Document) error
	GetDocument(context.Context, uuid.UUID) (*types.Document, error)
	ListDocuments(context.Context, types.DocumentFilter) ([]types.Document, error)
	UpdateDocument(context.Context, uuid.UUID, types.UpdateDocumentParams) (*types.Document, error)
	DeleteDocument(context.Context, uuid.UUID) error
	GetDocumentVersions(context.Context, uuid.UUID) ([]types.DocumentVersion, error)
	GetDocumentStats(context.Context) (*types.DocumentStats, error)
}

const documentColumns = `id, filename, original_filename, file_path, file_size, file_type,
	title, description, category, uploaded_at, is_deleted, version`

type PostgresDocumentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDocumentStore(pg *PostgresStore) *PostgresDocumentStore {
	return &PostgresDocumentStore{pool: pg.pool}
}

// AddDocument inserts doc as version 1 and records the version row.
// A zero ID is replaced with a fresh UUID.
func (s *PostgresDocumentStore) AddDocument(ctx context.Context, doc *types.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Version = 1

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO documents (id, filename, original_filename, file_path, file_size, file_type, title, description, category)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING uploaded_at`,
			doc.ID, doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSize, doc.FileType,
			doc.Title, doc.Description, doc.Category,
		).Scan(&doc.UploadedAt)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO document_versions (document_id, version, file_path, uploaded_at)
			VALUES ($1, $2, $3, $4)`,
			doc.ID, doc.Version, doc.FilePath, doc.UploadedAt,
		)
		if err != nil {
			return fmt.Errorf("insert document version: %w", err)
		}
		return nil
	})
}

func (s *PostgresDocumentStore) GetDocument(ctx context.Context, id uuid.UUID) (*types.Document, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1 AND NOT is_deleted`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrDocumentNotFound
	}
	return doc, err
}

func (s *PostgresDocumentStore) ListDocuments(ctx context.Context, f types.DocumentFilter) ([]types.Document, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE NOT is_deleted`
	args := []any{}
	if f.Category != "" {
		args = append(args, f.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY uploaded_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []types.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *PostgresDocumentStore) UpdateDocument(ctx context.Context, id uuid.UUID, params types.UpdateDocumentParams) (*types.Document, error) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v *string) {
		if v != nil {
			args = append(args, *v)
			sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	add("title", params.Title)
	add("description", params.Description)
	add("category", params.Category)
	if len(sets) == 0 {
		return s.GetDocument(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE documents SET %s WHERE id = $%d AND NOT is_deleted RETURNING `+documentColumns,
		strings.Join(sets, ", "), len(args))
	doc, err := scanDocument(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrDocumentNotFound
	}
	return doc, err
}

func (s *PostgresDocumentStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE documents SET is_deleted = TRUE WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return types.ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresDocumentStore) GetDocumentVersions(ctx context.Context, id uuid.UUID) ([]types.DocumentVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT document_id, version, file_path, uploaded_at
		FROM document_versions
		WHERE document_id = $1
		ORDER BY version DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []types.DocumentVersion{}
	for rows.Next() {
		var v types.DocumentVersion
		if err := rows.Scan(&v.DocID, &v.Version, &v.FilePath, &v.UploadedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *PostgresDocumentStore) GetDocumentStats(ctx context.Context) (*types.DocumentStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT file_type, count(*), coalesce(sum(file_size), 0)::bigint
		FROM documents
		WHERE NOT is_deleted
		GROUP BY file_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &types.DocumentStats{DocumentsByType: map[string]int{}}
	for rows.Next() {
		var (
			fileType string
			count    int
			size     int64
		)
		if err := rows.Scan(&fileType, &count, &size); err != nil {
			return nil, err
		}
		stats.DocumentsByType[fileType] = count
		stats.TotalDocuments += count
		stats.TotalSizeBytes += size
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	stats.TotalSizeMB = toMB(stats.TotalSizeBytes)
	return stats, nil
}

func scanDocument(row pgx.Row) (*types.Document, error) {
	doc := &types.Document{}
	err := row.Scan(
		&doc.ID,
		&doc.Filename,
		&doc.OriginalFilename,
		&doc.FilePath,
		&doc.FileSize,
		&doc.FileType,
		&doc.Title,
		&doc.Description,
		&doc.Category,
		&doc.UploadedAt,
		&doc.IsDeleted,
		&doc.Version,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func toMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}
