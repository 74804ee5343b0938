package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"qnabot/model"
	"qnabot/types"
)

// PostgresStore owns the connection pool shared by the vector index and the
// document registry.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

// Init creates the pgvector extension and every table used by the service.
func (p *PostgresStore) Init(ctx context.Context, dim int) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS embeddings (
		collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
		id TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		embedding vector(%d) NOT NULL,
		PRIMARY KEY (collection, id)
	);

	DROP INDEX IF EXISTS idx_embeddings_vector;
	CREATE INDEX IF NOT EXISTS idx_embeddings_hnsw ON embeddings USING hnsw (embedding vector_cosine_ops);

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		original_filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		file_type TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		uploaded_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
		version INTEGER NOT NULL DEFAULT 1,
		UNIQUE (filename, version)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category) WHERE NOT is_deleted;

	CREATE TABLE IF NOT EXISTS document_versions (
		document_id UUID NOT NULL REFERENCES documents(id),
		version INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		uploaded_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
		PRIMARY KEY (document_id, version)
	);
	`, dim)
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		slog.Info("postgres connection pool is closed")
	}
	return nil
}

// PostgresIndex is a VectorIndex on pgvector. Distances come from the
// cosine operator <=> and are clamped into [0,1].
type PostgresIndex struct {
	pool      *pgxpool.Pool
	embedder  model.Embedder
	batchSize int
	logger    *slog.Logger
}

func NewPostgresIndex(pg *PostgresStore, embedder model.Embedder, batchSize int) *PostgresIndex {
	return &PostgresIndex{
		pool:      pg.pool,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
}

func (p *PostgresIndex) EnsureCollection(ctx context.Context, name string) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return nil
}

func (p *PostgresIndex) Add(ctx context.Context, collection string, records []types.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := p.EnsureCollection(ctx, collection); err != nil {
		return err
	}

	const query = `
	INSERT INTO embeddings (collection, id, content, metadata, embedding)
	VALUES ($1, $2, $3, $4, $5::vector)
	ON CONFLICT (collection, id) DO UPDATE SET
		content = EXCLUDED.content,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding
	`
	for n, group := range batches(records, p.batchSize) {
		vectors, err := p.embedder.Embed(ctx, contents(group))
		if err != nil {
			return fmt.Errorf("embed batch %d: %w", n, err)
		}

		batch := &pgx.Batch{}
		for i, rec := range group {
			meta, err := json.Marshal(rec.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", rec.ID, err)
			}
			batch.Queue(query, collection, rec.ID, rec.Content, meta, pgvector.NewVector(vectors[i]))
		}
		if err := p.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert batch %d into %s: %w", n, collection, err)
		}
		p.logger.Debug("stored embedding batch", "collection", collection, "batch", n, "records", len(group))
	}
	return nil
}

func (p *PostgresIndex) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM embeddings WHERE collection = $1`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (p *PostgresIndex) Query(ctx context.Context, collection, text string, k int) ([]types.Match, error) {
	if k <= 0 {
		return nil, nil
	}
	total, err := p.Count(ctx, collection)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	k = min(k, total)

	vectors, err := p.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var matches []types.Match
	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('hnsw.ef_search', $1, true)`, strconv.Itoa(efSearch(k))); err != nil {
			return err
		}
		found, err := nearest(ctx, tx, collection, vectors[0], k)
		if err != nil {
			return err
		}
		if len(found) < k {
			// The collection filter runs after the graph scan and can starve
			// the result; fall back to an exact scan.
			p.logger.Debug("approximate scan returned too few rows", "collection", collection, "got", len(found), "want", k)
			if _, err := tx.Exec(ctx, `SELECT set_config('enable_indexscan', 'off', true)`); err != nil {
				return err
			}
			if found, err = nearest(ctx, tx, collection, vectors[0], k); err != nil {
				return err
			}
		}
		matches = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	for _, m := range matches {
		p.logger.Debug("match", "collection", collection, "id", m.ID, "distance", m.Distance)
	}
	return matches, nil
}

// efSearch sizes the HNSW candidate list for k results, within pgvector's 1..1000 range.
func efSearch(k int) int {
	return min(max(100, k*10), 1000)
}

func nearest(ctx context.Context, tx pgx.Tx, collection string, vector []float32, k int) ([]types.Match, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, content, metadata, embedding <=> $2::vector AS distance
		FROM embeddings
		WHERE collection = $1
		ORDER BY distance
		LIMIT $3
	`, collection, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []types.Match
	for rows.Next() {
		var (
			m    types.Match
			meta []byte
		)
		if err := rows.Scan(&m.ID, &m.Content, &meta, &m.Distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", m.ID, err)
		}
		m.Distance = clampDistance(m.Distance)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *PostgresIndex) ListCollections(ctx context.Context) ([]types.CollectionInfo, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT c.name, count(e.id)
		FROM collections c
		LEFT JOIN embeddings e ON e.collection = c.name
		GROUP BY c.name
		ORDER BY c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.CollectionInfo{}
	for rows.Next() {
		var info types.CollectionInfo
		if err := rows.Scan(&info.Name, &info.Count); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Close is a no-op; the pool belongs to PostgresStore.
func (p *PostgresIndex) Close() error { return nil }
