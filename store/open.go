package store

import (
	"context"
	"fmt"
	"log/slog"

	"qnabot/config"
	"qnabot/model"
)

// Stores bundles the vector index and the document registry chosen by
// config, so the entry points own a single lifecycle.
type Stores struct {
	Index     VectorIndex
	Documents DocumentStorer
	pg        *PostgresStore
}

func Open(ctx context.Context, cfg *config.Config, embedder model.Embedder) (*Stores, error) {
	switch cfg.VectorStore {
	case "memory":
		slog.Info("using in-memory vector index and document registry")
		return &Stores{
			Index:     NewMemoryIndex(embedder, cfg.Ingest.AddBatchSize),
			Documents: NewMemoryDocumentStore(),
		}, nil
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.Postgres.ConnString())
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pg.Init(ctx, embedder.Dimension()); err != nil {
			pg.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
		return &Stores{
			Index:     NewPostgresIndex(pg, embedder, cfg.Ingest.AddBatchSize),
			Documents: NewPostgresDocumentStore(pg),
			pg:        pg,
		}, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
}

// Ping checks the backing database, if any.
func (s *Stores) Ping(ctx context.Context) error {
	if s.pg == nil {
		return nil
	}
	return s.pg.Ping(ctx)
}

func (s *Stores) Close() error {
	if err := s.Index.Close(); err != nil {
		return err
	}
	if s.pg != nil {
		return s.pg.Close()
	}
	return nil
}
