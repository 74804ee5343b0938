package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qnabot/types"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ServerAddr)
	assert.Equal(t, 1000, cfg.Ingest.ChunkSize)
	assert.Equal(t, 100, cfg.Ingest.AddBatchSize)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 0.3, cfg.Retrieval.RelevanceThreshold)
	assert.True(t, cfg.Retrieval.SkipGenerationOnEmpty)
	assert.Equal(t, types.CitationSilent, cfg.Retrieval.CitationPolicy)
	assert.Equal(t, "gpt-4.1-nano", cfg.LLM.Model)
	assert.Equal(t, 800, cfg.LLM.MaxTokens)
	assert.Equal(t, []string{".txt", ".md", ".pdf"}, cfg.Upload.AllowedTypes)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vector_store: memory
embedder:
  type: hash
  dimension: 64
retrieval:
  top_k: 3
  citation_policy: inline
ingest:
  chunk_size: 200
`), 0o644))

	t.Setenv("TOP_K", "7")
	t.Setenv("QUERY_TIMEOUT", "5s")
	t.Setenv("ALLOWED_FILE_TYPES", "txt, .MD")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.VectorStore)
	assert.Equal(t, "hash", cfg.Embedder.Type)
	assert.Equal(t, 64, cfg.Embedder.Dimension)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.Equal(t, types.CitationInline, cfg.Retrieval.CitationPolicy)
	assert.Equal(t, 200, cfg.Ingest.ChunkSize)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.QueryTimeout)
	assert.Equal(t, []string{".txt", ".md"}, cfg.Upload.AllowedTypes)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EMBEDDER", "hash")
	t.Setenv("CHUNK_SIZE", "big")

	_, err := Load("")
	assert.ErrorContains(t, err, "CHUNK_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "openai without key", mutate: func(c *Config) {}, errMsg: "OPENAI_API_KEY"},
		{name: "unknown store", mutate: func(c *Config) { c.LLM.APIKey = "k"; c.VectorStore = "redis" }, errMsg: "unknown vector store"},
		{name: "unknown embedder", mutate: func(c *Config) { c.Embedder.Type = "bert" }, errMsg: "unknown embedder"},
		{name: "bad policy", mutate: func(c *Config) { c.LLM.APIKey = "k"; c.Retrieval.CitationPolicy = "footnote" }, errMsg: "citation policy"},
		{name: "threshold", mutate: func(c *Config) { c.LLM.APIKey = "k"; c.Retrieval.RelevanceThreshold = 1.5 }, errMsg: "outside [0,1]"},
		{name: "chunk size", mutate: func(c *Config) { c.LLM.APIKey = "k"; c.Ingest.ChunkSize = 0 }, errMsg: "chunk size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	cfg := Default()
	cfg.LLM.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}

func TestPostgresConnString(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "n"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", c.ConnString())
	c.DSN = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnString())
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{}).SlogLevel())
}
