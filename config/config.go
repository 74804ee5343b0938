// Package config loads service settings from .env, an optional YAML file
// and the process environment, in that order of precedence (lowest first).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"qnabot/types"
)

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
}

// ConnString returns DSN when set, otherwise a keyword/value string.
func (c PostgresConfig) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.DBName)
}

type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Model       string `yaml:"model"`
	Dimension   int    `yaml:"dimension"`
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
}

type LLMConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type RetrievalConfig struct {
	TopK                  int                  `yaml:"top_k"`
	RelevanceThreshold    float64              `yaml:"relevance_threshold"`
	SkipGenerationOnEmpty bool                 `yaml:"skip_generation_on_empty"`
	CitationPolicy        types.CitationPolicy `yaml:"citation_policy"`
	QueryTimeout          time.Duration        `yaml:"query_timeout"`
}

type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	AddBatchSize int `yaml:"add_batch_size"`
}

type UploadConfig struct {
	Directory    string   `yaml:"directory"`
	MaxFileSize  int64    `yaml:"max_file_size"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type LoaderConfig struct {
	SourceDir      string        `yaml:"source_dir"`
	ArchiveDir     string        `yaml:"archive_dir"`
	BadDir         string        `yaml:"bad_dir"`
	MonitoringTime time.Duration `yaml:"monitoring_time"`
	PDFCropTop     float64       `yaml:"pdf_crop_top"`
	PDFCropBottom  float64       `yaml:"pdf_crop_bottom"`
}

type Config struct {
	ServerAddr  string          `yaml:"server_addr"`
	LogLevel    string          `yaml:"log_level"`
	VectorStore string          `yaml:"vector_store"`
	Postgres    PostgresConfig  `yaml:"postgres"`
	Embedder    EmbedderConfig  `yaml:"embedder"`
	LLM         LLMConfig       `yaml:"llm"`
	Retrieval   RetrievalConfig `yaml:"retrieval"`
	Ingest      IngestConfig    `yaml:"ingest"`
	Upload      UploadConfig    `yaml:"upload"`
	Loader      LoaderConfig    `yaml:"loader"`
}

// Load builds the configuration. A missing .env or YAML file is not an error.
// When path is empty, CONFIG_FILE is consulted.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Warn("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, cfg.Validate()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ServerAddr:  ":8000",
		LogLevel:    "info",
		VectorStore: "postgres",
		Postgres:    PostgresConfig{Host: "localhost", Port: 5432, User: "postgres", DBName: "qnabot"},
		Embedder: EmbedderConfig{
			Type:      "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
		},
		LLM: LLMConfig{
			Model:       "gpt-4.1-nano",
			Temperature: 0.1,
			MaxTokens:   800,
			Timeout:     60 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:                  5,
			RelevanceThreshold:    0.3,
			SkipGenerationOnEmpty: true,
			CitationPolicy:        types.CitationSilent,
			QueryTimeout:          30 * time.Second,
		},
		Ingest: IngestConfig{ChunkSize: 1000, AddBatchSize: 100},
		Upload: UploadConfig{
			Directory:    "./data/uploads",
			MaxFileSize:  10 * 1024 * 1024,
			AllowedTypes: []string{".txt", ".md", ".pdf"},
		},
		Loader: LoaderConfig{
			SourceDir:      "./data/raw",
			ArchiveDir:     "./data/archive",
			BadDir:         "./data/bad",
			MonitoringTime: 5 * time.Second,
		},
	}
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	num64 := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("SERVER_ADDR", &cfg.ServerAddr)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("VECTOR_STORE", &cfg.VectorStore)

	str("POSTGRES_DSN", &cfg.Postgres.DSN)
	str("PG_HOST", &cfg.Postgres.Host)
	num("PG_PORT", &cfg.Postgres.Port)
	str("PG_USER", &cfg.Postgres.User)
	str("PG_PASS", &cfg.Postgres.Password)
	str("PG_DB_NAME", &cfg.Postgres.DBName)

	str("EMBEDDER", &cfg.Embedder.Type)
	str("EMBEDDING_MODEL", &cfg.Embedder.Model)
	num("EMBEDDING_DIM", &cfg.Embedder.Dimension)
	str("OLLAMA_EMBEDDING_URL", &cfg.Embedder.OllamaURL)
	str("OLLAMA_EMBEDDING_MODEL", &cfg.Embedder.OllamaModel)

	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("OPENAI_BASE_URL", &cfg.LLM.BaseURL)
	str("OPENAI_MODEL_NAME", &cfg.LLM.Model)
	float("LLM_TEMPERATURE", &cfg.LLM.Temperature)
	num("LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	duration("GENERATION_TIMEOUT", &cfg.LLM.Timeout)

	num("TOP_K", &cfg.Retrieval.TopK)
	float("RELEVANCE_THRESHOLD", &cfg.Retrieval.RelevanceThreshold)
	boolean("SKIP_GENERATION_ON_EMPTY", &cfg.Retrieval.SkipGenerationOnEmpty)
	if v := os.Getenv("CITATION_POLICY"); v != "" {
		cfg.Retrieval.CitationPolicy = types.CitationPolicy(strings.ToLower(v))
	}
	duration("QUERY_TIMEOUT", &cfg.Retrieval.QueryTimeout)

	num("CHUNK_SIZE", &cfg.Ingest.ChunkSize)
	num("ADD_BATCH_SIZE", &cfg.Ingest.AddBatchSize)

	str("UPLOAD_DIRECTORY", &cfg.Upload.Directory)
	num64("MAX_FILE_SIZE", &cfg.Upload.MaxFileSize)
	if v := os.Getenv("ALLOWED_FILE_TYPES"); v != "" {
		cfg.Upload.AllowedTypes = splitList(v)
	}

	str("LOADER_SOURCE_DIR", &cfg.Loader.SourceDir)
	str("LOADER_ARCHIVE_DIR", &cfg.Loader.ArchiveDir)
	str("LOADER_BAD_DIR", &cfg.Loader.BadDir)
	duration("LOADER_MONITORING_TIME", &cfg.Loader.MonitoringTime)
	float("PDF_CROP_TOP", &cfg.Loader.PDFCropTop)
	float("PDF_CROP_BOTTOM", &cfg.Loader.PDFCropBottom)

	return errors.Join(errs...)
}

func applyDefaults(cfg *Config) {
	if cfg.Embedder.Type == "ollama" && cfg.Embedder.OllamaURL == "" {
		cfg.Embedder.OllamaURL = "http://localhost:11434/api/embeddings"
	}
	if cfg.Embedder.Type == "ollama" && cfg.Embedder.OllamaModel == "" {
		cfg.Embedder.OllamaModel = "nomic-embed-text"
	}
	if cfg.Embedder.Type == "hash" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 256
	}
	if cfg.Ingest.AddBatchSize <= 0 {
		cfg.Ingest.AddBatchSize = 100
	}
	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.CitationPolicy == "" {
		cfg.Retrieval.CitationPolicy = types.CitationSilent
	}
	for i, ext := range cfg.Upload.AllowedTypes {
		cfg.Upload.AllowedTypes[i] = normalizeExt(ext)
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.VectorStore {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown vector store %q", c.VectorStore))
	}
	switch c.Embedder.Type {
	case "openai":
		if c.LLM.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai embedder"))
		}
	case "ollama", "hash":
	default:
		errs = append(errs, fmt.Errorf("unknown embedder %q", c.Embedder.Type))
	}
	if c.Embedder.Dimension <= 0 {
		errs = append(errs, errors.New("embedding dimension must be positive"))
	}
	switch c.Retrieval.CitationPolicy {
	case types.CitationSilent, types.CitationInline:
	default:
		errs = append(errs, fmt.Errorf("unknown citation policy %q", c.Retrieval.CitationPolicy))
	}
	if c.Retrieval.RelevanceThreshold < 0 || c.Retrieval.RelevanceThreshold > 1 {
		errs = append(errs, fmt.Errorf("relevance threshold %.2f outside [0,1]", c.Retrieval.RelevanceThreshold))
	}
	if c.Ingest.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel onto slog levels, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger installs a text handler on stderr as the default logger.
func (c *Config) NewLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
