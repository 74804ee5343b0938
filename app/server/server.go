package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"qnabot/app/agent"
	"qnabot/app/api"
	"qnabot/app/middleware"
	"qnabot/config"
	"qnabot/loader"
	"qnabot/model"
	"qnabot/rag"
	"qnabot/store"
)

type Server struct {
	cfg    *config.Config
	app    *fiber.App
	stores *store.Stores
	logger *slog.Logger
}

func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Deps are the collaborators the HTTP routes are built on.
type Deps struct {
	Engine    api.Answerer
	Index     api.CollectionLister
	Documents store.DocumentStorer
	Ingestor  api.Ingestor
	DB        api.Pinger
	Upload    api.UploadConfig
}

// NewApp registers every route on a fresh fiber app.
func NewApp(d Deps) *fiber.App {
	var (
		app = fiber.New(fiber.Config{
			ErrorHandler: api.ErrorHandler,
			BodyLimit:    int(max(d.Upload.MaxFileSize, 4*1024*1024)) + 1024*1024,
		})
		checkHandler      = api.NewCheckHandler(d.DB)
		chatHandler       = api.NewChatHandler(d.Engine)
		collectionHandler = api.NewCollectionHandler(d.Index)
		documentHandler   = api.NewDocumentHandler(d.Documents, d.Ingestor, d.Upload)
		check             = app.Group("/check")
		apiv1             = app.Group("/api/v1")
	)

	app.Use(middleware.RequestLogger(slog.Default()))

	app.Get("/", checkHandler.HandleRoot)
	app.Get("/health", checkHandler.HandleRoot)
	check.Get("/healthy", checkHandler.HandleHealthy)

	apiv1.Post("/chat", chatHandler.HandleChat)
	apiv1.Get("/collections", collectionHandler.HandleListCollections)

	apiv1.Post("/documents", documentHandler.HandleUpload)
	apiv1.Get("/documents", documentHandler.HandleList)
	apiv1.Get("/documents/stats", documentHandler.HandleStats)
	apiv1.Get("/documents/:id", documentHandler.HandleGet)
	apiv1.Patch("/documents/:id", documentHandler.HandleUpdate)
	apiv1.Delete("/documents/:id", documentHandler.HandleDelete)

	return app
}

// Init constructs every client explicitly and registers the routes.
func (s *Server) Init(ctx context.Context) error {
	embedder, err := model.NewEmbedder(s.cfg.Embedder, s.cfg.LLM)
	if err != nil {
		return err
	}

	stores, err := store.Open(ctx, s.cfg, embedder)
	if err != nil {
		return err
	}
	s.stores = stores

	engine := rag.NewEngine(stores.Index, agent.NewGenerator(s.cfg.LLM), rag.EngineConfig{
		TopK:                  s.cfg.Retrieval.TopK,
		RelevanceThreshold:    s.cfg.Retrieval.RelevanceThreshold,
		SkipGenerationOnEmpty: s.cfg.Retrieval.SkipGenerationOnEmpty,
		CitationPolicy:        s.cfg.Retrieval.CitationPolicy,
		QueryTimeout:          s.cfg.Retrieval.QueryTimeout,
		GenerationTimeout:     s.cfg.LLM.Timeout,
	})

	ingestor := loader.New(stores.Index, stores.Documents, loader.Config{
		ChunkSize:     s.cfg.Ingest.ChunkSize,
		PDFCropTop:    s.cfg.Loader.PDFCropTop,
		PDFCropBottom: s.cfg.Loader.PDFCropBottom,
	})

	s.app = NewApp(Deps{
		Engine:    engine,
		Index:     stores.Index,
		Documents: stores.Documents,
		Ingestor:  ingestor,
		DB:        stores,
		Upload: api.UploadConfig{
			Directory:    s.cfg.Upload.Directory,
			MaxFileSize:  s.cfg.Upload.MaxFileSize,
			AllowedTypes: s.cfg.Upload.AllowedTypes,
		},
	})

	return nil
}

// Run blocks serving HTTP until Stop is called.
func (s *Server) Run() error {
	s.logger.Info("server starting", "addr", s.cfg.ServerAddr, "vector_store", s.cfg.VectorStore,
		"embedder", s.cfg.Embedder.Type, "citation_policy", s.cfg.Retrieval.CitationPolicy)
	if err := s.app.Listen(s.cfg.ServerAddr); err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ServerAddr, err)
	}
	return nil
}

// Stop drains in-flight requests and closes the stores.
func (s *Server) Stop() {
	if s.app != nil {
		if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil {
			s.logger.Error("error shutting down http server", "error", err)
		}
	}
	if s.stores != nil {
		if err := s.stores.Close(); err != nil {
			s.logger.Error("error closing stores", "error", err)
		}
	}
	s.logger.Info("server stopped")
}
