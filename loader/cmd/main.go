package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"qnabot/config"
	"qnabot/loader"
	"qnabot/loader/service"
	"qnabot/model"
	"qnabot/store"
	"qnabot/types"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		dir        = flag.String("dir", "", "directory to ingest (defaults to LOADER_SOURCE_DIR)")
		collection = flag.String("collection", types.DefaultCollection, "target collection")
		watch      = flag.Bool("watch", false, "keep watching the source directory")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("error loading config: ", err)
	}
	cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := model.NewEmbedder(cfg.Embedder, cfg.LLM)
	if err != nil {
		log.Fatal("error creating embedder: ", err)
	}

	stores, err := store.Open(ctx, cfg, embedder)
	if err != nil {
		log.Fatal("error opening stores: ", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			slog.Error("error closing stores", "error", err)
		}
	}()

	l := loader.New(stores.Index, stores.Documents, loader.Config{
		Collection:    *collection,
		ChunkSize:     cfg.Ingest.ChunkSize,
		PDFCropTop:    cfg.Loader.PDFCropTop,
		PDFCropBottom: cfg.Loader.PDFCropBottom,
	})

	if *watch {
		svc := service.New(l, cfg.Loader.SourceDir, cfg.Loader.ArchiveDir, cfg.Loader.BadDir, cfg.Loader.MonitoringTime)
		if err := svc.Run(ctx); err != nil {
			slog.Error("loader service failed", "error", err)
			os.Exit(1)
		}
		return
	}

	source := *dir
	if source == "" {
		source = cfg.Loader.SourceDir
	}
	results, err := l.IngestDirectory(ctx, source)
	if err != nil {
		slog.Error("ingestion failed", "dir", source, "error", err)
		os.Exit(1)
	}

	var ok, failed int
	for _, r := range results {
		if r.Status == types.StatusSuccess {
			ok++
			slog.Info("ingested", "file", r.File, "chunks", r.ChunksCreated)
			continue
		}
		failed++
		slog.Warn("skipped", "file", r.File, "reason", r.Message)
	}
	slog.Info("ingestion finished", "dir", source, "ingested", ok, "skipped", failed)
}
