// Package service runs the loader in folder-watch mode.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"qnabot/loader/internal"
	"qnabot/types"
)

// Processor ingests a single file.
type Processor interface {
	ProcessDocument(ctx context.Context, path string, docID *uuid.UUID) types.IngestResult
}

type Service struct {
	logger  *slog.Logger
	loader  Processor
	watcher *internal.Watcher
}

func New(loader Processor, sourceDir, archiveDir, badDir string, monitoringTime time.Duration) *Service {
	return &Service{
		logger:  slog.Default(),
		loader:  loader,
		watcher: internal.NewWatcher(sourceDir, archiveDir, badDir, monitoringTime),
	}
}

func (s *Service) Stop() {
	s.logger.Info("loader service stopped")
}

// Run watches the source folder until ctx is cancelled. Ingested files move to
// the archive folder, failed ones to the bad folder.
func (s *Service) Run(ctx context.Context) error {
	if err := s.watcher.CreateDirectories(); err != nil {
		return err
	}

	fileChan := make(chan string, 10)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fileChan)
		s.watcher.Watch(ctx, fileChan)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for path := range fileChan {
			s.handle(ctx, path)
		}
	}()

	<-ctx.Done()
	s.logger.Info("received shutdown signal, shutting down gracefully")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("all goroutines stopped successfully")
	case <-time.After(5 * time.Second):
		s.logger.Warn("timeout waiting for goroutines to stop, forcing shutdown")
	}
	s.Stop()
	return nil
}

func (s *Service) handle(ctx context.Context, path string) {
	defer s.watcher.Done(path)

	res := s.loader.ProcessDocument(ctx, path, nil)
	if ctx.Err() != nil {
		// leave the file in place so the next run picks it up
		return
	}

	failed := res.Status != types.StatusSuccess
	dest, err := s.watcher.MoveToArchive(path, failed)
	if err != nil {
		s.logger.Error("error moving file", "file", path, "error", err)
		return
	}
	s.logger.Info("file archived", "file", path, "dest", dest, "status", res.Status, "message", res.Message)
}
