package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Watcher polls a source directory and emits files that have been present,
// unchanged, for longer than MonitoringTime.
type Watcher struct {
	SourceDir      string
	ArchiveDir     string
	BadDir         string
	MonitoringTime time.Duration
	PollInterval   time.Duration

	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	firstSeen  map[string]fileState
	processing map[string]bool
}

type fileState struct {
	seen    time.Time
	size    int64
	modTime time.Time
}

func NewWatcher(sourceDir, archiveDir, badDir string, monitoringTime time.Duration) *Watcher {
	return &Watcher{
		SourceDir:      sourceDir,
		ArchiveDir:     archiveDir,
		BadDir:         badDir,
		MonitoringTime: monitoringTime,
		PollInterval:   time.Second,
		logger:         slog.Default(),
		now:            time.Now,
		firstSeen:      make(map[string]fileState),
		processing:     make(map[string]bool),
	}
}

// CreateDirectories makes sure every watched directory exists.
func (w *Watcher) CreateDirectories() error {
	for _, dir := range []string{w.SourceDir, w.ArchiveDir, w.BadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Watch sends ready files to fileChan until ctx is cancelled. A file stays
// marked as processing until Done is called for it.
func (w *Watcher) Watch(ctx context.Context, fileChan chan<- string) {
	w.logger.Info("start monitoring folder", "dir", w.SourceDir)
	defer w.logger.Info("file watcher stopped")

	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range w.Scan() {
				select {
				case fileChan <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Scan runs one polling pass and returns the files that became ready.
func (w *Watcher) Scan() []string {
	entries, err := os.ReadDir(w.SourceDir)
	if err != nil {
		w.logger.Error("error while reading source directory", "dir", w.SourceDir, "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	current := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(w.SourceDir, entry.Name())
		current[path] = true

		if w.processing[path] {
			continue
		}

		state, exists := w.firstSeen[path]
		if !exists || state.size != info.Size() || !state.modTime.Equal(info.ModTime()) {
			if !exists {
				w.logger.Info("new file detected", "file", path)
			}
			w.firstSeen[path] = fileState{seen: w.now(), size: info.Size(), modTime: info.ModTime()}
			continue
		}

		if w.now().Sub(state.seen) > w.MonitoringTime {
			w.processing[path] = true
			ready = append(ready, path)
		}
	}

	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
			w.logger.Debug("file removed from tracking", "file", path)
		}
	}
	return ready
}

// Done releases a file handed out by Scan.
func (w *Watcher) Done(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.processing, path)
	delete(w.firstSeen, path)
}

// MoveToArchive moves path into a dated subdirectory of the archive dir, or
// of the bad dir when failed is set. Name clashes get a numeric suffix.
func (w *Watcher) MoveToArchive(path string, failed bool) (string, error) {
	root := w.ArchiveDir
	if failed {
		root = w.BadDir
	}

	destDir := filepath.Join(root, w.now().Format("2006-01-02"))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	destPath := filepath.Join(destDir, base+ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(destPath); os.IsNotExist(err) {
			break
		}
		destPath = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	if err := os.Rename(path, destPath); err == nil {
		return destPath, nil
	}
	// rename fails across filesystems
	if err := copyFile(path, destPath); err != nil {
		return "", fmt.Errorf("move %s: %w", path, err)
	}
	return destPath, os.Remove(path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
