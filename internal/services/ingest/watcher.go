package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// SupportedExtensions are the video container extensions accepted for processing.
var SupportedExtensions = []string{".mp4", ".avi", ".mov"}

// IsSupportedVideo reports whether name has an accepted video extension.
func IsSupportedVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Submitter starts a pipeline run for a video.
type Submitter interface {
	StartPipeline(videoPath, cameraID string) error
}

// Watcher submits videos dropped into <dir>/<cameraId>/. A file is submitted once
// it has not been written to for the settle delay.
type Watcher struct {
	dir     string
	settle  time.Duration
	submit  Submitter
	logger  zerolog.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates the per-camera inbox directories and starts watching them.
func NewWatcher(dir string, cameraIDs []string, settle time.Duration, submit Submitter, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	for _, id := range cameraIDs {
		camDir := filepath.Join(dir, id)
		if err := os.MkdirAll(camDir, 0755); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to create inbox %s: %w", camDir, err)
		}
		if err := fw.Add(camDir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch inbox %s: %w", camDir, err)
		}
	}

	logger.Info().Str("dir", dir).Int("cameras", len(cameraIDs)).Dur("settle", settle).Msg("Watching inbox for videos")

	return &Watcher{
		dir:     dir,
		settle:  settle,
		submit:  submit,
		logger:  logger,
		watcher: fw,
		pending: make(map[string]*time.Timer),
	}, nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Inbox watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !IsSupportedVideo(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() { w.fire(path) })
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	if _, ok := w.pending[path]; !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	cameraID := filepath.Base(filepath.Dir(path))
	logger := w.logger.With().Str("camera_id", cameraID).Str("video", path).Logger()

	if err := w.submit.StartPipeline(path, cameraID); err != nil {
		logger.Error().Err(err).Msg("Failed to submit inbox video")
		return
	}
	logger.Info().Msg("Submitted inbox video")
}

func (w *Watcher) stop() {
	w.mu.Lock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.watcher.Close()
}
