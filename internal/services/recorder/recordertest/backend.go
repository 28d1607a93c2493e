// Package recordertest provides an in-memory recorder backend for tests.
package recordertest

import (
	"errors"
	"os"
	"sync"

	"incident-worker-go/internal/models"
	"incident-worker-go/internal/services/recorder"
)

// ErrInjected is returned by a Backend configured to fail.
var ErrInjected = errors.New("injected artifact failure")

// Backend writes placeholder files and records every frame it receives.
type Backend struct {
	FailImage     bool
	FailOpen      bool
	FailFirstClip bool

	mu     sync.Mutex
	images map[string]int
	clips  map[string][]int
	closed map[string]bool
}

func New() *Backend {
	return &Backend{
		images: make(map[string]int),
		clips:  make(map[string][]int),
		closed: make(map[string]bool),
	}
}

func (b *Backend) WriteImage(path string, frame *models.Frame) error {
	if b.FailImage {
		return ErrInjected
	}
	if err := os.WriteFile(path, []byte("jpeg"), 0644); err != nil {
		return err
	}
	b.mu.Lock()
	b.images[path] = frame.Index
	b.mu.Unlock()
	return nil
}

func (b *Backend) OpenClip(path string, fps float64, width, height int) (recorder.ClipWriter, error) {
	if b.FailOpen {
		return nil, ErrInjected
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.clips[path] = nil
	b.mu.Unlock()
	return &clip{backend: b, path: path}, nil
}

// Images returns the frame index written to each image path.
func (b *Backend) Images() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.images))
	for k, v := range b.images {
		out[k] = v
	}
	return out
}

// ClipFrames returns the frame indexes written to the clip at path.
func (b *Backend) ClipFrames(path string) []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]int(nil), b.clips[path]...)
}

// Closed reports whether the clip at path was finalized.
func (b *Backend) Closed(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed[path]
}

type clip struct {
	backend *Backend
	path    string
}

func (c *clip) Write(frame *models.Frame) error {
	b := c.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailFirstClip && len(b.clips[c.path]) == 0 {
		return ErrInjected
	}
	b.clips[c.path] = append(b.clips[c.path], frame.Index)
	return nil
}

func (c *clip) Close() error {
	b := c.backend
	b.mu.Lock()
	b.closed[c.path] = true
	b.mu.Unlock()
	return nil
}
