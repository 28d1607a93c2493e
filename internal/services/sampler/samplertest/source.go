// Package samplertest provides an in-memory video source for tests.
package samplertest

import (
	"sync"

	"incident-worker-go/internal/models"
)

// Source yields Frames synthetic frames of Width x Height and then reports exhaustion.
// Advertised overrides the container frame count; zero means "same as Frames".
type Source struct {
	Rate       float64
	Frames     int
	Advertised int
	Width      int
	Height     int

	mu     sync.Mutex
	pos    int
	reads  int
	closed bool
}

func (s *Source) FPS() float64 { return s.Rate }

func (s *Source) FrameCount() int {
	if s.Advertised > 0 {
		return s.Advertised
	}
	return s.Frames
}

func (s *Source) Read() (*models.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= s.Frames {
		return nil, false
	}
	s.pos++
	s.reads++
	w, h := s.Width, s.Height
	if w == 0 || h == 0 {
		w, h = 4, 2
	}
	return &models.Frame{Width: w, Height: h, Data: make([]byte, w*h*3)}, true
}

func (s *Source) Skip() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= s.Frames {
		return false
	}
	s.pos++
	return true
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Reads is the number of fully decoded frames.
func (s *Source) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Closed reports whether Close was called.
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
