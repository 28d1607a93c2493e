package sampler

import (
	"math"
	"time"

	"incident-worker-go/internal/models"
)

// VideoSource is a decoded, forward-only video.
type VideoSource interface {
	// FPS is the frame rate advertised by the container, 0 when unknown.
	FPS() float64
	// FrameCount is the frame count advertised by the container, 0 when unknown.
	FrameCount() int
	// Read decodes the next frame. It returns false once the source is exhausted.
	Read() (*models.Frame, bool)
	// Skip advances past the next frame without converting it. It returns false once the source is exhausted.
	Skip() bool
	Close() error
}

// Stats describes how much of a source was consumed.
type Stats struct {
	Advertised int
	Decoded    int
	Sampled    int
}

// Partial reports whether fewer frames were decoded than the container advertised.
func (s Stats) Partial() bool {
	return s.Advertised > 0 && s.Decoded < s.Advertised
}

// Interval returns how many decoded frames make up one sampling step: max(1, round(fps/rate)).
func Interval(sourceFPS, targetRate float64) int {
	if sourceFPS <= 0 || targetRate <= 0 {
		return 1
	}
	n := int(math.Round(sourceFPS / targetRate))
	if n < 1 {
		return 1
	}
	return n
}

// Sampler yields every interval-th frame of a source. It is single-use.
type Sampler struct {
	src      VideoSource
	fps      float64
	interval int
	decoded  int
	sampled  int
	done     bool
}

// New builds a sampler. fallbackFPS is used when the source does not report a frame rate.
func New(src VideoSource, targetRate, fallbackFPS float64) *Sampler {
	fps := src.FPS()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		fps = fallbackFPS
	}
	if fps <= 0 {
		fps = 30
	}
	return &Sampler{
		src:      src,
		fps:      fps,
		interval: Interval(fps, targetRate),
	}
}

// FPS is the frame rate timestamps are derived from.
func (s *Sampler) FPS() float64 { return s.fps }

// Interval is the sampling step in decoded frames.
func (s *Sampler) Interval() int { return s.interval }

// Next returns the next sampled frame, or false when the source is exhausted.
// Frames are emitted when their 1-based decode count is a multiple of the interval,
// so a source of n frames yields floor(n/interval) frames.
func (s *Sampler) Next() (*models.Frame, bool) {
	if s.done {
		return nil, false
	}
	for {
		if (s.decoded+1)%s.interval != 0 {
			if !s.src.Skip() {
				s.done = true
				return nil, false
			}
			s.decoded++
			continue
		}

		frame, ok := s.src.Read()
		if !ok {
			s.done = true
			return nil, false
		}
		frame.Index = s.decoded
		frame.Timestamp = s.offset(s.decoded)
		s.decoded++
		s.sampled++
		return frame, true
	}
}

// Stats returns the counters collected so far.
func (s *Sampler) Stats() Stats {
	return Stats{
		Advertised: s.src.FrameCount(),
		Decoded:    s.decoded,
		Sampled:    s.sampled,
	}
}

func (s *Sampler) offset(index int) time.Duration {
	return time.Duration(float64(index) / s.fps * float64(time.Second))
}
