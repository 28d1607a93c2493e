package recorder

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"incident-worker-go/internal/models"
)

// Backend writes incident artifacts to disk.
type Backend interface {
	WriteImage(path string, frame *models.Frame) error
	OpenClip(path string, fps float64, width, height int) (ClipWriter, error)
}

// ClipWriter receives the frames of a single clip. Close finalizes the file.
type ClipWriter interface {
	Write(frame *models.Frame) error
	Close() error
}

// readyWaiter is implemented by clip writers whose output file appears
// asynchronously after the first frame.
type readyWaiter interface {
	Ready() error
}

// Artifacts describes the files written for one incident.
type Artifacts struct {
	ImagePath string
	ClipPath  string
	ImageURL  string
	VideoURL  string
}

// Options configures a recording session.
type Options struct {
	Dir          string
	BaseURL      string
	FPS          float64
	ClipDuration time.Duration
}

// ArtifactNames returns the still image and clip file names for an incident.
func ArtifactNames(id string, at time.Time) (image, clip string) {
	stamp := at.Format("20060102_150405")
	base := fmt.Sprintf("incident_%s_%s", id, stamp)
	return base + ".jpg", base + ".mp4"
}

// ClipFrames is the number of decoded frames a clip spans after its first frame.
func ClipFrames(fps float64, clipDuration time.Duration) int {
	return max(1, int(math.Round(fps*clipDuration.Seconds())))
}

// Session records incident artifacts for one pipeline run. At most one clip
// is open at a time. A Session is not safe for concurrent use.
type Session struct {
	backend    Backend
	opts       Options
	clipFrames int
	logger     zerolog.Logger

	clip       ClipWriter
	startIndex int
	written    int
	current    Artifacts
}

func NewSession(backend Backend, opts Options, logger zerolog.Logger) *Session {
	return &Session{
		backend:    backend,
		opts:       opts,
		clipFrames: ClipFrames(opts.FPS, opts.ClipDuration),
		logger:     logger,
	}
}

// Active reports whether a clip is currently open.
func (s *Session) Active() bool {
	return s.clip != nil
}

// Start writes the still image for an incident and opens its clip with frame
// as the first frame. Nothing is left on disk when it fails.
func (s *Session) Start(id string, at time.Time, frame *models.Frame) (Artifacts, error) {
	if s.clip != nil {
		return Artifacts{}, models.ErrClipInProgress
	}

	if err := os.MkdirAll(s.opts.Dir, 0755); err != nil {
		return Artifacts{}, fmt.Errorf("%w: failed to create output directory: %w", models.ErrArtifactWrite, err)
	}

	imageName, clipName := ArtifactNames(id, at)
	artifacts := Artifacts{
		ImagePath: filepath.Join(s.opts.Dir, imageName),
		ClipPath:  filepath.Join(s.opts.Dir, clipName),
		ImageURL:  s.opts.BaseURL + "/" + imageName,
		VideoURL:  s.opts.BaseURL + "/" + clipName,
	}

	if err := s.backend.WriteImage(artifacts.ImagePath, frame); err != nil {
		removeQuietly(artifacts.ImagePath)
		return Artifacts{}, fmt.Errorf("%w: image %s: %w", models.ErrArtifactWrite, imageName, err)
	}

	clip, err := s.backend.OpenClip(artifacts.ClipPath, s.opts.FPS, frame.Width, frame.Height)
	if err != nil {
		removeQuietly(artifacts.ImagePath, artifacts.ClipPath)
		return Artifacts{}, fmt.Errorf("%w: clip %s: %w", models.ErrArtifactWrite, clipName, err)
	}

	if err := writeFirst(clip, frame); err != nil {
		err = errors.Join(err, clip.Close())
		removeQuietly(artifacts.ImagePath, artifacts.ClipPath)
		return Artifacts{}, fmt.Errorf("%w: clip %s: %w", models.ErrArtifactWrite, clipName, err)
	}

	s.clip = clip
	s.startIndex = frame.Index
	s.written = 1
	s.current = artifacts

	s.logger.Info().
		Str("incident_id", id).
		Str("image", artifacts.ImagePath).
		Str("clip", artifacts.ClipPath).
		Int("clip_frames", s.clipFrames).
		Msg("Incident recording started")

	return artifacts, nil
}

// Append forwards a frame into the open clip and finalizes the clip once it
// spans the configured duration. It reports whether the clip was closed.
func (s *Session) Append(frame *models.Frame) (bool, error) {
	if s.clip == nil {
		return false, nil
	}

	var writeErr error
	if err := s.clip.Write(frame); err != nil {
		writeErr = fmt.Errorf("failed to write clip frame %d: %w", frame.Index, err)
	} else {
		s.written++
	}

	if frame.Index-s.startIndex < s.clipFrames {
		return false, writeErr
	}
	return true, errors.Join(writeErr, s.finish())
}

// Close finalizes an open clip, if any.
func (s *Session) Close() error {
	if s.clip == nil {
		return nil
	}
	return s.finish()
}

func (s *Session) finish() error {
	err := s.clip.Close()
	s.logger.Info().
		Str("clip", s.current.ClipPath).
		Int("frames_written", s.written).
		Msg("Incident recording finished")

	s.clip = nil
	s.written = 0
	s.current = Artifacts{}
	if err != nil {
		return fmt.Errorf("failed to finalize clip: %w", err)
	}
	return nil
}

// writeFirst writes the opening frame and waits until the clip file exists.
func writeFirst(clip ClipWriter, frame *models.Frame) error {
	if err := clip.Write(frame); err != nil {
		return err
	}
	if r, ok := clip.(readyWaiter); ok {
		return r.Ready()
	}
	return nil
}

func removeQuietly(paths ...string) {
	for _, p := range paths {
		os.Remove(p)
	}
}
