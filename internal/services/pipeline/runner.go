package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"incident-worker-go/internal/logging"
	"incident-worker-go/internal/metrics"
	"incident-worker-go/internal/models"
	"incident-worker-go/internal/services/camera"
	"incident-worker-go/internal/services/detection"
	"incident-worker-go/internal/services/incidents"
	"incident-worker-go/internal/services/notify"
	"incident-worker-go/internal/services/recorder"
	"incident-worker-go/internal/services/sampler"
	"incident-worker-go/internal/services/trigger"
)

// Annotator draws detections onto a copy of a frame.
type Annotator interface {
	Annotate(frame *models.Frame, detections []models.Detection) (*models.Frame, error)
}

// Notifier alerts the configured recipients about a new incident.
type Notifier interface {
	Notify(inc models.Incident) []models.Notification
}

// OpenFunc opens a video file for decoding.
type OpenFunc func(path string) (sampler.VideoSource, error)

// Options holds the tunables of a pipeline run.
type Options struct {
	TargetRate      float64
	FallbackFPS     float64
	ClipDuration    time.Duration
	ProcessedDir    string
	ArtifactBaseURL string
	VehicleLabels   []string
	PersonLabels    []string
	Recipients      []string
	IncidentSubject string
	CameraSubject   string
}

// Dependencies are the shared components a Runner operates on.
type Dependencies struct {
	Open      OpenFunc
	Detector  detection.Detector
	Annotator Annotator
	Backend   recorder.Backend
	Trigger   *trigger.Trigger
	Cameras   *camera.Registry
	Incidents *incidents.Store
	Publisher models.MessagePublisher
	Notifier  Notifier
	Logger    zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner executes the incident detection pipeline over one video file at a time
// per camera. Concurrent runs for different cameras are safe.
type Runner struct {
	deps     Dependencies
	opts     Options
	vehicles models.LabelSet
	people   models.LabelSet

	mu      sync.Mutex
	cursors map[string]time.Time
}

func NewRunner(deps Dependencies, opts Options) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Runner{
		deps:     deps,
		opts:     opts,
		vehicles: models.NewLabelSet(opts.VehicleLabels...),
		people:   models.NewLabelSet(opts.PersonLabels...),
		cursors:  make(map[string]time.Time),
	}
}

// run carries the per-execution state of Run.
type run struct {
	cameraID string
	logger   zerolog.Logger
	session  *recorder.Session
}

// Run processes videoPath for cameraID until the video ends or ctx is cancelled.
// Cancellation is checked between frames.
func (r *Runner) Run(ctx context.Context, videoPath, cameraID string) error {
	if !r.deps.Cameras.Has(cameraID) {
		return fmt.Errorf("%w: %s", models.ErrUnknownCamera, cameraID)
	}

	runID := uuid.NewString()
	logger := logging.WithRun(r.deps.Logger, runID, cameraID, videoPath)
	started := time.Now()

	src, err := r.deps.Open(videoPath)
	if err != nil {
		metrics.RecordRun("unreadable")
		logger.Error().Err(err).Msg("Failed to open video")
		if !errors.Is(err, models.ErrSourceUnreadable) {
			err = fmt.Errorf("%w: %w", models.ErrSourceUnreadable, err)
		}
		return err
	}
	defer src.Close()

	s := sampler.New(src, r.opts.TargetRate, r.opts.FallbackFPS)
	anchor := r.anchor(cameraID)

	state := &run{
		cameraID: cameraID,
		logger:   logger,
		session: recorder.NewSession(r.deps.Backend, recorder.Options{
			Dir:          r.opts.ProcessedDir,
			BaseURL:      r.opts.ArtifactBaseURL,
			FPS:          s.FPS(),
			ClipDuration: r.opts.ClipDuration,
		}, logger),
	}

	logger.Info().
		Float64("fps", s.FPS()).
		Int("interval", s.Interval()).
		Int("advertised_frames", src.FrameCount()).
		Msg("Pipeline started")

	videoTime := anchor
	defer func() {
		if err := state.session.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to finalize incident clip")
		}
		r.advance(cameraID, videoTime)
	}()

	for {
		if err := ctx.Err(); err != nil {
			metrics.RecordRun("cancelled")
			logger.Warn().Int("sampled", s.Stats().Sampled).Msg("Pipeline cancelled")
			return err
		}

		frame, ok := s.Next()
		if !ok {
			break
		}
		frame.CameraID = cameraID
		videoTime = anchor.Add(frame.Timestamp)

		r.processFrame(ctx, state, frame, videoTime)
	}

	stats := s.Stats()
	if stats.Partial() {
		logger.Info().
			Int("advertised", stats.Advertised).
			Int("decoded", stats.Decoded).
			Msg("Decoded fewer frames than the container advertised")
	}

	metrics.RecordRun("completed")
	logger.Info().
		Int("decoded", stats.Decoded).
		Int("sampled", stats.Sampled).
		Dur("elapsed", time.Since(started)).
		Msg("Pipeline finished")
	return nil
}

// anchor is the point on a camera's timeline that frame offsets of a new run are
// added to. It never moves backwards across runs.
func (r *Runner) anchor(cameraID string) time.Time {
	now := r.deps.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cursor, ok := r.cursors[cameraID]; ok && cursor.After(now) {
		return cursor
	}
	return now
}

func (r *Runner) advance(cameraID string, t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.After(r.cursors[cameraID]) {
		r.cursors[cameraID] = t
	}
}

func (r *Runner) processFrame(ctx context.Context, state *run, frame *models.Frame, now time.Time) {
	metrics.RecordFrameSampled(state.cameraID)

	detections, err := r.deps.Detector.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() == nil {
			state.logger.Warn().Err(err).Int("frame", frame.Index).Msg("Detection failed, skipping frame")
		}
		r.record(state, frame)
		r.settle(state, now)
		return
	}

	annotated, err := r.deps.Annotator.Annotate(frame, detections)
	if err != nil {
		state.logger.Warn().Err(err).Int("frame", frame.Index).Msg("Failed to annotate frame")
		annotated = frame
	}

	// A new incident is only considered once the current clip is finished.
	if state.session.Active() {
		r.record(state, annotated)
	} else if candidate, ok := r.deps.Trigger.Evaluate(state.cameraID, detections, now); ok {
		candidate.Frame = annotated
		r.raise(state, candidate, detections)
	}

	r.settle(state, now)
}

func (r *Runner) record(state *run, frame *models.Frame) {
	if !state.session.Active() {
		return
	}
	if _, err := state.session.Append(frame); err != nil {
		state.logger.Error().Err(err).Int("frame", frame.Index).Msg("Failed to record incident clip frame")
	}
}

// raise persists an incident: artifacts are written under the reserved id before
// the record is appended, and only a stored incident changes camera state.
func (r *Runner) raise(state *run, candidate *models.IncidentCandidate, detections []models.Detection) {
	wall := r.deps.Now()
	location, _ := r.deps.Cameras.Location(state.cameraID)

	incident, err := r.deps.Incidents.Create(func(id string) (models.Incident, error) {
		artifacts, err := state.session.Start(id, wall, candidate.Frame)
		if err != nil {
			return models.Incident{}, err
		}
		inc := models.Incident{
			ID:         id,
			CameraID:   state.cameraID,
			Location:   location,
			Timestamp:  wall.UTC().Format(time.RFC3339),
			Type:       candidate.Detection.Label,
			Severity:   candidate.Severity,
			ImageURL:   artifacts.ImageURL,
			VideoURL:   artifacts.VideoURL,
			Detections: []models.Detection{candidate.Detection},
			Details: models.IncidentDetails{
				VehiclesInvolved: r.vehicles.Count(detections),
				PeopleDetected:   r.people.Count(detections),
			},
		}
		// artifacts exist at this point, so alerts may link to them
		if r.deps.Notifier != nil {
			delivered := notify.Delivered(r.deps.Notifier.Notify(inc))
			inc.Details.NotificationsSent = delivered > 0
			inc.Details.NotificationRecipients = delivered
		}
		return inc, nil
	})
	if err != nil {
		metrics.RecordArtifactFailure()
		state.logger.Error().
			Err(err).
			Str("type", candidate.Detection.Label).
			Int("frame", candidate.Frame.Index).
			Msg("Dropping incident, artifacts could not be written")
		return
	}

	metrics.RecordIncident(incident.Type, incident.Severity.String())
	state.logger.Info().
		Str("incident_id", incident.ID).
		Str("type", incident.Type).
		Str("severity", incident.Severity.String()).
		Float64("confidence", candidate.Detection.Confidence).
		Int("frame", candidate.Frame.Index).
		Msg("Incident detected")

	cam, err := r.deps.Cameras.MarkIncident(state.cameraID, candidate.Detection)
	if err != nil {
		state.logger.Error().Err(err).Msg("Failed to update camera status")
		return
	}

	r.publish(state, r.opts.IncidentSubject, models.IncidentEvent{
		Incident:   incident,
		Recipients: r.opts.Recipients,
	})
	r.publishCamera(state, cam, wall)
}

func (r *Runner) settle(state *run, now time.Time) {
	last, ok := r.deps.Trigger.LastIncident(state.cameraID)
	if !ok {
		return
	}
	cam, changed, err := r.deps.Cameras.Settle(state.cameraID, state.session.Active(), now.Sub(last))
	if err != nil {
		state.logger.Error().Err(err).Msg("Failed to settle camera status")
		return
	}
	if changed {
		state.logger.Info().Msg("Camera back to monitoring")
		r.publishCamera(state, cam, r.deps.Now())
	}
}

func (r *Runner) publishCamera(state *run, cam models.Camera, at time.Time) {
	r.publish(state, r.opts.CameraSubject, models.CameraEvent{
		CameraID:   cam.ID,
		Status:     cam.Status,
		Detections: cam.Detections,
		At:         at,
	})
}

func (r *Runner) publish(state *run, subject string, event interface{}) {
	if r.deps.Publisher == nil || subject == "" {
		return
	}
	if err := r.deps.Publisher.Publish(subject, event); err != nil {
		state.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}
