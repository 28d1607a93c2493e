package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"incident-worker-go/internal/models"
	"incident-worker-go/internal/services/camera"
	"incident-worker-go/internal/services/detection"
	"incident-worker-go/internal/services/incidents"
	"incident-worker-go/internal/services/notify"
	"incident-worker-go/internal/services/recorder/recordertest"
	"incident-worker-go/internal/services/sampler"
	"incident-worker-go/internal/services/sampler/samplertest"
	"incident-worker-go/internal/services/trigger"
)

var wallClock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type passthrough struct{}

func (passthrough) Annotate(frame *models.Frame, _ []models.Detection) (*models.Frame, error) {
	return frame.Clone(), nil
}

type published struct {
	subject string
	event   interface{}
}

type capturePublisher struct {
	mu     sync.Mutex
	events []published
	onPub  func(subject string, event interface{})
	// receivers is what Deliver reports per message
	receivers int
}

func (p *capturePublisher) Deliver(subject string, data interface{}) (int, error) {
	if err := p.Publish(subject, data); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receivers, nil
}

func (p *capturePublisher) notifications() []models.NotificationMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.NotificationMessage
	for _, e := range p.events {
		if msg, ok := e.event.(models.NotificationMessage); ok && e.subject == "incidents.notifications" {
			out = append(out, msg)
		}
	}
	return out
}

func (p *capturePublisher) Publish(subject string, data interface{}) error {
	if p.onPub != nil {
		p.onPub(subject, data)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{subject: subject, event: data})
	return nil
}

func (p *capturePublisher) cameraStatuses() []models.CameraStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.CameraStatus
	for _, e := range p.events {
		if ev, ok := e.event.(models.CameraEvent); ok {
			out = append(out, ev.Status)
		}
	}
	return out
}

func (p *capturePublisher) incidents() []models.IncidentEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.IncidentEvent
	for _, e := range p.events {
		if ev, ok := e.event.(models.IncidentEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

// accidentFrom reports a vehicle collision together with a car and a person on
// every frame at or after index from.
func accidentFrom(from int) detection.Detector {
	return detection.DetectorFunc(func(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
		dets := []models.Detection{
			{Label: "car", Confidence: 0.8, X: 0, Y: 0, Width: 2, Height: 1},
			{Label: "person", Confidence: 0.7, X: 1, Y: 0, Width: 1, Height: 1},
		}
		if frame.Index >= from {
			dets = append(dets, models.Detection{Label: "vehicle collision", Confidence: 0.9, X: 0, Y: 0, Width: 3, Height: 2})
		}
		return dets, nil
	})
}

type harness struct {
	runner    *Runner
	cameras   *camera.Registry
	store     *incidents.Store
	trigger   *trigger.Trigger
	backend   *recordertest.Backend
	publisher *capturePublisher
	notifier  *notify.Notifier
	dir       string
	sources   []*samplertest.Source
}

func newHarness(t *testing.T, det detection.Detector, minInterval time.Duration) *harness {
	t.Helper()
	h := &harness{
		cameras:   camera.NewRegistry(models.DefaultCameras(), 3*time.Second),
		store:     incidents.NewStore(),
		trigger:   trigger.New([]string{"vehicle collision", "person fall", "accident", "traffic accident"}, minInterval),
		backend:   recordertest.New(),
		publisher: &capturePublisher{receivers: 1},
		dir:       filepath.Join(t.TempDir(), "processed"),
	}
	recipients := []string{"ops@example.com", "dispatch@example.com"}
	h.notifier = notify.New(h.publisher, "incidents.notifications", recipients, zerolog.Nop())
	h.runner = NewRunner(Dependencies{
		Open: func(path string) (sampler.VideoSource, error) {
			if strings.HasSuffix(path, "broken.mp4") {
				return nil, errors.New("moov atom not found")
			}
			src := &samplertest.Source{Rate: 30, Frames: 300}
			h.sources = append(h.sources, src)
			return src, nil
		},
		Detector:  det,
		Annotator: passthrough{},
		Backend:   h.backend,
		Trigger:   h.trigger,
		Cameras:   h.cameras,
		Incidents: h.store,
		Publisher: h.publisher,
		Notifier:  h.notifier,
		Logger:    zerolog.Nop(),
		Now:       func() time.Time { return wallClock },
	}, Options{
		TargetRate:      4,
		FallbackFPS:     30,
		ClipDuration:    3 * time.Second,
		ProcessedDir:    h.dir,
		ArtifactBaseURL: "/processed",
		VehicleLabels:   []string{"car", "truck", "bus", "motorcycle", "bicycle"},
		PersonLabels:    []string{"person"},
		Recipients:      recipients,
		IncidentSubject: "incidents.created",
		CameraSubject:   "cameras.status",
	})
	return h
}

func TestRunTenSecondScenario(t *testing.T) {
	statusAt := make(map[int]models.CameraStatus)
	var h *harness
	inner := accidentFrom(150)
	h = newHarness(t, detection.DetectorFunc(func(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
		cam, _ := h.cameras.Get("cam1")
		statusAt[frame.Index] = cam.Status
		return inner.Detect(ctx, frame)
	}), 5*time.Second)

	require.NoError(t, h.runner.Run(context.Background(), "/videos/crash.mp4", "cam1"))

	// status seen by frame N reflects processing up to the previous sampled frame
	assert.Equal(t, models.CameraStatusMonitoring, statusAt[151])
	assert.Equal(t, models.CameraStatusIncident, statusAt[159])
	assert.Equal(t, models.CameraStatusIncident, statusAt[247])
	assert.Equal(t, models.CameraStatusMonitoring, statusAt[255])

	require.Equal(t, 1, h.store.Len())
	inc, ok := h.store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "cam1", inc.CameraID)
	assert.Equal(t, "I-95 North, Mile 42", inc.Location)
	assert.Equal(t, "vehicle collision", inc.Type)
	assert.Equal(t, models.SeverityHigh, inc.Severity)
	assert.Equal(t, "2024-05-01T12:00:00Z", inc.Timestamp)
	assert.Equal(t, "/processed/incident_1_20240501_120000.jpg", inc.ImageURL)
	assert.Equal(t, "/processed/incident_1_20240501_120000.mp4", inc.VideoURL)
	require.Len(t, inc.Detections, 1)
	assert.Equal(t, 0.9, inc.Detections[0].Confidence)
	assert.Equal(t, models.IncidentDetails{
		VehiclesInvolved:       1,
		PeopleDetected:         1,
		NotificationsSent:      true,
		NotificationRecipients: 2,
	}, inc.Details)

	clip := filepath.Join(h.dir, "incident_1_20240501_120000.mp4")
	assert.Equal(t, []int{151, 159, 167, 175, 183, 191, 199, 207, 215, 223, 231, 239, 247}, h.backend.ClipFrames(clip))
	assert.True(t, h.backend.Closed(clip))

	cam, _ := h.cameras.Get("cam1")
	assert.Equal(t, models.CameraStatusMonitoring, cam.Status)
	assert.Empty(t, cam.Detections)

	assert.Equal(t, []models.CameraStatus{models.CameraStatusIncident, models.CameraStatusMonitoring}, h.publisher.cameraStatuses())
	events := h.publisher.incidents()
	require.Len(t, events, 1)
	assert.Equal(t, inc, events[0].Incident)
	assert.Len(t, events[0].Recipients, 2)

	alerts := h.publisher.notifications()
	require.Len(t, alerts, 2)
	assert.Equal(t, "ops@example.com", alerts[0].Recipient)
	assert.Equal(t, "1", alerts[0].IncidentID)
	assert.Equal(t, inc.VideoURL, alerts[1].VideoURL)

	require.Len(t, h.sources, 1)
	assert.True(t, h.sources[0].Closed())
	assert.Equal(t, 37, h.sources[0].Reads())
}

func TestRunWritesArtifactsBeforePublishing(t *testing.T) {
	h := newHarness(t, accidentFrom(0), 5*time.Second)
	h.publisher.onPub = func(subject string, event interface{}) {
		if msg, ok := event.(models.NotificationMessage); ok {
			assert.FileExists(t, filepath.Join(h.dir, strings.TrimPrefix(msg.ImageURL, "/processed/")))
			return
		}
		ev, ok := event.(models.IncidentEvent)
		if !ok {
			return
		}
		name := strings.TrimPrefix(ev.Incident.ImageURL, "/processed/")
		assert.FileExists(t, filepath.Join(h.dir, name))
		_, stored := h.store.Get(ev.Incident.ID)
		assert.True(t, stored)
	}

	require.NoError(t, h.runner.Run(context.Background(), "/videos/a.mp4", "cam2"))
	assert.NotZero(t, h.store.Len())
}

func TestRunArtifactFailureDropsIncident(t *testing.T) {
	h := newHarness(t, accidentFrom(0), 5*time.Second)
	h.backend.FailImage = true

	require.NoError(t, h.runner.Run(context.Background(), "/videos/a.mp4", "cam1"))

	assert.Zero(t, h.store.Len())
	assert.Empty(t, h.publisher.incidents())
	assert.Empty(t, h.publisher.cameraStatuses())

	cam, _ := h.cameras.Get("cam1")
	assert.Equal(t, models.CameraStatusMonitoring, cam.Status)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// the debounce window still moved, so a failing disk cannot cause a retry storm
	_, ok := h.trigger.LastIncident("cam1")
	assert.True(t, ok)
}

func TestRunFinishesClipBeforeNextIncident(t *testing.T) {
	h := newHarness(t, accidentFrom(0), 0)

	require.NoError(t, h.runner.Run(context.Background(), "/videos/a.mp4", "cam3"))

	list := h.store.List()
	require.Len(t, list, 3)
	for i, inc := range list {
		assert.Equal(t, []string{"1", "2", "3"}[i], inc.ID)
	}

	first := filepath.Join(h.dir, "incident_1_20240501_120000.mp4")
	second := filepath.Join(h.dir, "incident_2_20240501_120000.mp4")
	third := filepath.Join(h.dir, "incident_3_20240501_120000.mp4")
	assert.Equal(t, 7, h.backend.ClipFrames(first)[0])
	assert.Equal(t, 103, h.backend.ClipFrames(first)[len(h.backend.ClipFrames(first))-1])
	assert.Equal(t, 111, h.backend.ClipFrames(second)[0])
	assert.Equal(t, 215, h.backend.ClipFrames(third)[0])
	assert.True(t, h.backend.Closed(third), "open clip is finalized at end of run")

	assert.Equal(t, []models.CameraStatus{
		models.CameraStatusIncident, models.CameraStatusMonitoring,
		models.CameraStatusIncident, models.CameraStatusMonitoring,
		models.CameraStatusIncident,
	}, h.publisher.cameraStatuses())
}

func TestRunContinuesAfterDetectorFailure(t *testing.T) {
	inner := accidentFrom(151)
	h := newHarness(t, detection.Wrap(detection.DetectorFunc(func(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
		if frame.Index < 100 || frame.Index == 151 {
			return nil, errors.New("inference timeout")
		}
		return inner.Detect(ctx, frame)
	}), 0.5), 5*time.Second)

	require.NoError(t, h.runner.Run(context.Background(), "/videos/a.mp4", "cam1"))

	require.Equal(t, 1, h.store.Len())
	clip := filepath.Join(h.dir, "incident_1_20240501_120000.mp4")
	assert.Equal(t, 159, h.backend.ClipFrames(clip)[0])
}

func TestRunUnreadableSource(t *testing.T) {
	h := newHarness(t, accidentFrom(0), 5*time.Second)

	err := h.runner.Run(context.Background(), "/videos/broken.mp4", "cam1")
	assert.ErrorIs(t, err, models.ErrSourceUnreadable)
	assert.Zero(t, h.store.Len())
}

func TestRunUnknownCamera(t *testing.T) {
	h := newHarness(t, accidentFrom(0), 5*time.Second)

	err := h.runner.Run(context.Background(), "/videos/a.mp4", "cam9")
	assert.ErrorIs(t, err, models.ErrUnknownCamera)
	assert.Empty(t, h.sources)
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, accidentFrom(0), 5*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.runner.Run(ctx, "/videos/a.mp4", "cam1")
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, h.sources, 1)
	assert.True(t, h.sources[0].Closed())
	assert.Zero(t, h.store.Len())
}

func TestRunTimelineContinuesAcrossRuns(t *testing.T) {
	h := newHarness(t, accidentFrom(0), 5*time.Second)

	require.NoError(t, h.runner.Run(context.Background(), "/videos/a.mp4", "cam1"))
	first, ok := h.trigger.LastIncident("cam1")
	require.True(t, ok)
	assert.Equal(t, 2, h.store.Len())

	// the wall clock is frozen, so only the per-camera timeline lets the second
	// video raise incidents of its own
	require.NoError(t, h.runner.Run(context.Background(), "/videos/b.mp4", "cam1"))
	second, ok := h.trigger.LastIncident("cam1")
	require.True(t, ok)
	assert.True(t, second.After(first))
	assert.Equal(t, 4, h.store.Len())
}

func TestRunNotificationsReflectDeliveries(t *testing.T) {
	h := newHarness(t, accidentFrom(150), 5*time.Second)
	h.publisher.receivers = 0

	require.NoError(t, h.runner.Run(context.Background(), "/videos/a.mp4", "cam1"))

	inc, ok := h.store.Get("1")
	require.True(t, ok)
	assert.False(t, inc.Details.NotificationsSent)
	assert.Zero(t, inc.Details.NotificationRecipients)

	notes := h.notifier.List("1")
	require.Len(t, notes, 2)
	for _, note := range notes {
		assert.False(t, note.Sent)
		assert.Nil(t, note.SentAt)
	}
}

func TestRunWithoutNotifier(t *testing.T) {
	h := newHarness(t, accidentFrom(150), 5*time.Second)
	h.runner.deps.Notifier = nil

	require.NoError(t, h.runner.Run(context.Background(), "/videos/a.mp4", "cam1"))

	inc, ok := h.store.Get("1")
	require.True(t, ok)
	assert.Equal(t, models.IncidentDetails{VehiclesInvolved: 1, PeopleDetected: 1}, inc.Details)
	assert.Empty(t, h.publisher.notifications())
}
