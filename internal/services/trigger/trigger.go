package trigger

import (
	"sync"
	"time"

	"incident-worker-go/internal/models"
)

// Trigger decides which accident detections become incidents.
// It keeps the time of the last accepted incident per camera and suppresses
// new ones until minInterval has passed.
type Trigger struct {
	labels      models.LabelSet
	minInterval time.Duration

	mu   sync.RWMutex
	last map[string]time.Time
}

// New creates a trigger for the given accident labels and debounce window.
func New(accidentLabels []string, minInterval time.Duration) *Trigger {
	return &Trigger{
		labels:      models.NewLabelSet(accidentLabels...),
		minInterval: minInterval,
		last:        make(map[string]time.Time),
	}
}

// Evaluate returns a candidate when detections contain an accident label and the
// camera is outside its debounce window. The most confident accident detection wins;
// on equal confidence the earliest one in detections is kept.
func (t *Trigger) Evaluate(cameraID string, detections []models.Detection, now time.Time) (*models.IncidentCandidate, bool) {
	best := -1
	for i, det := range detections {
		if !t.labels.Contains(det.Label) {
			continue
		}
		if best < 0 || det.Confidence > detections[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[cameraID]; ok && now.Sub(last) <= t.minInterval {
		return nil, false
	}
	t.last[cameraID] = now

	det := detections[best]
	return &models.IncidentCandidate{
		CameraID:    cameraID,
		Detection:   det,
		Severity:    models.SeverityFor(det.Confidence),
		TriggeredAt: now,
	}, true
}

// LastIncident returns when the camera last triggered, false if it never did.
func (t *Trigger) LastIncident(cameraID string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	last, ok := t.last[cameraID]
	return last, ok
}
