package camera

import (
	"fmt"
	"sync"
	"time"

	"incident-worker-go/internal/models"
)

// Registry holds the configured cameras and their monitoring state.
//
// Status and Detections are always updated together under one lock, so a reader
// never sees an incident camera without its detection or a monitoring camera with one.
type Registry struct {
	mu         sync.RWMutex
	cameras    map[string]*models.Camera
	order      []string
	resetAfter time.Duration
}

// NewRegistry seeds a registry. Every camera starts in monitoring.
// resetAfter is how long after its last incident a camera may return to monitoring.
func NewRegistry(seed []models.Camera, resetAfter time.Duration) *Registry {
	r := &Registry{
		cameras:    make(map[string]*models.Camera, len(seed)),
		resetAfter: resetAfter,
	}
	for _, c := range seed {
		if _, dup := r.cameras[c.ID]; dup {
			continue
		}
		cam := models.Camera{
			ID:         c.ID,
			Name:       c.Name,
			Location:   c.Location,
			Status:     models.CameraStatusMonitoring,
			Detections: []models.Detection{},
		}
		r.cameras[c.ID] = &cam
		r.order = append(r.order, c.ID)
	}
	return r
}

// List returns all cameras in registration order.
func (r *Registry) List() []models.Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Camera, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.cameras[id].Clone())
	}
	return out
}

// Get returns a snapshot of one camera.
func (r *Registry) Get(id string) (models.Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.cameras[id]
	if !ok {
		return models.Camera{}, false
	}
	return cam.Clone(), true
}

// Has reports whether the camera is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cameras[id]
	return ok
}

// Location returns the static location of a camera.
func (r *Registry) Location(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.cameras[id]
	if !ok {
		return "", false
	}
	return cam.Location, true
}

// MarkIncident moves the camera to incident with det as its current detection.
// A camera already in incident keeps that status and takes the newer detection.
func (r *Registry) MarkIncident(id string, det models.Detection) (models.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cam, ok := r.cameras[id]
	if !ok {
		return models.Camera{}, fmt.Errorf("%w: %s", models.ErrUnknownCamera, id)
	}
	cam.Status = models.CameraStatusIncident
	cam.Detections = []models.Detection{det}
	return cam.Clone(), nil
}

// Settle returns an incident camera to monitoring once no clip is being recorded for it
// and more than resetAfter has passed since its last incident. It reports whether the
// status changed.
func (r *Registry) Settle(id string, clipActive bool, sinceLastIncident time.Duration) (models.Camera, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cam, ok := r.cameras[id]
	if !ok {
		return models.Camera{}, false, fmt.Errorf("%w: %s", models.ErrUnknownCamera, id)
	}
	if cam.Status != models.CameraStatusIncident || clipActive || sinceLastIncident <= r.resetAfter {
		return cam.Clone(), false, nil
	}
	cam.Status = models.CameraStatusMonitoring
	cam.Detections = []models.Detection{}
	return cam.Clone(), true, nil
}
