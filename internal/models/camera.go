package models

import "time"

// CameraStatus represents the camera monitoring status
type CameraStatus string

const (
	CameraStatusMonitoring CameraStatus = "monitoring"
	CameraStatusIncident   CameraStatus = "incident"
)

// String returns the string representation of CameraStatus
func (cs CameraStatus) String() string {
	return string(cs)
}

// IsValid checks if the camera status is valid
func (cs CameraStatus) IsValid() bool {
	switch cs {
	case CameraStatusMonitoring, CameraStatusIncident:
		return true
	default:
		return false
	}
}

// Camera is a configured camera together with its current monitoring state.
// Detections holds the detection that raised the current incident and is empty while monitoring.
type Camera struct {
	ID         string       `json:"id" yaml:"id"`
	Name       string       `json:"name" yaml:"name"`
	Location   string       `json:"location" yaml:"location"`
	Status     CameraStatus `json:"status" yaml:"-"`
	Detections []Detection  `json:"detections" yaml:"-"`
}

// Clone returns a copy that shares no slices with c.
func (c Camera) Clone() Camera {
	out := c
	out.Detections = append([]Detection{}, c.Detections...)
	return out
}

// CameraEvent is published whenever a camera changes status.
type CameraEvent struct {
	CameraID   string       `json:"cameraId"`
	Status     CameraStatus `json:"status"`
	Detections []Detection  `json:"detections"`
	At         time.Time    `json:"at"`
}

// DefaultCameras are the cameras registered when no camera file is configured.
func DefaultCameras() []Camera {
	return []Camera{
		{ID: "cam1", Name: "Highway Junction A", Location: "I-95 North, Mile 42"},
		{ID: "cam2", Name: "City Center", Location: "Main St & 5th Ave"},
		{ID: "cam3", Name: "Industrial Park", Location: "Warehouse District, Lot C"},
		{ID: "cam4", Name: "Residential Area", Location: "Oak Street & Elm Drive"},
	}
}
