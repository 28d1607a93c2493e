package models

// IncidentDetails carries the summary counters shown with an incident.
type IncidentDetails struct {
	VehiclesInvolved       int  `json:"vehiclesInvolved"`
	PeopleDetected         int  `json:"peopleDetected"`
	NotificationsSent      bool `json:"notificationsSent"`
	NotificationRecipients int  `json:"notificationRecipients"`
}

// Incident is a persisted accident record. It is never modified after it is stored.
type Incident struct {
	ID         string          `json:"id"`
	CameraID   string          `json:"cameraId"`
	Location   string          `json:"location"`
	Timestamp  string          `json:"timestamp"`
	Type       string          `json:"type"`
	Severity   Severity        `json:"severity"`
	ImageURL   string          `json:"imageUrl"`
	VideoURL   string          `json:"videoUrl"`
	Detections []Detection     `json:"detections"`
	Details    IncidentDetails `json:"details"`
}

// Clone returns a copy that shares no slices with i.
func (i Incident) Clone() Incident {
	out := i
	out.Detections = append([]Detection{}, i.Detections...)
	return out
}

// IncidentEvent is the payload published after an incident is stored.
type IncidentEvent struct {
	Incident   Incident `json:"incident"`
	Recipients []string `json:"recipients,omitempty"`
}

// MessagePublisher interface for publishing incident and camera events
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}
