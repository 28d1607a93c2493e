package models

import "time"

// NotificationAlert is the notification type raised for new incidents.
const NotificationAlert = "incident_alert"

// Notification is one incident alert addressed to a single recipient.
type Notification struct {
	IncidentID string     `json:"incidentId"`
	Recipient  string     `json:"recipient"`
	Type       string     `json:"type"`
	Sent       bool       `json:"sent"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// NotificationMessage is the payload published for each recipient.
type NotificationMessage struct {
	Notification
	CameraID     string   `json:"cameraId"`
	Location     string   `json:"location"`
	IncidentType string   `json:"incidentType"`
	Severity     Severity `json:"severity"`
	ImageURL     string   `json:"imageUrl"`
	VideoURL     string   `json:"videoUrl"`
}
