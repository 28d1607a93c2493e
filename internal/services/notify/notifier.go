package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"incident-worker-go/internal/metrics"
	"incident-worker-go/internal/models"
)

// Deliverer publishes a message and reports how many receivers accepted it.
type Deliverer interface {
	Deliver(subject string, data interface{}) (int, error)
}

// Notifier sends one alert per configured recipient for every incident and
// keeps the outcome of each in memory.
type Notifier struct {
	out        Deliverer
	subject    string
	recipients []string
	logger     zerolog.Logger
	now        func() time.Time

	mu   sync.RWMutex
	sent []models.Notification
}

func New(out Deliverer, subject string, recipients []string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		out:        out,
		subject:    subject,
		recipients: append([]string(nil), recipients...),
		logger:     logger,
		now:        time.Now,
	}
}

// Recipients returns the configured recipient count.
func (n *Notifier) Recipients() int {
	return len(n.recipients)
}

// Notify alerts every recipient about inc. A notification counts as sent once
// at least one receiver accepted it.
func (n *Notifier) Notify(inc models.Incident) []models.Notification {
	out := make([]models.Notification, 0, len(n.recipients))
	for _, recipient := range n.recipients {
		created := n.now()
		note := models.Notification{
			IncidentID: inc.ID,
			Recipient:  recipient,
			Type:       models.NotificationAlert,
			CreatedAt:  created,
		}

		delivered, err := n.deliver(models.NotificationMessage{
			Notification: note,
			CameraID:     inc.CameraID,
			Location:     inc.Location,
			IncidentType: inc.Type,
			Severity:     inc.Severity,
			ImageURL:     inc.ImageURL,
			VideoURL:     inc.VideoURL,
		})
		if err != nil {
			n.logger.Warn().Err(err).Str("incident_id", inc.ID).Str("recipient", recipient).Msg("Notification delivery failed")
		}
		if delivered > 0 {
			note.Sent = true
			note.SentAt = &created
		}
		metrics.RecordNotification(note.Sent)
		out = append(out, note)
	}

	n.mu.Lock()
	n.sent = append(n.sent, out...)
	n.mu.Unlock()
	return out
}

func (n *Notifier) deliver(msg models.NotificationMessage) (int, error) {
	if n.out == nil || n.subject == "" {
		return 0, nil
	}
	return n.out.Deliver(n.subject, msg)
}

// List returns recorded notifications in send order, optionally limited to
// one incident.
func (n *Notifier) List(incidentID string) []models.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]models.Notification, 0, len(n.sent))
	for _, note := range n.sent {
		if incidentID == "" || note.IncidentID == incidentID {
			out = append(out, note)
		}
	}
	return out
}

// Delivered counts the notifications in notes that reached a receiver.
func Delivered(notes []models.Notification) int {
	count := 0
	for _, note := range notes {
		if note.Sent {
			count++
		}
	}
	return count
}
