package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"incident-worker-go/internal/models"
)

// NotificationReader lists the recorded incident alerts.
type NotificationReader interface {
	List(incidentID string) []models.Notification
}

type NotificationHandler struct {
	notifications NotificationReader
}

func NewNotificationHandler(notifications NotificationReader) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications godoc
// @Summary List notifications
// @Description Get the alerts sent for incidents, one per recipient, with their delivery result
// @Tags incidents
// @Produce json
// @Param incidentId query string false "Only notifications of this incident"
// @Success 200 {array} models.Notification
// @Router /api/notifications [get]
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, h.notifications.List(c.Query("incidentId")))
}
