package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"incident-worker-go/internal/models"
)

// IncidentReader is the read side of the incident store.
type IncidentReader interface {
	List() []models.Incident
	Get(id string) (models.Incident, bool)
}

type IncidentHandler struct {
	incidents IncidentReader
}

func NewIncidentHandler(incidents IncidentReader) *IncidentHandler {
	return &IncidentHandler{incidents: incidents}
}

// ListIncidents godoc
// @Summary List incidents
// @Description Get all recorded incidents in creation order
// @Tags incidents
// @Produce json
// @Param cameraId query string false "Only incidents of this camera"
// @Success 200 {array} models.Incident
// @Router /api/incidents [get]
func (h *IncidentHandler) ListIncidents(c *gin.Context) {
	all := h.incidents.List()

	cameraID := c.Query("cameraId")
	if cameraID == "" {
		c.JSON(http.StatusOK, all)
		return
	}

	filtered := make([]models.Incident, 0, len(all))
	for _, inc := range all {
		if inc.CameraID == cameraID {
			filtered = append(filtered, inc)
		}
	}
	c.JSON(http.StatusOK, filtered)
}

// GetIncident godoc
// @Summary Get incident
// @Description Get a single incident by id
// @Tags incidents
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} models.Incident
// @Failure 404 {object} ErrorResponse
// @Router /api/incidents/{id} [get]
func (h *IncidentHandler) GetIncident(c *gin.Context) {
	inc, ok := h.incidents.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Incident not found"})
		return
	}
	c.JSON(http.StatusOK, inc)
}
