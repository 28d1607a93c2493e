package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"incident-worker-go/internal/models"
)

// CameraReader is the read side of the camera registry.
type CameraReader interface {
	List() []models.Camera
	Get(id string) (models.Camera, bool)
}

type CameraHandler struct {
	cameras CameraReader
}

func NewCameraHandler(cameras CameraReader) *CameraHandler {
	return &CameraHandler{cameras: cameras}
}

// ListCameras godoc
// @Summary List cameras
// @Description Get all configured cameras with their current monitoring status
// @Tags cameras
// @Produce json
// @Success 200 {array} models.Camera
// @Router /api/cameras [get]
func (h *CameraHandler) ListCameras(c *gin.Context) {
	c.JSON(http.StatusOK, h.cameras.List())
}

// GetCamera godoc
// @Summary Get camera
// @Description Get a single camera with its current status and detections
// @Tags cameras
// @Produce json
// @Param id path string true "Camera ID"
// @Success 200 {object} models.Camera
// @Failure 404 {object} ErrorResponse
// @Router /api/cameras/{id} [get]
func (h *CameraHandler) GetCamera(c *gin.Context) {
	cam, ok := h.cameras.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Camera not found"})
		return
	}
	c.JSON(http.StatusOK, cam)
}
