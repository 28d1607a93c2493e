package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"incident-worker-go/internal/services/pipeline"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error" example:"Camera not found"`
}

// LoadReporter reports pipeline load.
type LoadReporter interface {
	Stats() pipeline.Stats
}

type HealthHandler struct {
	WorkerID string
	Version  string
	Detector string
	load     LoadReporter
}

func NewHealthHandler(workerID, version, detector string, load LoadReporter) *HealthHandler {
	return &HealthHandler{WorkerID: workerID, Version: version, Detector: detector, load: load}
}

type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	WorkerID string `json:"worker_id" example:"worker-1"`
}

type StatusResponse struct {
	Status    string         `json:"status" example:"running"`
	Message   string         `json:"message" example:"AI Accident Detection System is operational"`
	Version   string         `json:"version" example:"1.0.0"`
	Detector  string         `json:"detector" example:"simulated"`
	Pipelines pipeline.Stats `json:"pipelines"`
}

type WorkerInfoResponse struct {
	WorkerID     string   `json:"worker_id" example:"worker-1"`
	Status       string   `json:"status" example:"running"`
	Version      string   `json:"version" example:"1.0.0"`
	Capabilities []string `json:"capabilities"`
}

// @Summary Health check
// @Description Check if the worker is healthy and responsive
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		WorkerID: h.WorkerID,
	})
}

// @Summary System status
// @Description Get operational status and current pipeline load
// @Tags health
// @Produce json
// @Success 200 {object} StatusResponse
// @Router /api/status [get]
func (h *HealthHandler) Status(c *gin.Context) {
	resp := StatusResponse{
		Status:   "running",
		Message:  "AI Accident Detection System is operational",
		Version:  h.Version,
		Detector: h.Detector,
	}
	if h.load != nil {
		resp.Pipelines = h.load.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Worker information
// @Description Get basic worker information and capabilities
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} WorkerInfoResponse
// @Router / [get]
func (h *HealthHandler) WorkerInfo(c *gin.Context) {
	c.JSON(http.StatusOK, WorkerInfoResponse{
		WorkerID: h.WorkerID,
		Status:   "running",
		Version:  h.Version,
		Capabilities: []string{
			"video_upload",
			"incident_detection",
			"incident_clips",
			"event_streaming",
		},
	})
}
