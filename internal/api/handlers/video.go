package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"incident-worker-go/internal/logging"
	"incident-worker-go/internal/models"
	"incident-worker-go/internal/services/ingest"
)

// PipelineStarter queues a video for processing.
type PipelineStarter interface {
	StartPipeline(videoPath, cameraID string) error
}

type VideoHandler struct {
	uploadDir     string
	maxUploadSize int64
	cameras       CameraReader
	pipelines     PipelineStarter
	now           func() time.Time
}

type UploadResponse struct {
	Message  string `json:"message" example:"File uploaded successfully"`
	Filename string `json:"filename" example:"1714564800_crash.mp4"`
	Path     string `json:"path" example:"uploads/1714564800_crash.mp4"`
	CameraID string `json:"cameraId" example:"cam1"`
}

type VideoFile struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

func NewVideoHandler(uploadDir string, maxUploadSize int64, cameras CameraReader, pipelines PipelineStarter) *VideoHandler {
	return &VideoHandler{
		uploadDir:     uploadDir,
		maxUploadSize: maxUploadSize,
		cameras:       cameras,
		pipelines:     pipelines,
		now:           time.Now,
	}
}

// Upload godoc
// @Summary Upload a video
// @Description Upload a video file and start incident detection on it for a camera
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Video file (mp4, avi, mov)"
// @Param cameraId formData string false "Camera ID (default: cam1)"
// @Success 200 {object} UploadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/upload [post]
func (h *VideoHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No file part"})
		return
	}

	cameraID := c.DefaultPostForm("cameraId", "cam1")
	c.Set("camera_id", cameraID)

	name := filepath.Base(file.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "No selected file"})
		return
	}
	if !ingest.IsSupportedVideo(name) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "File type not allowed"})
		return
	}
	if _, ok := h.cameras.Get(cameraID); !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown camera"})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		logging.Error(c).Err(err).Msg("Failed to create upload directory")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to save file"})
		return
	}

	filename := fmt.Sprintf("%d_%s", h.now().Unix(), name)
	path := filepath.Join(h.uploadDir, filename)
	if err := c.SaveUploadedFile(file, path); err != nil {
		logging.Error(c).Err(err).Str("path", path).Msg("Failed to save uploaded file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to save file"})
		return
	}

	if err := h.pipelines.StartPipeline(path, cameraID); err != nil {
		logging.Warn(c).Err(err).Str("path", path).Msg("Failed to start pipeline")
		switch {
		case errors.Is(err, models.ErrUnknownCamera):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Unknown camera"})
		case errors.Is(err, models.ErrQueueFull), errors.Is(err, models.ErrShuttingDown):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to start processing"})
		}
		return
	}

	logging.Info(c).Str("path", path).Int64("size", file.Size).Msg("Video uploaded")
	c.JSON(http.StatusOK, UploadResponse{
		Message:  "File uploaded successfully",
		Filename: filename,
		Path:     path,
		CameraID: cameraID,
	})
}

// ListVideos godoc
// @Summary List uploaded videos
// @Description Get all uploaded video files
// @Tags videos
// @Produce json
// @Success 200 {array} VideoFile
// @Failure 500 {object} ErrorResponse
// @Router /api/videos [get]
func (h *VideoHandler) ListVideos(c *gin.Context) {
	entries, err := os.ReadDir(h.uploadDir)
	if err != nil && !os.IsNotExist(err) {
		logging.Error(c).Err(err).Msg("Failed to list uploads")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to list videos"})
		return
	}

	videos := make([]VideoFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !ingest.IsSupportedVideo(e.Name()) {
			continue
		}
		videos = append(videos, VideoFile{Filename: e.Name(), Path: "/uploads/" + e.Name()})
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].Filename < videos[j].Filename })

	c.JSON(http.StatusOK, videos)
}
