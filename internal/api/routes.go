package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"incident-worker-go/internal/api/middleware"
)

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestContext())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.WorkerInfo)
	s.router.GET("/health", s.healthHandler.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.Static("/uploads", s.config.UploadDir)
	s.router.Static("/processed", s.config.ProcessedDir)

	api := s.router.Group("/api")
	{
		api.GET("/status", s.healthHandler.Status)

		api.POST("/upload", s.videoHandler.Upload)
		api.GET("/videos", s.videoHandler.ListVideos)

		api.GET("/cameras", s.cameraHandler.ListCameras)
		api.GET("/cameras/:id", s.cameraHandler.GetCamera)

		api.GET("/incidents", s.incidentHandler.ListIncidents)
		api.GET("/incidents/:id", s.incidentHandler.GetIncident)

		if s.notifyHandler != nil {
			api.GET("/notifications", s.notifyHandler.ListNotifications)
		}
	}

	if s.eventsHandler != nil {
		s.router.GET("/ws/events", s.eventsHandler.Stream)
	}
}
