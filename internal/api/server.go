package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"incident-worker-go/internal/api/handlers"
	"incident-worker-go/internal/config"
)

// Dependencies are the services the HTTP layer reads from and submits to.
type Dependencies struct {
	Cameras   handlers.CameraReader
	Incidents handlers.IncidentReader
	Pipelines interface {
		handlers.PipelineStarter
		handlers.LoadReporter
	}
	Events        handlers.EventServer
	Notifications handlers.NotificationReader
}

type Server struct {
	config *config.Config
	router *gin.Engine
	server *http.Server

	healthHandler   *handlers.HealthHandler
	cameraHandler   *handlers.CameraHandler
	incidentHandler *handlers.IncidentHandler
	videoHandler    *handlers.VideoHandler
	eventsHandler   *handlers.EventsHandler
	notifyHandler   *handlers.NotificationHandler
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	s := &Server{
		config:          cfg,
		router:          router,
		healthHandler:   handlers.NewHealthHandler(cfg.WorkerID, cfg.Version, cfg.Detector, deps.Pipelines),
		cameraHandler:   handlers.NewCameraHandler(deps.Cameras),
		incidentHandler: handlers.NewIncidentHandler(deps.Incidents),
		videoHandler:    handlers.NewVideoHandler(cfg.UploadDir, cfg.MaxUploadSize, deps.Cameras, deps.Pipelines),
	}
	if deps.Events != nil {
		s.eventsHandler = handlers.NewEventsHandler(deps.Events)
	}
	if deps.Notifications != nil {
		s.notifyHandler = handlers.NewNotificationHandler(deps.Notifications)
	}
	return s
}

func (s *Server) Setup() error {
	s.setupMiddleware()

	s.setupRoutes()

	s.setupSwagger()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}

	return nil
}

func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("Starting incident worker API")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Stopping incident worker API")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
