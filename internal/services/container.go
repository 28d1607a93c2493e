package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"incident-worker-go/internal/config"
	"incident-worker-go/internal/logging"
	"incident-worker-go/internal/services/camera"
	"incident-worker-go/internal/services/detection"
	"incident-worker-go/internal/services/incidents"
	"incident-worker-go/internal/services/ingest"
	"incident-worker-go/internal/services/messaging"
	"incident-worker-go/internal/services/notify"
	"incident-worker-go/internal/services/opencv"
	"incident-worker-go/internal/services/pipeline"
	"incident-worker-go/internal/services/recorder"
	"incident-worker-go/internal/services/sampler"
	"incident-worker-go/internal/services/trigger"
)

// ServiceContainer holds all services
type ServiceContainer struct {
	Config     *config.Config
	Cameras    *camera.Registry
	Incidents  *incidents.Store
	Trigger    *trigger.Trigger
	Detector   detection.Detector
	Runner     *pipeline.Runner
	Dispatcher *pipeline.Dispatcher
	Hub        *messaging.Hub
	Messaging  *messaging.Service
	Notifier   *notify.Notifier
	Watcher    *ingest.Watcher

	// closers release detector resources on shutdown
	closers []func(context.Context) error
}

// NewServiceContainer creates a new service container
func NewServiceContainer(cfg *config.Config) (*ServiceContainer, error) {
	for _, dir := range []string{cfg.UploadDir, cfg.ProcessedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	sc := &ServiceContainer{
		Config:    cfg,
		Cameras:   camera.NewRegistry(cfg.Cameras, cfg.CameraResetAfter),
		Incidents: incidents.NewStore(),
		Trigger:   trigger.New(cfg.AccidentLabels, cfg.MinIncidentInterval),
		Hub:       messaging.NewHub(),
	}

	base, err := sc.newDetector()
	if err != nil {
		return nil, err
	}
	sc.Detector = detection.Wrap(base, cfg.ConfidenceFloor)

	publishers := messaging.Fanout{sc.Hub}
	if cfg.NatsEnabled {
		natsSvc, err := messaging.NewService(cfg)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NatsURL).Msg("NATS unavailable, events go to websocket clients only")
		} else {
			sc.Messaging = natsSvc
			publishers = append(publishers, natsSvc)
		}
	}

	sc.Notifier = notify.New(publishers, cfg.NotificationSubject, cfg.NotificationRecipients, logging.NewServiceLogger(cfg, "notify"))

	sc.Runner = pipeline.NewRunner(pipeline.Dependencies{
		Open: func(path string) (sampler.VideoSource, error) {
			v, err := opencv.OpenVideo(path)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Detector:  sc.Detector,
		Annotator: opencv.NewAnnotator(cfg.AccidentLabels).WithCounters(cfg.VehicleLabels, cfg.PersonLabels),
		Backend:   newClipBackend(cfg),
		Trigger:   sc.Trigger,
		Cameras:   sc.Cameras,
		Incidents: sc.Incidents,
		Publisher: publishers,
		Notifier:  sc.Notifier,
		Logger:    logging.NewServiceLogger(cfg, "pipeline"),
	}, pipeline.Options{
		TargetRate:      cfg.TargetDetectionRate,
		FallbackFPS:     cfg.FallbackFPS,
		ClipDuration:    cfg.ClipDuration,
		ProcessedDir:    cfg.ProcessedDir,
		ArtifactBaseURL: cfg.ArtifactBaseURL,
		VehicleLabels:   cfg.VehicleLabels,
		PersonLabels:    cfg.PersonLabels,
		Recipients:      cfg.NotificationRecipients,
		IncidentSubject: cfg.IncidentSubject,
		CameraSubject:   cfg.CameraSubject,
	})

	sc.Dispatcher = pipeline.NewDispatcher(
		sc.Runner.Run,
		sc.Cameras,
		cfg.MaxConcurrentPipelines,
		cfg.PipelineQueueSize,
		logging.NewServiceLogger(cfg, "dispatcher"),
	)

	if cfg.InboxDir != "" {
		ids := make([]string, 0, len(cfg.Cameras))
		for _, cam := range cfg.Cameras {
			ids = append(ids, cam.ID)
		}
		w, err := ingest.NewWatcher(cfg.InboxDir, ids, cfg.IngestSettleDelay, sc.Dispatcher, logging.NewServiceLogger(cfg, "ingest"))
		if err != nil {
			_ = sc.Dispatcher.Shutdown(context.Background())
			return nil, fmt.Errorf("start inbox watcher: %w", err)
		}
		sc.Watcher = w
	}

	return sc, nil
}

func (sc *ServiceContainer) newDetector() (detection.Detector, error) {
	cfg := sc.Config
	switch cfg.Detector {
	case "", "simulated":
		log.Info().
			Float64("accident_probability", cfg.SimAccidentProbability).
			Uint64("seed", cfg.SimSeed).
			Msg("Using simulated detector")
		return detection.NewSimulated(cfg.AccidentLabels, cfg.SimAccidentProbability, cfg.SimDetectorLatency, cfg.SimSeed), nil
	case "grpc":
		svc, err := detection.NewService(cfg.AIGRPCURL, cfg.AITimeout, opencv.EncodeJPEG)
		if err != nil {
			return nil, err
		}
		sc.closers = append(sc.closers, svc.Shutdown)
		return svc, nil
	case "dnn":
		dnn, err := opencv.NewDNN(cfg.DNNModelPath, cfg.DNNConfigPath, cfg.DNNLabelsPath)
		if err != nil {
			return nil, err
		}
		sc.closers = append(sc.closers, closeWith(dnn))
		return dnn, nil
	default:
		return nil, fmt.Errorf("unknown detector %q", cfg.Detector)
	}
}

func newClipBackend(cfg *config.Config) recorder.Backend {
	if cfg.ClipBackend == "ffmpeg" {
		return recorder.NewFFmpeg(cfg.FFmpegPath)
	}
	return opencv.NewBackend(cfg.ClipCodec)
}

func closeWith(c io.Closer) func(context.Context) error {
	return func(context.Context) error { return c.Close() }
}

// Start launches background services that need a running context.
func (sc *ServiceContainer) Start(ctx context.Context) {
	if sc.Watcher != nil {
		go sc.Watcher.Run(ctx)
	}
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.Dispatcher != nil {
		if err := sc.Dispatcher.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("dispatcher: %w", err))
		}
	}

	if sc.Hub != nil {
		if err := sc.Hub.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("websocket hub: %w", err))
		}
	}

	if sc.Messaging != nil {
		if err := sc.Messaging.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("nats: %w", err))
		}
	}

	for _, closeFn := range sc.closers {
		if err := closeFn(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Stats reports incident and pipeline counters for startup and shutdown logs.
func (sc *ServiceContainer) Stats() (incidentCount int, load pipeline.Stats) {
	return sc.Incidents.Len(), sc.Dispatcher.Stats()
}
