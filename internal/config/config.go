package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"incident-worker-go/internal/models"
)

type Config struct {
	// Application
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Logdy (lightweight web log viewer)
	LogdyEnabled bool
	LogdyHost    string
	LogdyPort    int

	// Storage
	UploadDir       string
	ProcessedDir    string
	InboxDir        string // empty disables watch-folder ingest
	ArtifactBaseURL string
	MaxUploadSize   int64

	// Cameras
	CamerasFile string
	Cameras     []models.Camera

	// Sampling
	TargetDetectionRate float64 // detections per second of source video
	FallbackFPS         float64 // used when the container does not report a frame rate

	// Incident trigger
	MinIncidentInterval time.Duration
	ConfidenceFloor     float64
	AccidentLabels      []string
	VehicleLabels       []string
	PersonLabels        []string

	// Clip recording
	ClipDuration     time.Duration
	CameraResetAfter time.Duration
	ClipBackend      string // "opencv" or "ffmpeg"
	ClipCodec        string
	FFmpegPath       string

	// Detector
	Detector               string // "simulated", "grpc" or "dnn"
	SimAccidentProbability float64
	SimDetectorLatency     time.Duration
	SimSeed                uint64
	AIGRPCURL              string
	AITimeout              time.Duration
	DNNModelPath           string
	DNNConfigPath          string
	DNNLabelsPath          string

	// Scheduling
	MaxConcurrentPipelines int
	PipelineQueueSize      int
	IngestSettleDelay      time.Duration

	// Notifications
	NotificationRecipients []string
	NotificationSubject    string

	// NATS (for incident and camera events)
	NatsEnabled        bool
	NatsURL            string
	NatsConnectTimeout time.Duration
	NatsReconnectWait  time.Duration
	NatsMaxReconnects  int
	IncidentSubject    string
	CameraSubject      string

	// Swagger Configuration
	SwaggerHost string

	// Graceful Shutdown
	ShutdownTimeout time.Duration
}

var defaultAccidentLabels = []string{"vehicle collision", "person fall", "accident", "traffic accident"}

func Load() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	cfg := &Config{
		// Application
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "worker-1"),
		Port:        getEnvInt("PORT", 5001),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Logdy
		LogdyEnabled: getEnvBool("LOGDY_ENABLED", false),
		LogdyHost:    getEnv("LOGDY_HOST", "localhost"),
		LogdyPort:    getEnvInt("LOGDY_PORT", 8080),

		// Storage
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		ProcessedDir:    getEnv("PROCESSED_DIR", "processed"),
		InboxDir:        getEnv("INBOX_DIR", ""),
		ArtifactBaseURL: strings.TrimRight(getEnv("ARTIFACT_BASE_URL", "/processed"), "/"),
		MaxUploadSize:   int64(getEnvInt("MAX_UPLOAD_SIZE", 512<<20)),

		CamerasFile: getEnv("CAMERAS_FILE", ""),

		// Sampling
		TargetDetectionRate: getEnvFloat("TARGET_DETECTION_RATE", 4),
		FallbackFPS:         getEnvFloat("FALLBACK_FPS", 30),

		// Incident trigger
		MinIncidentInterval: getEnvDuration("MIN_INCIDENT_INTERVAL", 5*time.Second),
		ConfidenceFloor:     getEnvFloat("CONFIDENCE_FLOOR", 0.5),
		AccidentLabels:      getEnvList("ACCIDENT_LABELS", defaultAccidentLabels),
		VehicleLabels:       getEnvList("VEHICLE_LABELS", []string{"car", "truck", "bus", "motorcycle", "bicycle"}),
		PersonLabels:        getEnvList("PERSON_LABELS", []string{"person"}),

		// Clip recording
		ClipDuration:     getEnvDuration("CLIP_DURATION", 3*time.Second),
		CameraResetAfter: getEnvDuration("CAMERA_RESET_AFTER", 3*time.Second),
		ClipBackend:      getEnv("CLIP_BACKEND", "opencv"),
		ClipCodec:        getEnv("CLIP_CODEC", "mp4v"),
		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),

		// Detector
		Detector:               getEnv("DETECTOR", "simulated"),
		SimAccidentProbability: getEnvFloat("SIM_ACCIDENT_PROBABILITY", 0.02),
		SimDetectorLatency:     getEnvDuration("SIM_DETECTOR_LATENCY", 100*time.Millisecond),
		SimSeed:                uint64(getEnvInt("SIM_SEED", 0)),
		AIGRPCURL:              getEnv("AI_GRPC_URL", "localhost:50052"),
		AITimeout:              getEnvDuration("AI_TIMEOUT", 5*time.Second),
		DNNModelPath:           getEnv("DNN_MODEL_PATH", "models/frozen_inference_graph.pb"),
		DNNConfigPath:          getEnv("DNN_CONFIG_PATH", "models/ssd_mobilenet.pbtxt"),
		DNNLabelsPath:          getEnv("DNN_LABELS_PATH", ""),

		// Scheduling
		MaxConcurrentPipelines: getEnvInt("MAX_CONCURRENT_PIPELINES", 4),
		PipelineQueueSize:      getEnvInt("PIPELINE_QUEUE_SIZE", 8),
		IngestSettleDelay:      getEnvDuration("INGEST_SETTLE_DELAY", 2*time.Second),

		NotificationRecipients: getEnvList("NOTIFICATION_RECIPIENTS", nil),
		NotificationSubject:    getEnv("NOTIFICATION_SUBJECT", "incidents.notifications"),

		// NATS
		NatsEnabled:        getEnvBool("NATS_ENABLED", false),
		NatsURL:            getNatsURL(),
		NatsConnectTimeout: getEnvDuration("NATS_CONNECT_TIMEOUT", 10*time.Second),
		NatsReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		NatsMaxReconnects:  getEnvInt("NATS_MAX_RECONNECTS", -1), // -1 = unlimited
		IncidentSubject:    getEnv("INCIDENT_SUBJECT", "incidents.created"),
		CameraSubject:      getEnv("CAMERA_SUBJECT", "cameras.status"),

		SwaggerHost: getEnv("SWAGGER_HOST", "localhost:5001"),

		// Graceful Shutdown
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	cfg.Cameras = models.DefaultCameras()
	if cfg.CamerasFile != "" {
		cameras, err := LoadCameras(cfg.CamerasFile)
		if err != nil {
			log.Error().Err(err).Str("file", cfg.CamerasFile).Msg("Failed to load camera file, using default cameras")
		} else {
			cfg.Cameras = cameras
		}
	}

	return cfg
}

type camerasFile struct {
	Cameras []models.Camera `yaml:"cameras"`
}

// LoadCameras reads the camera registry seed from a YAML file of the form
//
//	cameras:
//	  - id: cam1
//	    name: Highway Junction A
//	    location: I-95 North, Mile 42
func LoadCameras(path string) ([]models.Camera, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera file: %w", err)
	}

	var file camerasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse camera file: %w", err)
	}

	seen := make(map[string]bool, len(file.Cameras))
	for _, cam := range file.Cameras {
		if cam.ID == "" {
			return nil, fmt.Errorf("camera without id in %s", path)
		}
		if seen[cam.ID] {
			return nil, fmt.Errorf("duplicate camera id %q in %s", cam.ID, path)
		}
		seen[cam.ID] = true
	}
	if len(file.Cameras) == 0 {
		return nil, fmt.Errorf("no cameras defined in %s", path)
	}

	return file.Cameras, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("5s", "250ms") or bare seconds ("5", "0.5").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	log.Warn().Str("key", key).Str("value", value).Dur("default", defaultValue).Msg("Invalid duration, using default")
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvList reads a comma separated list, trimming blanks
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions for Docker environment detection
func isRunningInDocker() bool {
	if os.Getenv("DOCKER_CONTAINER") == "true" {
		return true
	}

	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}

	return false
}

// getNatsURL returns the appropriate NATS URL based on environment
func getNatsURL() string {
	if envURL := os.Getenv("NATS_URL"); envURL != "" {
		return envURL
	}

	// If running in Docker, use service name; otherwise use localhost
	if isRunningInDocker() {
		return "nats://nats:4222"
	}

	return "nats://localhost:4222"
}
