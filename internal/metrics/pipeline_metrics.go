package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels are limited to camera id and fixed enums; cameras are a small, config-seeded set.

var (
	// FramesSampledTotal counts frames handed to the detector
	FramesSampledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_frames_sampled_total",
			Help: "Total frames sampled for detection",
		},
		[]string{"camera"},
	)

	// DetectorLatency tracks detector call latency
	DetectorLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detector_latency_ms",
			Help:    "Detector latency in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000},
		},
	)

	// DetectorFailuresTotal counts per-frame detector failures
	DetectorFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detector_failures_total",
			Help: "Total frames skipped because the detector failed",
		},
	)

	// IncidentsTotal counts stored incidents
	IncidentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incidents_created_total",
			Help: "Total incidents stored by type and severity",
		},
		[]string{"type", "severity"},
	)

	// ArtifactFailuresTotal counts incidents dropped because artifacts could not be written
	ArtifactFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "incident_artifact_failures_total",
			Help: "Total incident candidates dropped due to artifact write failures",
		},
	)

	// NotificationsTotal counts incident alerts by delivery result
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incident_notifications_total",
			Help: "Total incident notifications by delivery result",
		},
		[]string{"result"},
	)

	// PipelineRunsTotal counts finished pipeline runs by result
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total pipeline runs by result",
		},
		[]string{"result"},
	)

	// PipelinesActive is the number of runs currently executing
	PipelinesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipelines_active",
			Help: "Pipeline runs currently executing",
		},
	)
)

func RecordFrameSampled(camera string) {
	FramesSampledTotal.WithLabelValues(camera).Inc()
}

func RecordDetectorLatency(latencyMs float64) {
	DetectorLatency.Observe(latencyMs)
}

func RecordDetectorFailure() {
	DetectorFailuresTotal.Inc()
}

func RecordIncident(incidentType, severity string) {
	IncidentsTotal.WithLabelValues(incidentType, severity).Inc()
}

func RecordArtifactFailure() {
	ArtifactFailuresTotal.Inc()
}

func RecordNotification(sent bool) {
	result := "undelivered"
	if sent {
		result = "sent"
	}
	NotificationsTotal.WithLabelValues(result).Inc()
}

func RecordRun(result string) {
	PipelineRunsTotal.WithLabelValues(result).Inc()
}
