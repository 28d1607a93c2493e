package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"incident-worker-go/internal/metrics"
	"incident-worker-go/internal/models"
)

// Detector runs object detection on a single frame. Implementations must not
// mutate the frame and may block for as long as inference takes.
type Detector interface {
	Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(ctx context.Context, frame *models.Frame) ([]models.Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	return f(ctx, frame)
}

// ConfidenceFilter drops detections below a confidence floor and detections whose
// confidence is not a probability.
type ConfidenceFilter struct {
	Next  Detector
	Floor float64
}

func (f ConfidenceFilter) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	detections, err := f.Next.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	kept := detections[:0:0]
	for _, d := range detections {
		if d.Confidence < 0 || d.Confidence > 1 {
			log.Debug().
				Str("label", d.Label).
				Float64("confidence", d.Confidence).
				Msg("Dropping detection with out-of-range confidence")
			continue
		}
		if d.Confidence < f.Floor {
			continue
		}
		kept = append(kept, d)
	}
	return kept, nil
}

// Instrumented records latency and failures of the wrapped detector. Errors are
// wrapped with models.ErrDetectorFailure.
type Instrumented struct {
	Next Detector
}

func (i Instrumented) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	start := time.Now()
	detections, err := i.Next.Detect(ctx, frame)
	metrics.RecordDetectorLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordDetectorFailure()
		return nil, fmt.Errorf("%w: %w", models.ErrDetectorFailure, err)
	}
	return detections, nil
}

// Wrap applies the standard adapters: failures are instrumented and
// low-confidence detections are removed before they reach the trigger.
func Wrap(d Detector, floor float64) Detector {
	return ConfidenceFilter{Next: Instrumented{Next: d}, Floor: floor}
}
