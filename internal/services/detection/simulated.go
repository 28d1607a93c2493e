package detection

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"incident-worker-go/internal/models"
)

// DefaultSimulatedClasses is the label vocabulary of the simulated detector.
var DefaultSimulatedClasses = []string{
	"person", "bicycle", "car", "motorcycle", "bus", "truck",
	"traffic light", "fire hydrant", "stop sign", "vehicle collision",
	"person fall", "accident", "traffic accident", "fire", "smoke",
}

// Simulated is a stand-in for a real model. Each frame gets one to five ordinary
// objects and, with AccidentProbability, one accident-class object.
type Simulated struct {
	classes             []string
	accidentLabels      []string
	normalLabels        []string
	accidentProbability float64
	latency             time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated detector. seed 0 picks a random seed.
func NewSimulated(accidentLabels []string, accidentProbability float64, latency time.Duration, seed uint64) *Simulated {
	if seed == 0 {
		seed = rand.Uint64()
	}
	accident := models.NewLabelSet(accidentLabels...)
	var normal []string
	for _, c := range DefaultSimulatedClasses {
		if !accident.Contains(c) {
			normal = append(normal, c)
		}
	}
	return &Simulated{
		classes:             DefaultSimulatedClasses,
		accidentLabels:      append([]string(nil), accidentLabels...),
		normalLabels:        normal,
		accidentProbability: accidentProbability,
		latency:             latency,
		rng:                 rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Simulated) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	width, height := frame.Width, frame.Height
	var detections []models.Detection

	for n := 1 + s.rng.IntN(5); n > 0; n-- {
		label := s.normalLabels[s.rng.IntN(len(s.normalLabels))]
		detections = append(detections, s.box(label, width, height, 100, 50, 200, 0.6, 0.9))
	}

	if len(s.accidentLabels) > 0 && s.rng.Float64() < s.accidentProbability {
		label := s.accidentLabels[s.rng.IntN(len(s.accidentLabels))]
		detections = append(detections, s.box(label, width, height, 150, 100, 250, 0.75, 0.98))
	}

	return detections, nil
}

// box places a random box of minSize..maxSize inside the frame, keeping margin free on the right and bottom.
func (s *Simulated) box(label string, width, height, margin, minSize, maxSize int, minConf, maxConf float64) models.Detection {
	x1 := s.intn(width - margin)
	y1 := s.intn(height - margin)
	x2 := min(width, x1+minSize+s.intn(maxSize-minSize+1))
	y2 := min(height, y1+minSize+s.intn(maxSize-minSize+1))
	return models.Detection{
		Label:      label,
		Confidence: minConf + s.rng.Float64()*(maxConf-minConf),
		X:          x1,
		Y:          y1,
		Width:      max(0, x2-x1),
		Height:     max(0, y2-y1),
	}
}

func (s *Simulated) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.IntN(n)
}
