package opencv

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"incident-worker-go/internal/models"
)

// cocoLabels covers the SSD COCO classes the pipeline cares about when no label file is given.
var cocoLabels = map[int]string{
	1: "person",
	2: "bicycle",
	3: "car",
	4: "motorcycle",
	6: "bus",
	8: "truck",
}

// DNN runs an SSD-style network whose output rows are
// [batch, class, confidence, x1, y1, x2, y2] with normalized coordinates.
type DNN struct {
	mu     sync.Mutex
	net    gocv.Net
	labels map[int]string
}

// NewDNN loads a network. labelsPath is optional; see LoadLabels for its format.
func NewDNN(modelPath, configPath, labelsPath string) (*DNN, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %w", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("config file not found: %w", err)
	}

	labels := cocoLabels
	if labelsPath != "" {
		loaded, err := LoadLabels(labelsPath)
		if err != nil {
			return nil, err
		}
		labels = loaded
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable target: %w", err)
	}

	log.Info().Str("model", modelPath).Int("labels", len(labels)).Msg("Detection network initialized")
	return &DNN{net: net, labels: labels}, nil
}

// LoadLabels reads a label map with one "<class id> <label>" pair per line.
// Blank lines and lines starting with '#' are ignored.
func LoadLabels(path string) (map[int]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open label file: %w", err)
	}
	defer f.Close()

	labels := make(map[int]string)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		idText, label, ok := strings.Cut(text, " ")
		if !ok {
			return nil, fmt.Errorf("%s:%d: expected \"<id> <label>\"", path, line)
		}
		id, err := strconv.Atoi(idText)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid class id %q", path, line, idText)
		}
		labels[id] = strings.TrimSpace(label)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read label file: %w", err)
	}
	return labels, nil
}

func (d *DNN) Detect(ctx context.Context, frame *models.Frame) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	raw := make([][7]float32, rows.Rows())
	for i := range raw {
		for j := 0; j < 7; j++ {
			raw[i][j] = rows.GetFloatAt(i, j)
		}
	}
	return decodeSSD(raw, d.labels, mat.Cols(), mat.Rows()), nil
}

// decodeSSD converts SSD rows into pixel-space detections. Unknown classes are
// reported as class_<id>; confidence filtering is left to the caller.
func decodeSSD(rows [][7]float32, labels map[int]string, width, height int) []models.Detection {
	var detections []models.Detection
	for _, r := range rows {
		confidence := float64(r[2])
		if confidence <= 0 {
			continue
		}
		classID := int(r[1])
		label, ok := labels[classID]
		if !ok {
			label = fmt.Sprintf("class_%d", classID)
		}

		x1 := clamp(int(r[3]*float32(width)), 0, width)
		y1 := clamp(int(r[4]*float32(height)), 0, height)
		x2 := clamp(int(r[5]*float32(width)), 0, width)
		y2 := clamp(int(r[6]*float32(height)), 0, height)

		detections = append(detections, models.Detection{
			Label:      label,
			Confidence: confidence,
			X:          x1,
			Y:          y1,
			Width:      max(0, x2-x1),
			Height:     max(0, y2-y1),
		})
	}
	return detections
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
