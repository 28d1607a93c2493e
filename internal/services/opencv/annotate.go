package opencv

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"incident-worker-go/internal/models"
)

var (
	accidentColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	objectColor   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
)

const accidentBanner = "ACCIDENT DETECTED"

// Annotator draws detection boxes onto frames. Accident-class boxes are red and
// add a banner to the frame, everything else is green.
type Annotator struct {
	accident models.LabelSet
	vehicles models.LabelSet
	people   models.LabelSet
}

func NewAnnotator(accidentLabels []string) *Annotator {
	return &Annotator{accident: models.NewLabelSet(accidentLabels...)}
}

// WithCounters adds vehicle and people counters along the bottom edge of annotated frames.
func (a *Annotator) WithCounters(vehicleLabels, personLabels []string) *Annotator {
	a.vehicles = models.NewLabelSet(vehicleLabels...)
	a.people = models.NewLabelSet(personLabels...)
	return a
}

// Annotate returns a new frame with the detections drawn on it. The input frame is not modified.
func (a *Annotator) Annotate(frame *models.Frame, detections []models.Detection) (*models.Frame, error) {
	out := frame.Clone()
	counters := len(a.vehicles) > 0 || len(a.people) > 0
	if len(detections) == 0 && !counters {
		return out, nil
	}

	mat, err := gocv.NewMatFromBytes(out.Height, out.Width, gocv.MatTypeCV8UC3, out.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create Mat from frame: %w", err)
	}
	defer mat.Close()

	accident := false
	for _, det := range detections {
		c := objectColor
		if a.accident.Contains(det.Label) {
			c = accidentColor
			accident = true
		}
		drawBox(&mat, det, c)
	}

	if accident {
		gocv.PutText(&mat, accidentBanner, image.Pt(10, 30), gocv.FontHersheySimplex, 1, accidentColor, 2)
	}

	if counters {
		y := out.Height - 10
		x := 10
		x += drawCounter(&mat, "VEHICLES", a.vehicles.Count(detections), x, y) + 10
		drawCounter(&mat, "PEOPLE", a.people.Count(detections), x, y)
	}

	out.Data = mat.ToBytes()
	return out, nil
}

func drawBox(mat *gocv.Mat, det models.Detection, c color.RGBA) {
	width, height := mat.Cols(), mat.Rows()
	if width < 2 || height < 2 {
		return
	}
	x1 := max(0, min(width-2, det.X))
	y1 := max(0, min(height-2, det.Y))
	x2 := max(x1+1, min(width-1, det.X+det.Width))
	y2 := max(y1+1, min(height-1, det.Y+det.Height))

	gocv.Rectangle(mat, image.Rect(x1, y1, x2, y2), c, 2)

	cornerLength := min(15, (x2-x1)/2, (y2-y1)/2)
	cornerThickness := 3
	gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1+cornerLength, y1), c, cornerThickness)
	gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1, y1+cornerLength), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y1), image.Pt(x2-cornerLength, y1), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y1), image.Pt(x2, y1+cornerLength), c, cornerThickness)
	gocv.Line(mat, image.Pt(x1, y2), image.Pt(x1+cornerLength, y2), c, cornerThickness)
	gocv.Line(mat, image.Pt(x1, y2), image.Pt(x1, y2-cornerLength), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2-cornerLength, y2), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2, y2-cornerLength), c, cornerThickness)

	label := fmt.Sprintf("%s: %.2f", det.Label, det.Confidence)
	gocv.PutText(mat, label, image.Pt(x1, max(12, y1-10)), gocv.FontHersheySimplex, 0.5, c, 2)
}
