// Package opencv holds the gocv-backed implementations of the pipeline's
// video, drawing and encoding seams.
package opencv

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"incident-worker-go/internal/models"
)

// Video decodes a video file frame by frame.
type Video struct {
	path  string
	cap   *gocv.VideoCapture
	img   gocv.Mat
	bgr   gocv.Mat
	fps   float64
	count int
}

// OpenVideo opens a video file for decoding. The returned error wraps
// models.ErrSourceUnreadable when the container cannot be opened.
func OpenVideo(path string) (*Video, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrSourceUnreadable, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: %s", models.ErrSourceUnreadable, path)
	}

	v := &Video{
		path:  path,
		cap:   cap,
		img:   gocv.NewMat(),
		bgr:   gocv.NewMat(),
		fps:   cap.Get(gocv.VideoCaptureFPS),
		count: int(cap.Get(gocv.VideoCaptureFrameCount)),
	}

	log.Debug().
		Str("path", path).
		Float64("fps", v.fps).
		Int("frame_count", v.count).
		Float64("width", cap.Get(gocv.VideoCaptureFrameWidth)).
		Float64("height", cap.Get(gocv.VideoCaptureFrameHeight)).
		Msg("Opened video file")

	return v, nil
}

func (v *Video) FPS() float64 { return v.fps }

func (v *Video) FrameCount() int { return max(0, v.count) }

func (v *Video) Read() (*models.Frame, bool) {
	if ok := v.cap.Read(&v.img); !ok || v.img.Empty() {
		return nil, false
	}

	src := v.img
	switch v.img.Channels() {
	case 3:
	case 4:
		gocv.CvtColor(v.img, &v.bgr, gocv.ColorBGRAToBGR)
		src = v.bgr
	case 1:
		gocv.CvtColor(v.img, &v.bgr, gocv.ColorGrayToBGR)
		src = v.bgr
	default:
		log.Warn().Str("path", v.path).Int("channels", v.img.Channels()).Msg("Unsupported channel count, stopping decode")
		return nil, false
	}

	return &models.Frame{
		Width:  src.Cols(),
		Height: src.Rows(),
		Data:   src.ToBytes(),
	}, true
}

// Skip decodes the next frame into a scratch buffer without copying it out.
func (v *Video) Skip() bool {
	return v.cap.Read(&v.img) && !v.img.Empty()
}

func (v *Video) Close() error {
	v.img.Close()
	v.bgr.Close()
	return v.cap.Close()
}
