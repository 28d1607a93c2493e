package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"incident-worker-go/internal/models"
	"incident-worker-go/internal/services/recorder"
)

const jpegQuality = 90

// Backend writes incident stills with IMWrite and clips with a VideoWriter.
type Backend struct {
	Codec string
}

func NewBackend(codec string) *Backend {
	if codec == "" {
		codec = "mp4v"
	}
	return &Backend{Codec: codec}
}

func frameMat(frame *models.Frame) (gocv.Mat, error) {
	if expected := frame.Width * frame.Height * 3; len(frame.Data) != expected || expected == 0 {
		return gocv.Mat{}, fmt.Errorf("frame size mismatch: got %d bytes for %dx%d", len(frame.Data), frame.Width, frame.Height)
	}
	return gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
}

func (b *Backend) WriteImage(path string, frame *models.Frame) error {
	mat, err := frameMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write image %s", path)
	}
	return nil
}

func (b *Backend) OpenClip(path string, fps float64, width, height int) (recorder.ClipWriter, error) {
	writer, err := gocv.VideoWriterFile(path, b.Codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to open video writer: %w", err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("video writer for %s with codec %s is not open", path, b.Codec)
	}
	return &clipWriter{writer: writer, width: width, height: height}, nil
}

type clipWriter struct {
	writer *gocv.VideoWriter
	width  int
	height int
}

func (c *clipWriter) Write(frame *models.Frame) error {
	if frame.Width != c.width || frame.Height != c.height {
		return fmt.Errorf("frame is %dx%d, clip is %dx%d", frame.Width, frame.Height, c.width, c.height)
	}
	mat, err := frameMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()
	return c.writer.Write(mat)
}

func (c *clipWriter) Close() error {
	return c.writer.Close()
}

// EncodeJPEG converts a BGR24 frame to JPEG bytes.
func EncodeJPEG(frame *models.Frame) ([]byte, error) {
	mat, err := frameMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode BGR as JPEG: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
