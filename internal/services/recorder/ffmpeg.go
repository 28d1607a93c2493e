package recorder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"incident-worker-go/internal/models"
)

// FFmpeg encodes artifacts by piping raw BGR24 frames into an ffmpeg process.
type FFmpeg struct {
	Path         string
	StopTimeout  time.Duration
	ReadyTimeout time.Duration
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, StopTimeout: 5 * time.Second, ReadyTimeout: 2 * time.Second}
}

func rawInputArgs(width, height int, fps float64) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24", // OpenCV default format
		"-s", fmt.Sprintf("%dx%d", width, height),
	}
	if fps > 0 {
		args = append(args, "-r", strconv.FormatFloat(fps, 'f', -1, 64))
	}
	return append(args, "-i", "-") // Read from stdin
}

func imageArgs(path string, width, height int) []string {
	return append(rawInputArgs(width, height, 0),
		"-frames:v", "1",
		"-loglevel", "warning",
		path,
	)
}

func clipArgs(path string, fps float64, width, height int) []string {
	return append(rawInputArgs(width, height, fps),
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart", // Optimize for streaming
		"-f", "mp4",
		"-loglevel", "warning",
		path,
	)
}

func checkFrameSize(frame *models.Frame, width, height int) error {
	if expected := width * height * 3; len(frame.Data) != expected {
		return fmt.Errorf("frame size mismatch: got %d bytes, expected %d", len(frame.Data), expected)
	}
	return nil
}

func (f *FFmpeg) WriteImage(path string, frame *models.Frame) error {
	if err := checkFrameSize(frame, frame.Width, frame.Height); err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.Command(f.Path, imageArgs(path, frame.Width, frame.Height)...)
	cmd.Stdin = bytes.NewReader(frame.Data)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg image encode failed: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

func (f *FFmpeg) OpenClip(path string, fps float64, width, height int) (ClipWriter, error) {
	cmd := exec.Command(f.Path, clipArgs(path, fps, width, height)...)
	cmd.WaitDelay = f.StopTimeout

	// Set up stdin pipe for frame data
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	clip := &ffmpegClip{
		cmd:          cmd,
		stdin:        stdin,
		path:         path,
		width:        width,
		height:       height,
		stopTimeout:  f.StopTimeout,
		readyTimeout: f.ReadyTimeout,
		exited:       make(chan struct{}),
	}
	cmd.Stderr = &clip.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start FFmpeg: %w", err)
	}
	go clip.wait()

	log.Debug().
		Str("clip_path", path).
		Int("width", width).
		Int("height", height).
		Float64("fps", fps).
		Msg("FFmpeg process started for incident clip")

	return clip, nil
}

type ffmpegClip struct {
	cmd          *exec.Cmd
	stdin        io.WriteCloser
	path         string
	width        int
	height       int
	stopTimeout  time.Duration
	readyTimeout time.Duration

	// stderr and waitErr are only read after exited is closed
	stderr  bytes.Buffer
	waitErr error
	exited  chan struct{}
}

func (c *ffmpegClip) wait() {
	c.waitErr = c.cmd.Wait()
	close(c.exited)
}

func (c *ffmpegClip) hasExited() bool {
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

func (c *ffmpegClip) exitError() error {
	msg := bytes.TrimSpace(c.stderr.Bytes())
	if c.waitErr != nil {
		return fmt.Errorf("ffmpeg exited: %w: %s", c.waitErr, msg)
	}
	return fmt.Errorf("ffmpeg exited before the clip was complete: %s", msg)
}

// Ready blocks until ffmpeg has created the clip file. It fails when the
// process exits first or the file does not appear within the ready timeout.
func (c *ffmpegClip) Ready() error {
	deadline := time.NewTimer(c.readyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for {
		if fileExists(c.path) && !c.hasExited() {
			return nil
		}
		select {
		case <-c.exited:
			if c.waitErr == nil && fileExists(c.path) {
				return nil
			}
			return c.exitError()
		case <-deadline.C:
			return fmt.Errorf("ffmpeg did not create %s within %s", c.path, c.readyTimeout)
		case <-tick.C:
		}
	}
}

func (c *ffmpegClip) Write(frame *models.Frame) error {
	if err := checkFrameSize(frame, c.width, c.height); err != nil {
		return err
	}
	if c.hasExited() {
		return c.exitError()
	}
	if _, err := c.stdin.Write(frame.Data); err != nil {
		return fmt.Errorf("failed to write frame data to FFmpeg: %w", err)
	}
	return nil
}

// Close ends the input stream and waits for ffmpeg to finish the file,
// interrupting and finally killing it if it does not exit in time.
func (c *ffmpegClip) Close() error {
	c.stdin.Close()

	select {
	case <-c.exited:
		return c.closeResult()
	case <-time.After(c.stopTimeout):
	}

	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		log.Warn().Err(err).Msg("Failed to send interrupt to FFmpeg")
	}
	select {
	case <-c.exited:
		return c.closeResult()
	case <-time.After(c.stopTimeout):
	}

	c.cmd.Process.Kill()
	<-c.exited
	log.Warn().Str("clip_path", c.path).Msg("Force killed FFmpeg process")
	return fmt.Errorf("ffmpeg did not exit within %s", 2*c.stopTimeout)
}

func (c *ffmpegClip) closeResult() error {
	if c.waitErr != nil {
		return c.exitError()
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
