package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"incident-worker-go/internal/logging"
	"incident-worker-go/internal/metrics"
	"incident-worker-go/internal/models"
)

// RunFunc executes one pipeline run.
type RunFunc func(ctx context.Context, videoPath, cameraID string) error

// CameraChecker reports whether a camera is registered.
type CameraChecker interface {
	Has(id string) bool
}

// Stats is a snapshot of dispatcher load.
type Stats struct {
	Queued  int64 `json:"queued"`
	Running int64 `json:"running"`
}

type job struct {
	videoPath string
}

// Dispatcher schedules pipeline runs. Runs for the same camera execute one at a
// time in submission order; runs for different cameras execute in parallel up to
// the concurrency limit.
type Dispatcher struct {
	run       RunFunc
	cameras   CameraChecker
	sem       *semaphore.Weighted
	queueSize int
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	queues map[string]chan job
	closed bool

	queued  atomic.Int64
	running atomic.Int64
}

func NewDispatcher(run RunFunc, cameras CameraChecker, maxConcurrent, queueSize int, logger zerolog.Logger) *Dispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		run:       run,
		cameras:   cameras,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		queueSize: queueSize,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		queues:    make(map[string]chan job),
	}
}

// StartPipeline queues videoPath for cameraID and returns immediately.
func (d *Dispatcher) StartPipeline(videoPath, cameraID string) error {
	if !d.cameras.Has(cameraID) {
		return fmt.Errorf("%w: %s", models.ErrUnknownCamera, cameraID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return models.ErrShuttingDown
	}

	q, ok := d.queues[cameraID]
	if !ok {
		q = make(chan job, d.queueSize)
		d.queues[cameraID] = q
		d.wg.Add(1)
		go d.worker(cameraID, q)
	}

	select {
	case q <- job{videoPath: videoPath}:
		d.queued.Add(1)
		d.logger.Info().Str("camera_id", cameraID).Str("video", videoPath).Msg("Pipeline queued")
		return nil
	default:
		return fmt.Errorf("%w: camera %s", models.ErrQueueFull, cameraID)
	}
}

func (d *Dispatcher) worker(cameraID string, q <-chan job) {
	defer d.wg.Done()
	logger := logging.WithCamera(d.logger, cameraID)

	for j := range q {
		d.queued.Add(-1)

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			logger.Warn().Str("video", j.videoPath).Msg("Dropping queued pipeline on shutdown")
			continue
		}

		d.running.Add(1)
		metrics.PipelinesActive.Inc()
		err := d.run(d.ctx, j.videoPath, cameraID)
		metrics.PipelinesActive.Dec()
		d.running.Add(-1)
		d.sem.Release(1)

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			logger.Warn().Str("video", j.videoPath).Msg("Pipeline interrupted by shutdown")
		default:
			logger.Error().Err(err).Str("video", j.videoPath).Msg("Pipeline failed")
		}
	}
}

// Stats returns the number of queued and running pipelines.
func (d *Dispatcher) Stats() Stats {
	return Stats{Queued: d.queued.Load(), Running: d.running.Load()}
}

// Shutdown stops accepting work, cancels running pipelines and waits for the
// workers to exit or ctx to expire.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
