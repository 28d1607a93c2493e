package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submission struct {
	path     string
	cameraID string
}

type chanSubmitter chan submission

func (c chanSubmitter) StartPipeline(videoPath, cameraID string) error {
	c <- submission{path: videoPath, cameraID: cameraID}
	return nil
}

func TestIsSupportedVideo(t *testing.T) {
	assert.True(t, IsSupportedVideo("crash.mp4"))
	assert.True(t, IsSupportedVideo("CRASH.MOV"))
	assert.True(t, IsSupportedVideo("/a/b/c.avi"))
	assert.False(t, IsSupportedVideo("notes.txt"))
	assert.False(t, IsSupportedVideo("mp4"))
}

func startWatcher(t *testing.T) (string, chanSubmitter) {
	t.Helper()
	dir := t.TempDir()
	sub := make(chanSubmitter, 4)

	w, err := NewWatcher(dir, []string{"cam1", "cam2"}, 50*time.Millisecond, sub, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Run(ctx)
	return dir, sub
}

func TestWatcherSubmitsSettledVideo(t *testing.T) {
	dir, sub := startWatcher(t)
	assert.DirExists(t, filepath.Join(dir, "cam1"))
	assert.DirExists(t, filepath.Join(dir, "cam2"))

	path := filepath.Join(dir, "cam2", "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("part one"), 0644))

	select {
	case got := <-sub:
		assert.Equal(t, submission{path: path, cameraID: "cam2"}, got)
	case <-time.After(3 * time.Second):
		t.Fatal("video was not submitted")
	}

	select {
	case got := <-sub:
		t.Fatalf("unexpected second submission %v", got)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir, sub := startWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cam1", "readme.txt"), []byte("x"), 0644))

	select {
	case got := <-sub:
		t.Fatalf("unexpected submission %v", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherDropsRemovedFile(t *testing.T) {
	dir, sub := startWatcher(t)

	path := filepath.Join(dir, "cam1", "gone.avi")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	require.NoError(t, os.Remove(path))

	select {
	case got := <-sub:
		t.Fatalf("unexpected submission %v", got)
	case <-time.After(300 * time.Millisecond):
	}
}
