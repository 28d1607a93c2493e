package models

import "errors"

var (
	// ErrSourceUnreadable means the video could not be opened or decoded at all.
	ErrSourceUnreadable = errors.New("video source unreadable")
	// ErrArtifactWrite means an incident image or clip could not be written.
	ErrArtifactWrite = errors.New("artifact write failed")
	// ErrDetectorFailure means the detector failed for a single frame.
	ErrDetectorFailure = errors.New("detector failure")
	// ErrClipInProgress is returned when a clip is already open for the camera.
	ErrClipInProgress = errors.New("incident clip already in progress")

	ErrUnknownCamera = errors.New("unknown camera")
	ErrQueueFull     = errors.New("pipeline queue full")
	ErrShuttingDown  = errors.New("worker shutting down")
)
