package service

import "errors"

var (
	// ErrRecordingActive is returned when a replay is requested while a
	// recording writes to the same store.
	ErrRecordingActive = errors.New("recording in progress")
	// ErrReplayActive is returned when a recording is requested while a
	// replay reads from the same store.
	ErrReplayActive = errors.New("replay in progress")
)
