package domain

import "errors"

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrPeerNotFound        = errors.New("peer not found")
	ErrStreamerPresent     = errors.New("room already has an active streamer")
	ErrRecordingNotFound   = errors.New("recording not found")
	ErrStoreUnavailable    = errors.New("recording store unavailable")
	ErrStaleConnectionID   = errors.New("stale connection id")
	ErrRecordingInProgress = errors.New("recording in progress")
	ErrCaptureFailed       = errors.New("capture acquisition failed")
)
