package feed

import "errors"

var (
	ErrNotConnected   = errors.New("stream not connected")
	ErrSnapshotStatus = errors.New("snapshot request failed")
	errStopped        = errors.New("supervisor stopped")
)
