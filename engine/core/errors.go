package core

import (
	"errors"
)

var (
	// resource exhaustion, returned to the caller
	ErrAtlasCapacityExceeded = errors.New("texture atlas capacity exceeded")
	ErrOutOfDeviceMemory     = errors.New("out of device memory")

	ErrInvalidImage    = errors.New("invalid image data")
	ErrInvalidFont     = errors.New("invalid font data")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrFrameNotStarted = errors.New("frame not started, call BeginFrame first")
	ErrFrameInProgress = errors.New("frame already in progress")
	ErrQueueFull       = errors.New("queue is full")
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrWatcherClosed   = errors.New("asset watcher already closed")
	ErrUnknownWindow   = errors.New("unknown window")
	ErrBackendShutdown = errors.New("backend already shut down")
)
