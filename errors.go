package xloop

import "errors"

var (
	// ErrAlreadyRunning is returned by Run when the loop is running or has
	// already run; a loop runs at most once.
	ErrAlreadyRunning = errors.New("xloop: loop is already running")

	// ErrLoopClosed is returned by Run after Close.
	ErrLoopClosed = errors.New("xloop: loop is closed")

	// ErrObserverPoolShutdownTimeout is returned when the observer pool fails
	// to drain within the close timeout.
	ErrObserverPoolShutdownTimeout = errors.New("xloop: observer pool shutdown timed out")
)
