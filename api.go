package xloop

import (
	"context"
	"time"
)

// Action is a deferred callable executed by the dispatcher when its task
// fires. A non-nil error counts against the failed statistic.
type Action func(ctx context.Context) error

// Invoker executes a handler against a type-erased payload. Typed handlers
// are wrapped into an Invoker by a downcasting shim at subscribe time.
type Invoker func(ctx context.Context, payload any) error

// Observer receives loop lifecycle events. Implementations should be
// non-blocking; delivery goes through the observer pool.
type Observer interface {
	OnEvent(e LoopEvent)
}

// API represents the non-generic xloop surface for extensibility.
// Subscribe, Unsubscribe, AddFilter, Publish, and PublishAfter are
// package-level generic functions taking a *Loop.
type API interface {
	ScheduleTask(delay time.Duration, action Action) uint64
	ScheduleRepeating(period time.Duration, action Action) uint64
	CancelTask(id uint64) bool

	Run() error
	Stop()
	IsRunning() bool
	Close() error

	SetMaxQueueSize(n int)
	QueueSizes() QueueSizes

	EnableStatistics(enabled bool)
	ResetStatistics()
	GetStatistics() Statistics

	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var _ API = (*Loop)(nil)
