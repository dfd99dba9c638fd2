package xloop

import (
	"context"
	"time"
)

// PublishOption configures a single publish call.
type PublishOption func(*publishConfig)

type publishConfig struct {
	priority Priority
	mode     DeliveryMode
}

// WithPriority sets the event priority. Default: Normal.
func WithPriority(p Priority) PublishOption {
	return func(c *publishConfig) {
		if p.valid() {
			c.priority = p
		}
	}
}

// Sync delivers inline on the calling goroutine instead of enqueueing for
// the dispatcher. Sync envelopes never enter the queue and are never dropped
// for capacity; after Close a sync publish is discarded without dispatch.
func Sync() PublishOption {
	return func(c *publishConfig) {
		c.mode = DeliverySync
	}
}

// Publish submits payload to every subscription registered for type T.
// Async publishes may be dropped at queue capacity; the drop is observable
// through the dropped statistic, never as an error.
func Publish[T any](l *Loop, payload T, opts ...PublishOption) {
	if l == nil {
		return
	}

	cfg := publishConfig{priority: PriorityNormal, mode: DeliveryAsync}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}

	env := l.newEnvelope(typeToken[T](), payload, cfg.priority, cfg.mode)
	if cfg.mode == DeliverySync {
		l.publishSync(env)
		return
	}
	l.publishAsync(env)
}

// PublishAfter schedules a one-shot task that republishes payload through
// the normal async publish path after delay. Returns the task id; the fire
// is suppressed by CancelTask, and a publish after Stop is dropped.
func PublishAfter[T any](l *Loop, delay time.Duration, payload T, opts ...PublishOption) uint64 {
	if l == nil {
		return 0
	}

	cfg := publishConfig{priority: PriorityNormal, mode: DeliveryAsync}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}

	t := typeToken[T]()
	return l.schedule(delay, 0, func(_ context.Context) error {
		l.publishAsync(l.newEnvelope(t, payload, cfg.priority, DeliveryAsync))
		return nil
	})
}
