package xloop

import (
	"context"
	"reflect"
)

// SubscribeOption configures a subscription at creation time.
type SubscribeOption func(*subscribeConfig)

type subscribeConfig struct {
	minPriority Priority
}

// WithMinPriority sets the lowest event priority the handler will observe.
// Events below it are skipped for this subscription only. Default: Normal.
func WithMinPriority(p Priority) SubscribeOption {
	return func(c *subscribeConfig) {
		if p.valid() {
			c.minPriority = p
		}
	}
}

// Subscribe registers handler for payloads of type T and returns the
// subscription id. Handlers for a type run in subscription order. There is
// no duplicate detection; subscribing the same function twice yields two
// subscriptions. Returns 0 when handler is nil.
func Subscribe[T any](l *Loop, handler func(ctx context.Context, ev T) error, opts ...SubscribeOption) uint64 {
	if l == nil || handler == nil {
		return 0
	}

	cfg := subscribeConfig{minPriority: PriorityNormal}
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}

	// Downcasting shim, set up once at subscribe time. The type assertion
	// cannot fail for envelopes routed by the registry token; a mismatch is
	// skipped silently.
	inv := Invoker(func(ctx context.Context, payload any) error {
		ev, ok := payload.(T)
		if !ok {
			return nil
		}
		return handler(ctx, ev)
	})
	inv = Chain(inv, l.middlewares...)

	id := l.ids.next()
	l.registry.add(typeToken[T](), &subscription{
		id:          id,
		minPriority: cfg.minPriority,
		invoke:      inv,
	})
	return id
}

// Unsubscribe removes the subscription with the given id from T's handler
// list and reports whether it existed. A dispatch already in flight still
// completes against its snapshot.
func Unsubscribe[T any](l *Loop, id uint64) bool {
	if l == nil {
		return false
	}
	return l.registry.remove(typeToken[T](), id)
}

// AddFilter attaches a predicate to the subscription, replacing any previous
// filter. Only payloads the filter accepts reach the handler. Reports
// whether the target subscription exists. A nil filter clears it.
func AddFilter[T any](l *Loop, id uint64, filter func(ev T) bool) bool {
	if l == nil {
		return false
	}
	if filter == nil {
		return l.registry.setFilter(typeToken[T](), id, nil)
	}
	shim := func(payload any) bool {
		ev, ok := payload.(T)
		return ok && filter(ev)
	}
	return l.registry.setFilter(typeToken[T](), id, shim)
}

// typeToken is the registry key for T: a stable runtime type identity that
// also works for interface types.
func typeToken[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
