package xloop

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Middleware composes processing concerns around an Invoker. Middlewares
// configured on the builder are chained around every subscription's handler
// at subscribe time.
type Middleware func(next Invoker) Invoker

// RetryConfig controls retry behavior for processing middleware.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first execution.
	MaxAttempts int
	// Backoff computes the base wait before the next attempt (e.g., exponential backoff).
	Backoff func(attempt int) time.Duration
	// RetryIf, when provided, returns true if the error should be retried.
	// If nil, all errors are retried (bounded by MaxAttempts).
	RetryIf func(err error) bool
	// Jitter adds a random delay in [0, Jitter) to the base backoff to avoid thundering herds.
	Jitter time.Duration
}

// RetryMiddleware provides bounded, selective retries around a handler.
// Retries run on whichever goroutine is dispatching, so long backoffs on the
// dispatcher delay subsequent events.
func RetryMiddleware(cfg RetryConfig) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, payload any) error {
			var lastErr error
			attempts := cfg.MaxAttempts
			if attempts < 1 {
				attempts = 1
			}
			shouldRetry := cfg.RetryIf
			if shouldRetry == nil {
				shouldRetry = func(error) bool { return true }
			}
			for i := 1; i <= attempts; i++ {
				lastErr = next(ctx, payload)
				if lastErr == nil {
					return nil
				}
				if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return lastErr
				}
				if i == attempts || !shouldRetry(lastErr) {
					return lastErr
				}
				if cfg.Backoff != nil {
					wait := cfg.Backoff(i)
					if cfg.Jitter > 0 {
						wait += time.Duration(rand.Int63n(int64(cfg.Jitter)))
					}
					select {
					case <-ctx.Done():
						return lastErr
					case <-time.After(wait):
					}
				}
			}
			return lastErr
		}
	}
}

// TimeoutMiddleware enforces a maximum processing time for a handler.
// When exceeded, it returns context.DeadlineExceeded; the handler goroutine
// is left to finish on its own.
func TimeoutMiddleware(d time.Duration) Middleware {
	if d <= 0 {
		return func(next Invoker) Invoker { return next }
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, payload any) error {
			tctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			errCh := make(chan error, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						errCh <- fmt.Errorf("panic recovered: %v", r)
					}
				}()
				errCh <- next(tctx, payload)
			}()

			select {
			case <-tctx.Done():
				return tctx.Err()
			case err := <-errCh:
				return err
			}
		}
	}
}

// RecoveryMiddleware converts handler panics into errors. The dispatcher
// already contains panics at the invocation site; use this when a chain
// needs recovery inside an outer middleware (e.g. so Retry sees the error).
func RecoveryMiddleware() Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, payload any) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()
			return next(ctx, payload)
		}
	}
}

// Chain composes middlewares around an invoker in order.
func Chain(inv Invoker, mws ...Middleware) Invoker {
	if len(mws) == 0 {
		return inv
	}
	wrapped := inv
	// Apply in reverse so that first middleware wraps last.
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
