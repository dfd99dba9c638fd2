package xloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain_Order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Invoker) Invoker {
			return func(ctx context.Context, payload any) error {
				order = append(order, name)
				return next(ctx, payload)
			}
		}
	}

	inv := Chain(func(_ context.Context, _ any) error {
		order = append(order, "handler")
		return nil
	}, tag("outer"), nil, tag("inner"))

	require.NoError(t, inv(context.Background(), nil))
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestChain_NoMiddleware(t *testing.T) {
	called := false
	inv := Chain(func(_ context.Context, _ any) error {
		called = true
		return nil
	})

	require.NoError(t, inv(context.Background(), nil))
	assert.True(t, called)
}

func TestRetryMiddleware_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	inv := RetryMiddleware(RetryConfig{MaxAttempts: 3})(func(_ context.Context, _ any) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, inv(context.Background(), nil))
	assert.Equal(t, 3, attempts)
}

func TestRetryMiddleware_StopsOnRetryIf(t *testing.T) {
	permanent := errors.New("permanent")
	attempts := 0
	inv := RetryMiddleware(RetryConfig{
		MaxAttempts: 5,
		RetryIf:     func(err error) bool { return !errors.Is(err, permanent) },
	})(func(_ context.Context, _ any) error {
		attempts++
		return permanent
	})

	assert.ErrorIs(t, inv(context.Background(), nil), permanent)
	assert.Equal(t, 1, attempts)
}

func TestRetryMiddleware_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	inv := RetryMiddleware(RetryConfig{MaxAttempts: 4})(func(_ context.Context, _ any) error {
		attempts++
		return boom
	})

	assert.ErrorIs(t, inv(context.Background(), nil), boom)
	assert.Equal(t, 4, attempts)
}

func TestTimeoutMiddleware_Exceeded(t *testing.T) {
	inv := TimeoutMiddleware(10 * time.Millisecond)(func(ctx context.Context, _ any) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	assert.ErrorIs(t, inv(context.Background(), nil), context.DeadlineExceeded)
}

func TestTimeoutMiddleware_FastHandlerPasses(t *testing.T) {
	inv := TimeoutMiddleware(time.Second)(func(_ context.Context, _ any) error {
		return nil
	})

	assert.NoError(t, inv(context.Background(), nil))
}

func TestTimeoutMiddleware_NonPositiveIsNoop(t *testing.T) {
	called := false
	inv := TimeoutMiddleware(0)(func(_ context.Context, _ any) error {
		called = true
		return nil
	})

	require.NoError(t, inv(context.Background(), nil))
	assert.True(t, called)
}

func TestRecoveryMiddleware(t *testing.T) {
	inv := RecoveryMiddleware()(func(_ context.Context, _ any) error {
		panic("boom")
	})

	err := inv(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic recovered")
}

func TestLoop_MiddlewareAppliedToSubscriptions(t *testing.T) {
	attempts := 0
	l := newTestLoop(t, func(lb *LoopBuilder) {
		lb.WithMiddleware(RetryMiddleware(RetryConfig{MaxAttempts: 2}))
	})

	Subscribe(l, func(_ context.Context, _ SimpleEvent) error {
		attempts++
		return errors.New("always fails")
	})

	Publish(l, SimpleEvent{Data: 1}, Sync())

	assert.Equal(t, 2, attempts)
	assert.Equal(t, uint64(1), l.GetStatistics().Failed)
}
