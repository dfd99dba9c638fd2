package xloop

import (
	"context"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

const (
	defaultMaxQueueSize = 1000
	defaultBatchSize    = 64
	defaultIdleWait     = 200 * time.Millisecond
	defaultPoolWorkers  = 2
	defaultPoolBuffer   = 256
)

// LoopBuilder constructs Loop instances (Builder pattern).
type LoopBuilder struct {
	clock   xclock.Clock
	logger  *xlog.Logger
	baseCtx context.Context

	maxQueueSize int
	batchSize    int
	idleWait     time.Duration
	assignIDs    bool
	statsEnabled bool

	middlewares []Middleware
	observers   []Observer

	poolWorkers int
	poolBuffer  int
}

// NewLoopBuilder returns a new builder with sensible defaults.
func NewLoopBuilder() *LoopBuilder {
	return &LoopBuilder{
		maxQueueSize: defaultMaxQueueSize,
		batchSize:    defaultBatchSize,
		idleWait:     defaultIdleWait,
		assignIDs:    true,
		poolWorkers:  defaultPoolWorkers,
		poolBuffer:   defaultPoolBuffer,
	}
}

// WithClock injects a custom monotonic clock.
func (lb *LoopBuilder) WithClock(c xclock.Clock) *LoopBuilder {
	lb.clock = c
	return lb
}

// WithLogger injects a custom xlog logger.
func (lb *LoopBuilder) WithLogger(l *xlog.Logger) *LoopBuilder {
	lb.logger = l
	return lb
}

// WithContext sets the base context handlers receive (default: Background).
func (lb *LoopBuilder) WithContext(ctx context.Context) *LoopBuilder {
	lb.baseCtx = ctx
	return lb
}

// WithMaxQueueSize bounds the async event queue.
func (lb *LoopBuilder) WithMaxQueueSize(n int) *LoopBuilder {
	if n > 0 {
		lb.maxQueueSize = n
	}
	return lb
}

// WithBatchSize bounds how many envelopes a single loop turn drains.
func (lb *LoopBuilder) WithBatchSize(n int) *LoopBuilder {
	if n > 0 {
		lb.batchSize = n
	}
	return lb
}

// WithIdleWait caps how long the dispatcher sleeps with no pending timer.
func (lb *LoopBuilder) WithIdleWait(d time.Duration) *LoopBuilder {
	if d > 0 {
		lb.idleWait = d
	}
	return lb
}

// WithEnvelopeIDs toggles per-envelope uuid assignment for telemetry.
func (lb *LoopBuilder) WithEnvelopeIDs(enabled bool) *LoopBuilder {
	lb.assignIDs = enabled
	return lb
}

// WithStatistics pre-enables the timing bracket (see EnableStatistics).
func (lb *LoopBuilder) WithStatistics(enabled bool) *LoopBuilder {
	lb.statsEnabled = enabled
	return lb
}

// WithMiddleware adds processing middlewares chained around every handler.
func (lb *LoopBuilder) WithMiddleware(mw ...Middleware) *LoopBuilder {
	if len(mw) == 0 {
		return lb
	}
	lb.middlewares = append(lb.middlewares, mw...)
	return lb
}

// WithObserver attaches observers for loop lifecycle events.
func (lb *LoopBuilder) WithObserver(obs ...Observer) *LoopBuilder {
	for _, o := range obs {
		if o != nil {
			lb.observers = append(lb.observers, o)
		}
	}
	return lb
}

// WithObserverPool sizes the async observer pool.
func (lb *LoopBuilder) WithObserverPool(workers, bufferSize int) *LoopBuilder {
	if workers > 0 {
		lb.poolWorkers = workers
	}
	if bufferSize > 0 {
		lb.poolBuffer = bufferSize
	}
	return lb
}

// Build assembles the Loop. The loop is ready for subscriptions and
// publishes immediately; Run starts the dispatcher.
func (lb *LoopBuilder) Build() (*Loop, error) {
	clk := lb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := lb.logger
	if lg == nil {
		lg = xlog.Default()
	}
	ctx := lb.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = injectClock(injectLogger(ctx, lg), clk)

	l := &Loop{
		clock:       clk,
		logger:      lg,
		baseCtx:     ctx,
		registry:    newRegistry(),
		queue:       newEventQueue(lb.maxQueueSize),
		timers:      newTimerHeap(),
		middlewares: lb.middlewares,
		assignIDs:   lb.assignIDs,
		batchSize:   lb.batchSize,
		idleWait:    lb.idleWait,
		wakeCh:      make(chan struct{}, 1),
		doneCh:      make(chan struct{}),
	}
	l.stats.enabled.Store(lb.statsEnabled)
	l.observerPool = NewObserverPool(context.Background(), lb.poolWorkers, lb.poolBuffer)

	// Attach logging observer first for dependable telemetry unless already
	// supplied externally.
	hasLoggingObserver := false
	for _, o := range lb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		l.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range lb.observers {
		l.AddObserver(o)
	}

	return l, nil
}
