package xloop

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

var _ API = (*Loop)(nil)

// Loop state machine: Run moves idle -> running, and marks stopped on exit.
const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// Loop is the central Facade: the typed handler registry, the bounded async
// event queue, the timer heap, and the dispatcher goroutine that drains them.
type Loop struct {
	clock   xclock.Clock
	logger  *xlog.Logger
	baseCtx context.Context

	registry *registry
	queue    *eventQueue
	timers   *timerHeap
	ids      idAllocator
	stats    statistics

	middlewares []Middleware
	assignIDs   bool
	batchSize   int
	idleWait    time.Duration

	wakeCh chan struct{}
	doneCh chan struct{}

	state    atomic.Int32
	stopping atomic.Bool
	closed   atomic.Bool
	closeOnce sync.Once

	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer
}

// Run owns the dispatcher: it drains due timers and queued envelopes until
// Stop, then returns. Exactly one goroutine may own the loop; a second call
// returns ErrAlreadyRunning, and a call after Close returns ErrLoopClosed.
func (l *Loop) Run() error {
	if l.closed.Load() {
		return ErrLoopClosed
	}
	if !l.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyRunning
	}

	l.notifyAsync(LoopEvent{Type: LoopStart})

	for {
		now := l.clock.Now()
		for _, t := range l.timers.popDue(now) {
			l.runTask(t)
		}

		for _, env := range l.queue.drain(l.batchSize) {
			l.dispatch(env)
		}

		// Graceful stop: the current batch completes, then the loop exits
		// even if more envelopes could be drained.
		if l.stopping.Load() {
			break
		}

		if l.queue.len() > 0 {
			continue // batch bound hit, more envelopes pending
		}

		wait := l.idleWait
		if next, ok := l.timers.peekNextFire(); ok {
			if d := next.Sub(l.clock.Now()); d < wait {
				wait = d
			}
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-l.wakeCh:
			timer.Stop()
		case <-timer.C:
		}
	}

	l.state.Store(stateStopped)
	close(l.doneCh)
	l.notifyAsync(LoopEvent{Type: LoopStop})
	return nil
}

// Stop requests a graceful exit of the dispatcher. Idempotent and safe from
// any goroutine, including a handler running on the dispatcher itself.
// Async publishes after Stop are dropped; sync publishes still dispatch
// inline on the caller.
func (l *Loop) Stop() {
	if l.stopping.Swap(true) {
		return
	}
	l.wake()
}

// IsRunning reports whether the dispatcher is active and not stopping.
func (l *Loop) IsRunning() bool {
	return l.state.Load() == stateRunning && !l.stopping.Load()
}

// Close stops the loop, joins the dispatcher, and discards all pending
// envelopes and tasks without invoking them. Idempotent via sync.Once.
func (l *Loop) Close() error {
	var closeErr error

	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.Stop()

		if l.state.Load() != stateIdle {
			<-l.doneCh
		}

		l.queue.clear()
		l.timers.clear()

		if l.observerPool != nil {
			if err := l.observerPool.Close(5 * time.Second); err != nil {
				l.logger.Warn().Err(err).Msg("xloop: observer pool shutdown timeout")
				closeErr = err
			}
		}
	})

	return closeErr
}

// ScheduleTask schedules a one-shot action after delay. A non-positive delay
// fires at the next loop turn. Returns the task id, or 0 for a nil action.
func (l *Loop) ScheduleTask(delay time.Duration, action Action) uint64 {
	return l.schedule(delay, 0, action)
}

// ScheduleRepeating schedules action at a fixed period, first firing at
// now+period. Returns the task id, or 0 for a nil action or non-positive
// period.
func (l *Loop) ScheduleRepeating(period time.Duration, action Action) uint64 {
	if period <= 0 {
		return 0
	}
	return l.schedule(period, period, action)
}

// CancelTask cancels the task with the given id. Returns false for an
// unknown id or a one-shot that already fired. A cancel racing the dispatch
// of a due task may observe one final invocation.
func (l *Loop) CancelTask(id uint64) bool {
	return l.timers.cancel(id)
}

// SetMaxQueueSize bounds the async event queue. Values below 1 are ignored.
func (l *Loop) SetMaxQueueSize(n int) {
	l.queue.setMax(n)
}

// QueueSizes returns an observational snapshot of pending work.
func (l *Loop) QueueSizes() QueueSizes {
	return QueueSizes{
		EventQueueSize: l.queue.len(),
		TimerCount:     l.timers.count(),
	}
}

// EnableStatistics gates the per-invocation timing bracket. Counters are
// always maintained.
func (l *Loop) EnableStatistics(enabled bool) {
	l.stats.enabled.Store(enabled)
}

// ResetStatistics zeroes all counters and timing aggregates.
func (l *Loop) ResetStatistics() {
	l.stats.reset()
}

// GetStatistics returns the current counters. The read is atomic per field,
// not across fields.
func (l *Loop) GetStatistics() Statistics {
	return l.stats.snapshot()
}

// AddObserver registers an observer (thread-safe).
func (l *Loop) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	l.observersMu.Lock()
	l.observers = append(l.observers, obs)
	l.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (l *Loop) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	l.observersMu.Lock()
	defer l.observersMu.Unlock()

	for i, o := range l.observers {
		if o == obs {
			l.observers = append(l.observers[:i], l.observers[i+1:]...)
			break
		}
	}
}

// internal

func (l *Loop) wake() {
	select {
	case l.wakeCh <- struct{}{}:
	default:
	}
}

func (l *Loop) schedule(delay, period time.Duration, action Action) uint64 {
	if action == nil || l.closed.Load() {
		return 0
	}
	if delay < 0 {
		delay = 0
	}
	id := l.ids.next()
	l.timers.schedule(&task{
		id:     id,
		fireAt: l.clock.Now().Add(delay),
		period: period,
		action: action,
	})
	l.wake()
	return id
}

func (l *Loop) newEnvelope(t reflect.Type, payload any, priority Priority, mode DeliveryMode) *envelope {
	env := &envelope{
		etype:      t,
		payload:    payload,
		priority:   priority,
		mode:       mode,
		producedAt: l.clock.Now(),
	}
	if l.assignIDs {
		env.id = uuid.NewString()
	}
	return env
}

// publishAsync routes an envelope through the bounded queue. Reports whether
// the envelope was accepted; a rejected envelope is counted as dropped and
// discarded at the publication site.
func (l *Loop) publishAsync(env *envelope) bool {
	l.stats.published.Add(1)

	if l.stopping.Load() || l.closed.Load() || !l.queue.enqueue(env) {
		l.stats.dropped.Add(1)
		l.notifyAsync(LoopEvent{
			Type:       EventDropped,
			EventType:  env.etype.String(),
			EnvelopeID: env.id,
			Priority:   env.priority,
			Mode:       DeliveryAsync,
		})
		return false
	}

	l.wake()
	l.notifyAsync(LoopEvent{
		Type:       PublishDone,
		EventType:  env.etype.String(),
		EnvelopeID: env.id,
		Priority:   env.priority,
		Mode:       DeliveryAsync,
	})
	return true
}

// publishSync bypasses the queue and dispatches inline on the calling
// goroutine. Sync publishes proceed even after Stop.
func (l *Loop) publishSync(env *envelope) {
	if l.closed.Load() {
		return
	}
	l.stats.published.Add(1)
	l.notifyAsync(LoopEvent{
		Type:       PublishDone,
		EventType:  env.etype.String(),
		EnvelopeID: env.id,
		Priority:   env.priority,
		Mode:       DeliverySync,
	})
	l.dispatch(env)
}

// dispatch takes a registry snapshot for the envelope's type and invokes
// each eligible handler. An envelope whose type has at least one
// subscription increments exactly one of processed/failed; an envelope with
// no subscribers counts only as published.
func (l *Loop) dispatch(env *envelope) {
	views := l.registry.snapshot(env.etype)
	if len(views) == 0 {
		return
	}

	failed := false
	var total time.Duration
	for i := range views {
		v := &views[i]
		if env.priority < v.minPriority {
			continue
		}
		if v.filter != nil && !v.filter(env.payload) {
			continue
		}

		d, err := l.invokeTimed(v.invoke, env.payload)
		total += d
		if err != nil {
			failed = true
			l.notifyAsync(LoopEvent{
				Type:       HandlerError,
				EventType:  env.etype.String(),
				EnvelopeID: env.id,
				Priority:   env.priority,
				Mode:       env.mode,
				Duration:   d,
				Err:        err,
			})
		}
	}

	if failed {
		l.stats.failed.Add(1)
	} else {
		l.stats.processed.Add(1)
	}

	l.notifyAsync(LoopEvent{
		Type:       DispatchDone,
		EventType:  env.etype.String(),
		EnvelopeID: env.id,
		Priority:   env.priority,
		Mode:       env.mode,
		Duration:   total,
	})
}

// runTask invokes a due timer action under the statistics envelope. The
// cancelled flag is re-checked here so a cancel racing popDue suppresses the
// fire when it lands first.
func (l *Loop) runTask(t *task) {
	if t.cancelled.Load() {
		return
	}

	d, err := l.invokeTimed(func(ctx context.Context, _ any) error {
		return t.action(ctx)
	}, nil)

	if err != nil {
		l.stats.failed.Add(1)
	} else {
		l.stats.processed.Add(1)
	}

	l.notifyAsync(LoopEvent{
		Type:     TimerFired,
		TaskID:   t.id,
		Duration: d,
		Err:      err,
	})
}

// invokeTimed brackets a single invocation with the timing instants when
// statistics are enabled. Panics are contained and surfaced as errors.
func (l *Loop) invokeTimed(inv Invoker, payload any) (time.Duration, error) {
	timed := l.stats.timingEnabled()

	var start time.Time
	if timed {
		start = l.clock.Now()
	}

	err := safeInvoke(inv, l.baseCtx, payload)

	var d time.Duration
	if timed {
		d = l.clock.Since(start)
		l.stats.addDuration(d)
	}
	return d, err
}

func safeInvoke(inv Invoker, ctx context.Context, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	return inv(ctx, payload)
}

// notifyAsync dispatches telemetry asynchronously (non-blocking).
// Avoids the observer copy when no observers are registered.
func (l *Loop) notifyAsync(e LoopEvent) {
	if l.observerPool == nil {
		return
	}

	l.observersMu.RLock()
	observerCount := len(l.observers)
	if observerCount == 0 {
		l.observersMu.RUnlock()
		return
	}

	if observerCount == 1 {
		obs := l.observers[0]
		l.observersMu.RUnlock()
		l.observerPool.Notify(e, []Observer{obs})
		return
	}

	observers := make([]Observer, observerCount)
	copy(observers, l.observers)
	l.observersMu.RUnlock()

	l.observerPool.Notify(e, observers)
}
