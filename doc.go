// Package xloop is an in-process, type-safe event dispatch and timer core.
//
// Producers publish values of arbitrary types to a Loop; consumers register
// typed handlers with Subscribe and receive those values either inline with
// the producer (Sync) or on the dispatcher goroutine (Async). Async delivery
// goes through a bounded priority queue that drops under pressure instead of
// blocking. The same dispatcher drives one-shot and repeating timers
// (ScheduleTask, ScheduleRepeating, PublishAfter), with fixed-period
// reinsertion so slow handlers do not skew subsequent fires.
//
// Ordering: for a single payload type and priority, dispatch order equals
// publish order. Higher priorities are delivered first. No ordering is
// promised across types.
//
// Construction follows the Builder pattern:
//
//	loop, err := xloop.NewLoopBuilder().
//		WithLogger(logger).
//		WithMaxQueueSize(4096).
//		Build()
//	go loop.Run()
//
//	id := xloop.Subscribe(loop, func(ctx context.Context, ev OrderCreated) error {
//		// ...
//		return nil
//	})
//	xloop.Publish(loop, OrderCreated{ID: "o-1"}, xloop.WithPriority(xloop.PriorityHigh))
//
// Handler errors and panics are contained and counted; nothing unwinds
// across the facade. Telemetry flows to observers through a non-blocking
// pool, with LoggingObserver attached by default.
package xloop
