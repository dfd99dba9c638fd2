package xloop

import (
	"github.com/trickstertwo/xlog"
)

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e LoopEvent)

func (f ObserverFunc) OnEvent(e LoopEvent) { f(e) }

// LoggingObserver is an Adapter that emits loop telemetry via xlog.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e LoopEvent) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("event_type", e.EventType),
		xlog.Str("envelope_id", e.EnvelopeID),
	)
	switch e.Type {
	case HandlerError, EventDropped:
		ev.Warn().Err(e.Err).Msg("xloop event")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		ev.Debug().Msg("xloop event")
	}
}
