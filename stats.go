package xloop

import (
	"sync/atomic"
	"time"
)

// statistics accumulates loop counters with lock-free atomics.
//
// The counters are cheap and always maintained, so dropped/failed remain
// observable without opting in. The enabled flag gates only the timing
// bracket (two clock reads per invocation plus the max CAS); when disabled,
// timing fields retain their last values until reset.
type statistics struct {
	enabled atomic.Bool

	published atomic.Uint64
	processed atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	totalNs atomic.Int64
	maxNs   atomic.Int64
}

func (s *statistics) timingEnabled() bool {
	return s.enabled.Load()
}

func (s *statistics) addDuration(d time.Duration) {
	ns := d.Nanoseconds()
	s.totalNs.Add(ns)
	for {
		old := s.maxNs.Load()
		if ns <= old {
			return
		}
		if s.maxNs.CompareAndSwap(old, ns) {
			return
		}
	}
}

func (s *statistics) reset() {
	s.published.Store(0)
	s.processed.Store(0)
	s.dropped.Store(0)
	s.failed.Store(0)
	s.totalNs.Store(0)
	s.maxNs.Store(0)
}

func (s *statistics) snapshot() Statistics {
	return Statistics{
		Published:           s.published.Load(),
		Processed:           s.processed.Load(),
		Dropped:             s.dropped.Load(),
		Failed:              s.failed.Load(),
		TotalProcessingTime: time.Duration(s.totalNs.Load()),
		MaxProcessingTime:   time.Duration(s.maxNs.Load()),
	}
}
