package xloop

import "sync/atomic"

// idAllocator issues unique, never-reused 64-bit identifiers shared by
// subscriptions and scheduled tasks. The zero id is never issued, so callers
// may use 0 as "invalid".
type idAllocator struct {
	last atomic.Uint64
}

func (a *idAllocator) next() uint64 {
	return a.last.Add(1)
}
