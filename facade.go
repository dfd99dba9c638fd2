package xloop

import (
	"fmt"
	"sync"
)

var (
	defaultLoop   *Loop
	defaultLoopMu sync.Mutex
)

// New constructs a Loop via Builder and returns a close func for convenience.
func New(init func(lb *LoopBuilder)) (*Loop, func() error, error) {
	lb := NewLoopBuilder()
	if init != nil {
		init(lb)
	}
	l, err := lb.Build()
	if err != nil {
		return nil, nil, err
	}
	return l, l.Close, nil
}

// Default returns the process-wide singleton Loop.
func Default() *Loop {
	defaultLoopMu.Lock()
	defer defaultLoopMu.Unlock()

	if defaultLoop != nil {
		return defaultLoop
	}

	l, err := NewLoopBuilder().Build()
	if err != nil {
		panic(fmt.Sprintf("xloop: failed to initialize default loop: %v", err))
	}
	defaultLoop = l
	return defaultLoop
}

// SetDefault replaces the process-wide default Loop.
func SetDefault(l *Loop) {
	if l == nil {
		panic("xloop: SetDefault called with nil Loop")
	}
	defaultLoopMu.Lock()
	defaultLoop = l
	defaultLoopMu.Unlock()
}
