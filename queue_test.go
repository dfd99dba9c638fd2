package xloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(data int, p Priority) *envelope {
	return &envelope{etype: typeToken[SimpleEvent](), payload: SimpleEvent{Data: data}, priority: p}
}

func drainData(q *eventQueue, limit int) []int {
	var out []int
	for _, e := range q.drain(limit) {
		out = append(out, e.payload.(SimpleEvent).Data)
	}
	return out
}

func TestEventQueue_Bound(t *testing.T) {
	q := newEventQueue(2)

	require.True(t, q.enqueue(env(1, PriorityNormal)))
	require.True(t, q.enqueue(env(2, PriorityNormal)))
	require.False(t, q.enqueue(env(3, PriorityCritical)))

	assert.Equal(t, 2, q.len())
	assert.Equal(t, 2, q.maxSize())
}

func TestEventQueue_PriorityOrder(t *testing.T) {
	q := newEventQueue(16)

	q.enqueue(env(1, PriorityLow))
	q.enqueue(env(2, PriorityCritical))
	q.enqueue(env(3, PriorityNormal))
	q.enqueue(env(4, PriorityHigh))
	q.enqueue(env(5, PriorityCritical))

	assert.Equal(t, []int{2, 5, 4, 3, 1}, drainData(q, 16))
	assert.Equal(t, 0, q.len())
}

func TestEventQueue_FIFOWithinPriority(t *testing.T) {
	q := newEventQueue(16)

	for i := 1; i <= 5; i++ {
		q.enqueue(env(i, PriorityNormal))
	}

	assert.Equal(t, []int{1, 2, 3}, drainData(q, 3))
	assert.Equal(t, []int{4, 5}, drainData(q, 3))
}

func TestEventQueue_DrainLimit(t *testing.T) {
	q := newEventQueue(16)

	q.enqueue(env(1, PriorityNormal))
	q.enqueue(env(2, PriorityNormal))

	assert.Nil(t, q.drain(0))
	assert.Len(t, q.drain(1), 1)
	assert.Equal(t, 1, q.len())
}

func TestEventQueue_SetMax(t *testing.T) {
	q := newEventQueue(1)

	require.True(t, q.enqueue(env(1, PriorityNormal)))
	require.False(t, q.enqueue(env(2, PriorityNormal)))

	q.setMax(2)
	require.True(t, q.enqueue(env(2, PriorityNormal)))

	q.setMax(0) // ignored
	assert.Equal(t, 2, q.maxSize())
}

func TestEventQueue_Clear(t *testing.T) {
	q := newEventQueue(16)

	q.enqueue(env(1, PriorityNormal))
	q.enqueue(env(2, PriorityHigh))
	q.clear()

	assert.Equal(t, 0, q.len())
	assert.Nil(t, q.drain(16))
}

func TestEventQueue_InvalidPriorityNormalized(t *testing.T) {
	q := newEventQueue(16)

	q.enqueue(env(1, Priority(99)))
	q.enqueue(env(2, PriorityHigh))

	assert.Equal(t, []int{2, 1}, drainData(q, 16))
}
