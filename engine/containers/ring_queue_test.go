package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/core"
)

func TestRingQueue(t *testing.T) {
	rq := NewRingQueue[string](2)
	assert.True(t, rq.IsEmpty())

	_, err := rq.Dequeue()
	assert.ErrorIs(t, err, core.ErrQueueEmpty)
	_, err = rq.Peek()
	assert.ErrorIs(t, err, core.ErrQueueEmpty)

	require.NoError(t, rq.Enqueue("a"))
	require.NoError(t, rq.Enqueue("b"))
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue("c"), core.ErrQueueFull)

	v, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	// wraps around
	require.NoError(t, rq.Enqueue("c"))
	assert.Equal(t, 2, rq.Len())
	v, _ = rq.Dequeue()
	assert.Equal(t, "b", v)
	v, _ = rq.Dequeue()
	assert.Equal(t, "c", v)
	assert.True(t, rq.IsEmpty())
}

func TestRingQueueRejectsZeroSize(t *testing.T) {
	assert.Panics(t, func() { NewRingQueue[int](0) })
}
