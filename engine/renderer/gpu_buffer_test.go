package renderer_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func instances(n int) []metadata.InstanceRecord {
	out := make([]metadata.InstanceRecord, n)
	for i := range out {
		out[i] = metadata.NewInstanceRecord(math.TransformFromPosition(math.NewVec3(float32(i), 0, 0)), metadata.ColorWhite)
	}
	return out
}

func TestGPUBufferWriteEncodesLittleEndian(t *testing.T) {
	backend := headless.New()
	buf, err := renderer.NewGPUBuffer[uint32](backend, metadata.RENDERBUFFER_TYPE_INDEX, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, buf.Stride())

	require.NoError(t, buf.Write(1, []uint32{0x01020304, 7}))
	raw := buf.Handle().(*headless.Buffer).Bytes()
	assert.Equal(t, []byte{4, 3, 2, 1, 7, 0, 0, 0}, raw[4:12])
	assert.Equal(t, 3, buf.Len())
	assert.Equal(t, []uint32{0, 0x01020304, 7}, buf.Slice())
}

func TestGPUBufferWritePastCapacityPanics(t *testing.T) {
	buf, err := renderer.NewGPUBuffer[uint32](headless.New(), metadata.RENDERBUFFER_TYPE_INDEX, 2)
	require.NoError(t, err)
	assert.Panics(t, func() { _ = buf.Write(1, []uint32{1, 2}) })
	assert.Panics(t, func() { _ = buf.Write(-1, []uint32{1}) })
}

func TestGPUBufferRejectsVariableSizeRecords(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = renderer.NewGPUBuffer[[]int](headless.New(), metadata.RENDERBUFFER_TYPE_VERTEX, 2)
	})
}

func TestGPUBufferShrinkPanics(t *testing.T) {
	buf, err := renderer.NewGPUBuffer[uint32](headless.New(), metadata.RENDERBUFFER_TYPE_INDEX, 8)
	require.NoError(t, err)
	assert.Panics(t, func() { _ = buf.Resize(4) })
}

func TestGPUBufferReserveWithinCapacityDoesNotReallocate(t *testing.T) {
	backend := headless.New()
	buf, err := renderer.NewGPUBuffer[metadata.InstanceRecord](backend, metadata.RENDERBUFFER_TYPE_INSTANCE, 16)
	require.NoError(t, err)
	handle := buf.Handle()

	for n := 0; n <= 16; n++ {
		grew, err := buf.Reserve(n)
		require.NoError(t, err)
		assert.False(t, grew)
	}
	assert.Same(t, handle, buf.Handle())
	assert.Equal(t, 1, backend.Counters().BuffersCreated)
}

func TestGPUBufferGrowthPreservesContent(t *testing.T) {
	backend := headless.New()
	buf, err := renderer.NewGPUBuffer[metadata.InstanceRecord](backend, metadata.RENDERBUFFER_TYPE_INSTANCE, 4)
	require.NoError(t, err)

	first := instances(4)
	require.NoError(t, buf.Write(0, first))
	old := buf.Handle().(*headless.Buffer)

	grew, err := buf.Reserve(13)
	require.NoError(t, err)
	assert.True(t, grew)
	assert.Equal(t, 16, buf.Capacity())
	assert.True(t, old.Destroyed())

	more := instances(13)[4:]
	require.NoError(t, buf.Write(4, more))
	assert.Equal(t, first, buf.Slice()[:4])

	// The device copy carries the records written before the growth.
	want, err := binary.Append(nil, binary.LittleEndian, first)
	require.NoError(t, err)
	raw := buf.Handle().(*headless.Buffer).Bytes()
	assert.Equal(t, want, raw[:len(want)])
	assert.Equal(t, 1, backend.LiveBuffers())
}

func TestGPUBufferGrowthFailureWrapsOutOfMemory(t *testing.T) {
	backend := headless.New()
	buf, err := renderer.NewGPUBuffer[uint32](backend, metadata.RENDERBUFFER_TYPE_INDEX, 4)
	require.NoError(t, err)
	backend.MaxBufferSize = 16

	_, err = buf.Reserve(5)
	assert.ErrorIs(t, err, core.ErrOutOfDeviceMemory)
	assert.Equal(t, 4, buf.Capacity())
}

func TestGPUBufferDestroy(t *testing.T) {
	backend := headless.New()
	buf, err := renderer.NewGPUBuffer[uint32](backend, metadata.RENDERBUFFER_TYPE_INDEX, 4)
	require.NoError(t, err)
	buf.Destroy()
	buf.Destroy()
	assert.Equal(t, 0, backend.LiveBuffers())
	assert.Nil(t, buf.Handle())
}
