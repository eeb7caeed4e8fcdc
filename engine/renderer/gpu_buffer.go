package renderer

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// GPUBuffer is a typed, growable device buffer of fixed size records. It
// keeps a CPU copy of what was written so that a resize can carry the
// content over to the new allocation.
type GPUBuffer[T any] struct {
	backend    RendererBackend
	bufferType metadata.RenderBufferType
	buffer     RenderBuffer
	stride     int
	capacity   int
	shadow     []T
	scratch    []byte
}

// NewGPUBuffer allocates room for capacity records. It panics if T has no
// fixed binary size.
func NewGPUBuffer[T any](backend RendererBackend, bufferType metadata.RenderBufferType, capacity int) (*GPUBuffer[T], error) {
	var zero T
	stride := binary.Size(zero)
	if stride <= 0 {
		panic(fmt.Sprintf("gpu buffer: %T has no fixed binary size", zero))
	}
	if capacity < 1 {
		capacity = 1
	}

	buffer, err := backend.RenderBufferCreate(bufferType, uint64(capacity*stride))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s buffer of %d records: %w: %w", bufferType, capacity, core.ErrOutOfDeviceMemory, err)
	}

	return &GPUBuffer[T]{
		backend:    backend,
		bufferType: bufferType,
		buffer:     buffer,
		stride:     stride,
		capacity:   capacity,
	}, nil
}

func (b *GPUBuffer[T]) Capacity() int {
	return b.capacity
}

// Len is the number of records written so far.
func (b *GPUBuffer[T]) Len() int {
	return len(b.shadow)
}

// Stride is the encoded size of one record in bytes.
func (b *GPUBuffer[T]) Stride() int {
	return b.stride
}

func (b *GPUBuffer[T]) Type() metadata.RenderBufferType {
	return b.bufferType
}

func (b *GPUBuffer[T]) Handle() RenderBuffer {
	return b.buffer
}

// Slice returns the records written so far. The slice must not be modified.
func (b *GPUBuffer[T]) Slice() []T {
	return b.shadow
}

// Write uploads data starting at record offset. Writing past Capacity is a
// programmer error and panics; grow the buffer first.
func (b *GPUBuffer[T]) Write(offset int, data []T) error {
	if offset < 0 || offset+len(data) > b.capacity {
		panic(fmt.Sprintf("gpu buffer: write of %d records at %d exceeds capacity %d", len(data), offset, b.capacity))
	}
	if len(data) == 0 {
		return nil
	}

	encoded, err := binary.Append(b.scratch[:0], binary.LittleEndian, data)
	if err != nil {
		return fmt.Errorf("failed to encode %d records: %w", len(data), err)
	}
	b.scratch = encoded
	if err := b.buffer.LoadRange(uint64(offset*b.stride), encoded); err != nil {
		return fmt.Errorf("failed to upload %d records at %d: %w", len(data), offset, err)
	}

	if end := offset + len(data); end > len(b.shadow) {
		b.shadow = append(b.shadow, make([]T, end-len(b.shadow))...)
	}
	copy(b.shadow[offset:], data)
	return nil
}

// Reset forgets the written records without touching the device memory.
func (b *GPUBuffer[T]) Reset() {
	b.shadow = b.shadow[:0]
}

// Resize reallocates the buffer with room for newCapacity records and
// re-uploads the written records. Shrinking panics.
func (b *GPUBuffer[T]) Resize(newCapacity int) error {
	if newCapacity < b.capacity {
		panic(fmt.Sprintf("gpu buffer: cannot shrink from %d to %d records", b.capacity, newCapacity))
	}
	if newCapacity == b.capacity {
		return nil
	}

	buffer, err := b.backend.RenderBufferCreate(b.bufferType, uint64(newCapacity*b.stride))
	if err != nil {
		return fmt.Errorf("failed to grow %s buffer to %d records: %w: %w", b.bufferType, newCapacity, core.ErrOutOfDeviceMemory, err)
	}
	if len(b.shadow) > 0 {
		encoded, err := binary.Append(b.scratch[:0], binary.LittleEndian, b.shadow)
		if err != nil {
			buffer.Destroy()
			return fmt.Errorf("failed to encode %d records: %w", len(b.shadow), err)
		}
		b.scratch = encoded
		if err := buffer.LoadRange(0, encoded); err != nil {
			buffer.Destroy()
			return fmt.Errorf("failed to carry %d records over: %w", len(b.shadow), err)
		}
	}

	b.buffer.Destroy()
	b.buffer = buffer
	b.capacity = newCapacity
	return nil
}

// Reserve makes room for at least n records, doubling the capacity as
// needed. It reports whether a reallocation happened.
func (b *GPUBuffer[T]) Reserve(n int) (bool, error) {
	if n <= b.capacity {
		return false, nil
	}
	if err := b.Resize(math.GrowCapacity(b.capacity, n)); err != nil {
		return false, err
	}
	return true, nil
}

func (b *GPUBuffer[T]) Destroy() {
	if b.buffer != nil {
		b.buffer.Destroy()
		b.buffer = nil
	}
	b.shadow = nil
	b.scratch = nil
	b.capacity = 0
}
