package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Buffer is a host visible, host coherent device buffer. Uploads go
// straight through a mapping, so no staging copy is needed.
type Buffer struct {
	context    *VulkanContext
	bufferType metadata.RenderBufferType
	size       uint64

	Handle vk.Buffer
	Memory vk.DeviceMemory

	owner *Backend
}

func bufferUsage(bufferType metadata.RenderBufferType) vk.BufferUsageFlagBits {
	switch bufferType {
	case metadata.RENDERBUFFER_TYPE_INDEX:
		return vk.BufferUsageIndexBufferBit
	case metadata.RENDERBUFFER_TYPE_STAGING:
		return vk.BufferUsageTransferSrcBit
	default:
		return vk.BufferUsageVertexBufferBit
	}
}

func newBuffer(context *VulkanContext, bufferType metadata.RenderBufferType, size uint64, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("vulkan: zero sized %s buffer", bufferType)
	}

	var buffer vk.Buffer
	err := check(vk.CreateBuffer(context.Device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, context.Allocator, &buffer), "create buffer")
	if err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device, buffer, &reqs)
	reqs.Deref()

	index := context.FindMemoryIndex(reqs.MemoryTypeBits, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if index < 0 {
		vk.DestroyBuffer(context.Device, buffer, context.Allocator)
		return nil, fmt.Errorf("vulkan: no host visible memory type for %s buffer", bufferType)
	}

	var memory vk.DeviceMemory
	err = check(vk.AllocateMemory(context.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}, context.Allocator, &memory), "allocate buffer memory")
	if err != nil {
		vk.DestroyBuffer(context.Device, buffer, context.Allocator)
		return nil, err
	}
	if err := check(vk.BindBufferMemory(context.Device, buffer, memory, 0), "bind buffer memory"); err != nil {
		vk.FreeMemory(context.Device, memory, context.Allocator)
		vk.DestroyBuffer(context.Device, buffer, context.Allocator)
		return nil, err
	}

	return &Buffer{
		context:    context,
		bufferType: bufferType,
		size:       size,
		Handle:     buffer,
		Memory:     memory,
	}, nil
}

func (b *Buffer) Type() metadata.RenderBufferType {
	return b.bufferType
}

func (b *Buffer) Size() uint64 {
	return b.size
}

func (b *Buffer) LoadRange(offset uint64, data []byte) error {
	if b.Handle == nil {
		return core.ErrBackendShutdown
	}
	if len(data) == 0 {
		return nil
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("vulkan: write of %d bytes at %d overflows a %d byte %s buffer", len(data), offset, b.size, b.bufferType)
	}

	return b.context.locks.SafeCall(BufferManagement, func() error {
		var ptr unsafe.Pointer
		err := check(vk.MapMemory(b.context.Device, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr), "map buffer memory")
		if err != nil {
			return err
		}
		defer vk.UnmapMemory(b.context.Device, b.Memory)

		if n := vk.Memcopy(ptr, data); n != len(data) {
			return fmt.Errorf("vulkan: copied %d of %d bytes", n, len(data))
		}
		return nil
	})
}

func (b *Buffer) Destroy() {
	if b.Handle == nil {
		return
	}
	vk.DestroyBuffer(b.context.Device, b.Handle, b.context.Allocator)
	vk.FreeMemory(b.context.Device, b.Memory, b.context.Allocator)
	b.Handle = nil
	b.Memory = nil
	if b.owner != nil {
		b.owner.forgetBuffer(b)
	}
}
