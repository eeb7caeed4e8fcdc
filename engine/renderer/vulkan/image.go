package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// VulkanImage is a device local RGBA8 image sampled by the fragment shader.
// Writes go through a staging buffer and a single use command buffer.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	width  uint32
	height uint32

	layout  vk.ImageLayout
	context *VulkanContext
	owner   *Backend
}

func newImage(context *VulkanContext, width, height uint32) (*VulkanImage, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("vulkan: invalid texture size %dx%d", width, height)
	}

	var image vk.Image
	err := check(vk.CreateImage(context.Device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.FormatR8g8b8a8Unorm,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, context.Allocator, &image), "create image")
	if err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device, image, &reqs)
	reqs.Deref()

	index := context.FindMemoryIndex(reqs.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if index < 0 {
		vk.DestroyImage(context.Device, image, context.Allocator)
		return nil, fmt.Errorf("vulkan: no device local memory type for a %dx%d texture", width, height)
	}

	var memory vk.DeviceMemory
	err = check(vk.AllocateMemory(context.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: uint32(index),
	}, context.Allocator, &memory), "allocate image memory")
	if err != nil {
		vk.DestroyImage(context.Device, image, context.Allocator)
		return nil, err
	}
	if err := check(vk.BindImageMemory(context.Device, image, memory, 0), "bind image memory"); err != nil {
		vk.FreeMemory(context.Device, memory, context.Allocator)
		vk.DestroyImage(context.Device, image, context.Allocator)
		return nil, err
	}

	var view vk.ImageView
	err = check(vk.CreateImageView(context.Device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   vk.FormatR8g8b8a8Unorm,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, context.Allocator, &view), "create image view")
	if err != nil {
		vk.FreeMemory(context.Device, memory, context.Allocator)
		vk.DestroyImage(context.Device, image, context.Allocator)
		return nil, err
	}

	return &VulkanImage{
		Handle:  image,
		Memory:  memory,
		View:    view,
		width:   width,
		height:  height,
		layout:  vk.ImageLayoutUndefined,
		context: context,
	}, nil
}

func (vi *VulkanImage) Width() uint32 {
	return vi.width
}

func (vi *VulkanImage) Height() uint32 {
	return vi.height
}

// WriteData copies a width*height RGBA block into the image at (x, y) and
// leaves the image ready for sampling.
func (vi *VulkanImage) WriteData(x, y, width, height uint32, pixels []uint8) error {
	if vi.Handle == nil || vi.owner == nil {
		return core.ErrBackendShutdown
	}
	if x+width > vi.width || y+height > vi.height {
		return fmt.Errorf("vulkan: region %dx%d at (%d,%d) is outside a %dx%d texture", width, height, x, y, vi.width, vi.height)
	}
	if len(pixels) != int(width)*int(height)*4 {
		return fmt.Errorf("vulkan: %d bytes given for a %dx%d region", len(pixels), width, height)
	}
	if width == 0 || height == 0 {
		return nil
	}

	b := vi.owner
	context := vi.context
	staging, err := newBuffer(context, metadata.RENDERBUFFER_TYPE_STAGING, uint64(len(pixels)), vk.BufferUsageTransferSrcBit)
	if err != nil {
		return err
	}
	defer staging.Destroy()
	if err := staging.LoadRange(0, pixels); err != nil {
		return err
	}

	return context.locks.SafeCall(CommandPoolManagement, func() error {
		cb, err := AllocateAndBeginSingleUse(context, b.uploadPool)
		if err != nil {
			return err
		}
		vi.transition(cb.Handle, vk.ImageLayoutTransferDstOptimal)
		vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, vi.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageOffset: vk.Offset3D{X: int32(x), Y: int32(y)},
			ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
		}})
		vi.transition(cb.Handle, vk.ImageLayoutShaderReadOnlyOptimal)
		return cb.EndSingleUse(context, b.uploadPool)
	})
}

// transition records a layout change from the current layout to layout.
func (vi *VulkanImage) transition(cmd vk.CommandBuffer, layout vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vi.layout,
		NewLayout:           layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               vi.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var src, dst vk.PipelineStageFlagBits
	if layout == vk.ImageLayoutTransferDstOptimal {
		src, dst = vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		if vi.layout == vk.ImageLayoutShaderReadOnlyOptimal {
			src = vk.PipelineStageFragmentShaderBit
			barrier.SrcAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		}
	} else {
		src, dst = vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
	}

	vk.CmdPipelineBarrier(cmd, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	vi.layout = layout
}

func (vi *VulkanImage) Destroy() {
	if vi.Handle == nil {
		return
	}
	context := vi.context
	vk.DestroyImageView(context.Device, vi.View, context.Allocator)
	vk.DestroyImage(context.Device, vi.Handle, context.Allocator)
	vk.FreeMemory(context.Device, vi.Memory, context.Allocator)
	vi.Handle = nil
	vi.View = nil
	vi.Memory = nil
	if vi.owner != nil {
		vi.owner.forgetImage(vi)
	}
}
