package vulkan

import (
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{IsSignaled: createSignaled}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var pFence vk.Fence
	if err := check(vk.CreateFence(context.Device, &fenceCreateInfo, context.Allocator, &pFence), "create fence"); err != nil {
		return nil, err
	}
	fence.Handle = pFence
	return fence, nil
}

func (vf *VulkanFence) Destroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.Device, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled or timeoutNs elapses. A fence
// that is already known to be signaled returns at once.
func (vf *VulkanFence) Wait(context *VulkanContext, timeoutNs uint64) bool {
	if vf.IsSignaled {
		return true
	}
	result := vk.WaitForFences(context.Device, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	switch result {
	case vk.Success:
		vf.IsSignaled = true
		return true
	case vk.Timeout:
		core.LogWarn("vulkan: fence wait timed out")
	default:
		core.LogError("vulkan: fence wait failed: %s", VulkanResultString(result, true))
	}
	return false
}

func (vf *VulkanFence) Reset(context *VulkanContext) error {
	if !vf.IsSignaled {
		return nil
	}
	if err := check(vk.ResetFences(context.Device, 1, []vk.Fence{vf.Handle}), "reset fence"); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}
