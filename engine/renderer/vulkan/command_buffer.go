package vulkan

import (
	vk "github.com/goki/vulkan"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording-ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	default:
		return "not-allocated"
	}
}

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

// NewVulkanCommandBuffer allocates a primary command buffer from pool.
func NewVulkanCommandBuffer(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(context.Device, &allocateInfo, handles), "allocate command buffer"); err != nil {
		return nil, err
	}
	return &VulkanCommandBuffer{
		Handle: handles[0],
		State:  COMMAND_BUFFER_STATE_READY,
	}, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	if v.Handle != nil {
		vk.FreeCommandBuffers(context.Device, pool, 1, []vk.CommandBuffer{v.Handle})
	}
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(singleUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := check(vk.BeginCommandBuffer(v.Handle, beginInfo), "begin command buffer"); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := check(vk.EndCommandBuffer(v.Handle), "end command buffer"); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

// Submit hands the recorded commands to the queue, signaling fence when
// they complete. fence may be nil.
func (v *VulkanCommandBuffer) Submit(context *VulkanContext, fence *VulkanFence) error {
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{v.Handle},
	}
	var handle vk.Fence
	if fence != nil {
		handle = fence.Handle
	}
	err := context.submit(func() error {
		return check(vk.QueueSubmit(context.Queue, 1, []vk.SubmitInfo{submitInfo}, handle), "submit to queue")
	})
	if err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
	return nil
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := check(vk.ResetCommandBuffer(v.Handle, 0), "reset command buffer"); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}

/**
 * @brief Allocates a command buffer from pool and begins recording it for a single submission.
 */
func AllocateAndBeginSingleUse(context *VulkanContext, pool vk.CommandPool) (*VulkanCommandBuffer, error) {
	cb, err := NewVulkanCommandBuffer(context, pool)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * @brief Ends recording, submits, waits for the queue to go idle and frees the command buffer.
 */
func (v *VulkanCommandBuffer) EndSingleUse(context *VulkanContext, pool vk.CommandPool) error {
	defer v.Free(context, pool)

	if err := v.End(); err != nil {
		return err
	}
	if err := v.Submit(context, nil); err != nil {
		return err
	}
	return context.submit(func() error {
		return check(vk.QueueWaitIdle(context.Queue), "wait for queue idle")
	})
}
