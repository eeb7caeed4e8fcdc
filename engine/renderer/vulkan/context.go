package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// VulkanContext holds the device handles adopted from the caller. The
// backend never creates an instance, a device or a surface itself.
type VulkanContext struct {
	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device
	Queue          vk.Queue
	// Index of the queue family Queue belongs to.
	QueueFamilyIndex uint32
	Allocator        *vk.AllocationCallbacks

	memoryProperties vk.PhysicalDeviceMemoryProperties
	locks            *VulkanLockPool
}

func newContext(cfg *Config) (*VulkanContext, error) {
	if cfg.PhysicalDevice == nil || cfg.Device == nil || cfg.Queue == nil {
		return nil, fmt.Errorf("vulkan: physical device, device and queue are required")
	}
	vc := &VulkanContext{
		PhysicalDevice:   cfg.PhysicalDevice,
		Device:           cfg.Device,
		Queue:            cfg.Queue,
		QueueFamilyIndex: cfg.QueueFamilyIndex,
		Allocator:        cfg.Allocator,
		locks:            NewVulkanLockPool(),
	}
	vk.GetPhysicalDeviceMemoryProperties(vc.PhysicalDevice, &vc.memoryProperties)
	vc.memoryProperties.Deref()
	vc.locks.SetQueueFamily(vc.QueueFamilyIndex)
	return vc, nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// carries every bit of propertyFlags, or -1.
func (vc *VulkanContext) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) int32 {
	props := vc.memoryProperties
	for i := uint32(0); i < props.MemoryTypeCount; i++ {
		props.MemoryTypes[i].Deref()
		flags := vk.MemoryPropertyFlagBits(props.MemoryTypes[i].PropertyFlags)
		if typeFilter&(1<<i) != 0 && flags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	return -1
}

// submit runs fn with exclusive access to the queue.
func (vc *VulkanContext) submit(fn func() error) error {
	return vc.locks.SafeQueueCall(vc.QueueFamilyIndex, fn)
}
