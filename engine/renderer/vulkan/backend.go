package vulkan

import (
	"fmt"
	"sync"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// FrameHooks is implemented by whoever owns the swapchain and the render
// pass. The backend only records the draws in between.
type FrameHooks interface {
	/** @brief Acquires the target image and begins the render pass on cmd. */
	BeginPass(cmd vk.CommandBuffer, clearColor metadata.Color) error
	/** @brief Writes the atlas pages into the descriptor set used by layout and binds it. */
	BindTextures(cmd vk.CommandBuffer, layout vk.PipelineLayout, pages []*VulkanImage)
	/** @brief Ends the render pass. Presentation happens after EndFrame returns. */
	EndPass(cmd vk.CommandBuffer) error
}

// Config lists the handles a Backend adopts. None of them is destroyed by
// Backend.Shutdown.
type Config struct {
	PhysicalDevice   vk.PhysicalDevice
	Device           vk.Device
	Queue            vk.Queue
	QueueFamilyIndex uint32
	Allocator        *vk.AllocationCallbacks

	/** @brief Graphics pipeline per material class, built against PipelineLayout. */
	Pipelines      map[metadata.MaterialClass]vk.Pipeline
	PipelineLayout vk.PipelineLayout
	Hooks          FrameHooks

	/** @brief How long BeginFrame waits for the previous frame, 0 means one second. */
	FrameTimeout time.Duration
}

// Backend implements renderer.RendererBackend on top of an existing
// Vulkan device. It keeps one frame in flight.
type Backend struct {
	mutex sync.Mutex

	config  Config
	context *VulkanContext

	framePool  vk.CommandPool
	uploadPool vk.CommandPool
	frame      *VulkanCommandBuffer
	inFlight   *VulkanFence
	current    *Encoder

	buffers  map[*Buffer]struct{}
	images   map[*VulkanImage]struct{}
	shutdown bool
}

var (
	_ renderer.RendererBackend = (*Backend)(nil)
	_ renderer.RenderBuffer    = (*Buffer)(nil)
	_ renderer.Texture         = (*VulkanImage)(nil)
	_ renderer.CommandEncoder  = (*Encoder)(nil)
)

func New(cfg Config) (*Backend, error) {
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = time.Second
	}
	context, err := newContext(&cfg)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		config:  cfg,
		context: context,
		buffers: make(map[*Buffer]struct{}),
		images:  make(map[*VulkanImage]struct{}),
	}

	if b.framePool, err = b.createPool(vk.CommandPoolCreateResetCommandBufferBit); err != nil {
		return nil, err
	}
	if b.uploadPool, err = b.createPool(vk.CommandPoolCreateTransientBit); err != nil {
		b.destroyPools()
		return nil, err
	}
	if b.frame, err = NewVulkanCommandBuffer(context, b.framePool); err != nil {
		b.destroyPools()
		return nil, err
	}
	if b.inFlight, err = NewFence(context, true); err != nil {
		b.frame.Free(context, b.framePool)
		b.destroyPools()
		return nil, err
	}

	core.LogInfo("vulkan backend ready on queue family %d", cfg.QueueFamilyIndex)
	return b, nil
}

func (b *Backend) createPool(flags vk.CommandPoolCreateFlagBits) (vk.CommandPool, error) {
	var pool vk.CommandPool
	err := check(vk.CreateCommandPool(b.context.Device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: b.context.QueueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(flags),
	}, b.context.Allocator, &pool), "create command pool")
	return pool, err
}

func (b *Backend) destroyPools() {
	if b.framePool != nil {
		vk.DestroyCommandPool(b.context.Device, b.framePool, b.context.Allocator)
		b.framePool = nil
	}
	if b.uploadPool != nil {
		vk.DestroyCommandPool(b.context.Device, b.uploadPool, b.context.Allocator)
		b.uploadPool = nil
	}
}

func (b *Backend) RenderBufferCreate(bufferType metadata.RenderBufferType, totalSize uint64) (renderer.RenderBuffer, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.shutdown {
		return nil, core.ErrBackendShutdown
	}
	buf, err := newBuffer(b.context, bufferType, totalSize, bufferUsage(bufferType))
	if err != nil {
		return nil, err
	}
	buf.owner = b
	b.buffers[buf] = struct{}{}
	return buf, nil
}

func (b *Backend) TextureCreate(width, height uint32) (renderer.Texture, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.shutdown {
		return nil, core.ErrBackendShutdown
	}
	image, err := newImage(b.context, width, height)
	if err != nil {
		return nil, err
	}
	image.owner = b
	b.images[image] = struct{}{}
	return image, nil
}

func (b *Backend) forgetBuffer(buf *Buffer) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.buffers, buf)
}

func (b *Backend) forgetImage(image *VulkanImage) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	delete(b.images, image)
}

func (b *Backend) BeginFrame(clearColor metadata.Color) (renderer.CommandEncoder, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.shutdown {
		return nil, core.ErrBackendShutdown
	}
	if b.current != nil {
		return nil, core.ErrFrameInProgress
	}
	if !b.inFlight.Wait(b.context, uint64(b.config.FrameTimeout.Nanoseconds())) {
		return nil, fmt.Errorf("vulkan: previous frame did not complete within %s", b.config.FrameTimeout)
	}
	if err := b.frame.Reset(); err != nil {
		return nil, err
	}
	if err := b.frame.Begin(true); err != nil {
		return nil, err
	}
	if b.config.Hooks != nil {
		if err := b.config.Hooks.BeginPass(b.frame.Handle, clearColor); err != nil {
			_ = b.frame.End()
			return nil, err
		}
	}

	b.current = &Encoder{backend: b, cmd: b.frame}
	return b.current, nil
}

// EndFrame closes the render pass and submits the frame. Recording errors
// collected by the encoder are returned after the submission.
func (b *Backend) EndFrame(encoder renderer.CommandEncoder) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	enc, ok := encoder.(*Encoder)
	if !ok || b.current == nil || enc != b.current {
		return core.ErrFrameNotStarted
	}
	b.current = nil

	if b.config.Hooks != nil {
		if err := b.config.Hooks.EndPass(b.frame.Handle); err != nil {
			_ = b.frame.End()
			return err
		}
	}
	if err := b.frame.End(); err != nil {
		return err
	}
	if err := b.inFlight.Reset(b.context); err != nil {
		return err
	}
	if err := b.frame.Submit(b.context, b.inFlight); err != nil {
		return err
	}
	return enc.err()
}

// Shutdown waits for the device to go idle and releases everything the
// backend created. The adopted device and queue stay alive.
func (b *Backend) Shutdown() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.shutdown {
		return nil
	}
	b.shutdown = true
	b.current = nil

	err := check(vk.DeviceWaitIdle(b.context.Device), "wait for device idle")

	for buf := range b.buffers {
		buf.owner = nil
		buf.Destroy()
	}
	for image := range b.images {
		image.owner = nil
		image.Destroy()
	}
	b.buffers = make(map[*Buffer]struct{})
	b.images = make(map[*VulkanImage]struct{})

	b.inFlight.Destroy(b.context)
	b.frame.Free(b.context, b.framePool)
	b.destroyPools()

	return err
}
