package vulkan

import (
	"errors"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Encoder records into the frame command buffer of a Backend. Errors do
// not interrupt recording, they are collected and returned by EndFrame.
type Encoder struct {
	backend *Backend
	cmd     *VulkanCommandBuffer
	// skip is set while the bound class has no pipeline; draws are dropped.
	skip bool
	errs []error
}

func (e *Encoder) fail(err error) {
	e.errs = append(e.errs, err)
}

func (e *Encoder) err() error {
	return errors.Join(e.errs...)
}

func (e *Encoder) SetPipeline(class metadata.MaterialClass) {
	pipeline, ok := e.backend.config.Pipelines[class]
	if !ok {
		e.skip = true
		e.fail(fmt.Errorf("vulkan: no pipeline for %s materials", class))
		return
	}
	e.skip = false
	vk.CmdBindPipeline(e.cmd.Handle, vk.PipelineBindPointGraphics, pipeline)
}

func (e *Encoder) BindTextures(pages []renderer.Texture) {
	images := make([]*VulkanImage, 0, len(pages))
	for _, page := range pages {
		image, ok := page.(*VulkanImage)
		if !ok {
			e.fail(fmt.Errorf("vulkan: cannot bind texture of type %T", page))
			return
		}
		images = append(images, image)
	}
	if e.backend.config.Hooks != nil {
		e.backend.config.Hooks.BindTextures(e.cmd.Handle, e.backend.config.PipelineLayout, images)
	}
}

func (e *Encoder) BindGeometry(vertices, indices, instances renderer.RenderBuffer) {
	vb, vok := vertices.(*Buffer)
	ib, iok := indices.(*Buffer)
	nb, nok := instances.(*Buffer)
	if !vok || !iok || !nok {
		e.skip = true
		e.fail(fmt.Errorf("vulkan: cannot bind geometry buffers of type %T, %T and %T", vertices, indices, instances))
		return
	}
	// Binding 0 is per vertex, binding 1 per instance.
	vk.CmdBindVertexBuffers(e.cmd.Handle, 0, 2, []vk.Buffer{vb.Handle, nb.Handle}, []vk.DeviceSize{0, 0})
	vk.CmdBindIndexBuffer(e.cmd.Handle, ib.Handle, 0, vk.IndexTypeUint32)
}

func (e *Encoder) DrawIndexed(indexCount, instanceCount uint32) {
	if e.skip || indexCount == 0 || instanceCount == 0 {
		return
	}
	vk.CmdDrawIndexed(e.cmd.Handle, indexCount, instanceCount, 0, 0, 0)
}
