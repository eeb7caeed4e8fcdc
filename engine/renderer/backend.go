package renderer

import "github.com/spaghettifunk/tessera/engine/renderer/metadata"

// RenderBuffer is a device buffer created by a RendererBackend.
type RenderBuffer interface {
	Type() metadata.RenderBufferType
	/** @brief Total size of the buffer in bytes. */
	Size() uint64
	/** @brief Uploads data starting at offset bytes into the buffer. */
	LoadRange(offset uint64, data []byte) error
	Destroy()
}

// Texture is a device RGBA8 image, used as an atlas page.
type Texture interface {
	Width() uint32
	Height() uint32
	/** @brief Writes a width*height*4 byte RGBA block at (x, y). */
	WriteData(x, y, width, height uint32, pixels []uint8) error
	Destroy()
}

// CommandEncoder records the draw commands of a single frame.
type CommandEncoder interface {
	SetPipeline(class metadata.MaterialClass)
	/** @brief Binds the atlas pages; instance records index into this list. */
	BindTextures(pages []Texture)
	BindGeometry(vertices, indices, instances RenderBuffer)
	DrawIndexed(indexCount, instanceCount uint32)
}

// RendererBackend is the device side of a renderer. Window, swapchain,
// render pass and pipeline creation belong to whoever builds the backend.
type RendererBackend interface {
	RenderBufferCreate(bufferType metadata.RenderBufferType, totalSize uint64) (RenderBuffer, error)
	TextureCreate(width, height uint32) (Texture, error)
	BeginFrame(clearColor metadata.Color) (CommandEncoder, error)
	EndFrame(encoder CommandEncoder) error
	Shutdown() error
}
