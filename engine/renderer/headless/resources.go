package headless

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type Buffer struct {
	backend    *Backend
	bufferType metadata.RenderBufferType
	data       []byte
	destroyed  bool
}

func (b *Buffer) Type() metadata.RenderBufferType {
	return b.bufferType
}

func (b *Buffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *Buffer) LoadRange(offset uint64, data []byte) error {
	if b.destroyed {
		return fmt.Errorf("load into destroyed %s buffer", b.bufferType)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("load of %d bytes at %d overflows %s buffer of %d bytes", len(data), offset, b.bufferType, len(b.data))
	}
	copy(b.data[offset:], data)

	b.backend.mutex.Lock()
	b.backend.counters.BytesUploaded += uint64(len(data))
	b.backend.mutex.Unlock()
	return nil
}

// Bytes exposes the buffer content for inspection.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Destroyed() bool {
	return b.destroyed
}

func (b *Buffer) Destroy() {
	b.backend.mutex.Lock()
	defer b.backend.mutex.Unlock()

	if b.destroyed {
		return
	}
	b.destroyed = true
	b.data = nil
	delete(b.backend.buffers, b)
	b.backend.counters.BuffersDestroyed++
}

type Texture struct {
	backend *Backend
	width   uint32
	height  uint32
	pixels  []uint8
}

func (t *Texture) Width() uint32 {
	return t.width
}

func (t *Texture) Height() uint32 {
	return t.height
}

func (t *Texture) WriteData(x, y, width, height uint32, pixels []uint8) error {
	if t.pixels == nil {
		return fmt.Errorf("write into destroyed texture")
	}
	if x+width > t.width || y+height > t.height {
		return fmt.Errorf("block %dx%d at (%d,%d) outside %dx%d texture", width, height, x, y, t.width, t.height)
	}
	if len(pixels) != int(width)*int(height)*4 {
		return fmt.Errorf("expected %d bytes of pixels, got %d", width*height*4, len(pixels))
	}
	rowBytes := int(width) * 4
	for row := uint32(0); row < height; row++ {
		dst := (int(y+row)*int(t.width) + int(x)) * 4
		src := int(row) * rowBytes
		copy(t.pixels[dst:dst+rowBytes], pixels[src:src+rowBytes])
	}
	return nil
}

// Pixel returns the RGBA value at (x, y).
func (t *Texture) Pixel(x, y uint32) [4]uint8 {
	i := (int(y)*int(t.width) + int(x)) * 4
	return [4]uint8{t.pixels[i], t.pixels[i+1], t.pixels[i+2], t.pixels[i+3]}
}

func (t *Texture) Destroy() {
	t.backend.mutex.Lock()
	defer t.backend.mutex.Unlock()

	t.pixels = nil
	delete(t.backend.textures, t)
}
