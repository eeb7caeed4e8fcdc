package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Counters are the allocation totals of a Backend since its creation.
type Counters struct {
	BuffersCreated   int
	BuffersDestroyed int
	TexturesCreated  int
	BytesAllocated   uint64
	BytesUploaded    uint64
	Frames           int
}

// Backend keeps buffers and textures in memory and records the commands
// of every frame. It is safe for concurrent allocation.
type Backend struct {
	mutex sync.Mutex

	counters  Counters
	buffers   map[*Buffer]struct{}
	textures  map[*Texture]struct{}
	current   *Encoder
	lastFrame []Command
	shutdown  bool

	// MaxBufferSize makes RenderBufferCreate fail above the given size, 0
	// means no limit.
	MaxBufferSize uint64
}

func New() *Backend {
	return &Backend{
		buffers:  make(map[*Buffer]struct{}),
		textures: make(map[*Texture]struct{}),
	}
}

func (b *Backend) RenderBufferCreate(bufferType metadata.RenderBufferType, totalSize uint64) (renderer.RenderBuffer, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.shutdown {
		return nil, core.ErrBackendShutdown
	}
	if b.MaxBufferSize > 0 && totalSize > b.MaxBufferSize {
		return nil, fmt.Errorf("%s buffer of %d bytes exceeds the %d byte limit", bufferType, totalSize, b.MaxBufferSize)
	}

	buf := &Buffer{
		backend:    b,
		bufferType: bufferType,
		data:       make([]byte, totalSize),
	}
	b.buffers[buf] = struct{}{}
	b.counters.BuffersCreated++
	b.counters.BytesAllocated += totalSize
	return buf, nil
}

func (b *Backend) TextureCreate(width, height uint32) (renderer.Texture, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.shutdown {
		return nil, core.ErrBackendShutdown
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("invalid texture size %dx%d", width, height)
	}

	tex := &Texture{
		backend: b,
		width:   width,
		height:  height,
		pixels:  make([]uint8, int(width)*int(height)*4),
	}
	b.textures[tex] = struct{}{}
	b.counters.TexturesCreated++
	return tex, nil
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
	b.current = &Encoder{ClearColor: clearColor}
	return b.current, nil
}

func (b *Backend) EndFrame(encoder renderer.CommandEncoder) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	enc, ok := encoder.(*Encoder)
	if !ok || b.current == nil || enc != b.current {
		return core.ErrFrameNotStarted
	}
	b.lastFrame = enc.Commands
	b.current = nil
	b.counters.Frames++
	return nil
}

// Shutdown releases every live buffer and texture. Later allocations fail
// with core.ErrBackendShutdown.
func (b *Backend) Shutdown() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for buf := range b.buffers {
		buf.data = nil
		buf.destroyed = true
		b.counters.BuffersDestroyed++
	}
	for tex := range b.textures {
		tex.pixels = nil
	}
	b.buffers = make(map[*Buffer]struct{})
	b.textures = make(map[*Texture]struct{})
	b.current = nil
	b.shutdown = true
	return nil
}

func (b *Backend) Counters() Counters {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.counters
}

// LiveBuffers is the number of buffers created and not yet destroyed.
func (b *Backend) LiveBuffers() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.buffers)
}

// LastFrame returns the commands recorded by the last completed frame.
func (b *Backend) LastFrame() []Command {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.lastFrame
}

// Draws filters the draw commands out of the last completed frame.
func (b *Backend) Draws() []Command {
	var draws []Command
	for _, c := range b.LastFrame() {
		if c.Kind == CommandDrawIndexed {
			draws = append(draws, c)
		}
	}
	return draws
}
