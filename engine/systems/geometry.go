package systems

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/**
 * @brief Vertex and index data uploaded once and shared by every mesh with
 * the same content. Never modified after creation.
 */
type GeometryBuffer struct {
	id          uint64
	payload     []byte
	vertices    *renderer.GPUBuffer[math.Vertex]
	indices     *renderer.GPUBuffer[uint32]
	vertexCount int
	indexCount  int
	refCount    atomic.Int32
}

// ID is the content hash of the geometry.
func (g *GeometryBuffer) ID() uint64 {
	return g.id
}

func (g *GeometryBuffer) VertexCount() int {
	return g.vertexCount
}

func (g *GeometryBuffer) IndexCount() int {
	return g.indexCount
}

func (g *GeometryBuffer) VertexBuffer() renderer.RenderBuffer {
	return g.vertices.Handle()
}

func (g *GeometryBuffer) IndexBuffer() renderer.RenderBuffer {
	return g.indices.Handle()
}

func (g *GeometryBuffer) Acquire() {
	g.refCount.Add(1)
}

// Release drops one reference and returns the remaining count. The buffer
// stays in its cache until the cache shuts down.
func (g *GeometryBuffer) Release() int {
	n := g.refCount.Add(-1)
	if n < 0 {
		g.refCount.Store(0)
		return 0
	}
	return int(n)
}

func (g *GeometryBuffer) RefCount() int {
	return int(g.refCount.Load())
}

func (g *GeometryBuffer) destroy() {
	g.vertices.Destroy()
	g.indices.Destroy()
	g.payload = nil
}

type GeometryCacheStats struct {
	Buffers    int
	Bytes      uint64
	Collisions int
}

// GeometryCache deduplicates geometry by content. Entries are never evicted
// while the cache is alive.
type GeometryCache struct {
	backend renderer.RendererBackend
	hash    func([]byte) uint64

	mutex      sync.RWMutex
	entries    map[uint64][]*GeometryBuffer
	count      int
	bytes      uint64
	collisions int
}

func NewGeometryCache(backend renderer.RendererBackend) *GeometryCache {
	return &GeometryCache{
		backend: backend,
		hash:    xxhash.Sum64,
		entries: make(map[uint64][]*GeometryBuffer),
	}
}

// encodeGeometry serializes the vertex count followed by the vertices and
// the indices, so that the same bytes split differently never compare equal.
func encodeGeometry(vertices []math.Vertex, indices []uint32) ([]byte, error) {
	payload := binary.LittleEndian.AppendUint32(nil, uint32(len(vertices)))
	payload, err := binary.Append(payload, binary.LittleEndian, vertices)
	if err != nil {
		return nil, err
	}
	return binary.Append(payload, binary.LittleEndian, indices)
}

func validateGeometry(vertices []math.Vertex, indices []uint32) error {
	if len(vertices) == 0 || len(indices) == 0 {
		return fmt.Errorf("%w: %d vertices and %d indices", core.ErrInvalidGeometry, len(vertices), len(indices))
	}
	for i, idx := range indices {
		if int(idx) >= len(vertices) {
			return fmt.Errorf("%w: index %d at position %d is out of range for %d vertices", core.ErrInvalidGeometry, idx, i, len(vertices))
		}
	}
	return nil
}

// lookup must be called with the mutex held.
func (gc *GeometryCache) lookup(id uint64, payload []byte) *GeometryBuffer {
	for _, g := range gc.entries[id] {
		if bytes.Equal(g.payload, payload) {
			return g
		}
	}
	return nil
}

// GetOrCreate returns the buffer holding exactly this content, uploading
// it on first use. Every call adds one reference.
func (gc *GeometryCache) GetOrCreate(vertices []math.Vertex, indices []uint32) (*GeometryBuffer, error) {
	if err := validateGeometry(vertices, indices); err != nil {
		return nil, err
	}
	payload, err := encodeGeometry(vertices, indices)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}
	id := gc.hash(payload)

	gc.mutex.RLock()
	if g := gc.lookup(id, payload); g != nil {
		g.Acquire()
		gc.mutex.RUnlock()
		return g, nil
	}
	gc.mutex.RUnlock()

	gc.mutex.Lock()
	defer gc.mutex.Unlock()

	// Another caller may have uploaded it in between.
	if g := gc.lookup(id, payload); g != nil {
		g.Acquire()
		return g, nil
	}

	g, err := gc.upload(id, payload, vertices, indices)
	if err != nil {
		return nil, err
	}
	if len(gc.entries[id]) > 0 {
		gc.collisions++
	}
	gc.entries[id] = append(gc.entries[id], g)
	gc.count++
	gc.bytes += uint64(len(vertices)*g.vertices.Stride() + len(indices)*g.indices.Stride())
	return g, nil
}

func (gc *GeometryCache) upload(id uint64, payload []byte, vertices []math.Vertex, indices []uint32) (*GeometryBuffer, error) {
	vb, err := renderer.NewGPUBuffer[math.Vertex](gc.backend, metadata.RENDERBUFFER_TYPE_VERTEX, len(vertices))
	if err != nil {
		return nil, err
	}
	if err := vb.Write(0, vertices); err != nil {
		vb.Destroy()
		return nil, err
	}

	ib, err := renderer.NewGPUBuffer[uint32](gc.backend, metadata.RENDERBUFFER_TYPE_INDEX, len(indices))
	if err != nil {
		vb.Destroy()
		return nil, err
	}
	if err := ib.Write(0, indices); err != nil {
		vb.Destroy()
		ib.Destroy()
		return nil, err
	}

	g := &GeometryBuffer{
		id:          id,
		payload:     payload,
		vertices:    vb,
		indices:     ib,
		vertexCount: len(vertices),
		indexCount:  len(indices),
	}
	g.refCount.Store(1)
	return g, nil
}

func (gc *GeometryCache) Len() int {
	gc.mutex.RLock()
	defer gc.mutex.RUnlock()
	return gc.count
}

// Collisions counts distinct contents that shared a hash with an existing entry.
func (gc *GeometryCache) Collisions() int {
	gc.mutex.RLock()
	defer gc.mutex.RUnlock()
	return gc.collisions
}

func (gc *GeometryCache) Stats() GeometryCacheStats {
	gc.mutex.RLock()
	defer gc.mutex.RUnlock()
	return GeometryCacheStats{
		Buffers:    gc.count,
		Bytes:      gc.bytes,
		Collisions: gc.collisions,
	}
}

// Shutdown destroys every buffer, whatever its reference count.
func (gc *GeometryCache) Shutdown() {
	gc.mutex.Lock()
	defer gc.mutex.Unlock()

	for _, chain := range gc.entries {
		for _, g := range chain {
			g.destroy()
		}
	}
	gc.entries = make(map[uint64][]*GeometryBuffer)
	gc.count = 0
	gc.bytes = 0
}
