package systems

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// BatchKey identifies a batch: every instance sharing geometry and
// material class is drawn with one call.
type BatchKey struct {
	Geometry uint64
	Class    metadata.MaterialClass
}

type batchID struct {
	geometry *GeometryBuffer
	class    metadata.MaterialClass
}

type Batch struct {
	key          BatchKey
	geometry     *GeometryBuffer
	pending      []metadata.InstanceRecord
	instances    *renderer.GPUBuffer[metadata.InstanceRecord]
	lastCount    int
	needsRebuild bool
	idleFrames   int
}

func (b *Batch) Key() BatchKey {
	return b.key
}

// Capacity is the number of instances the device buffer holds, 0 before
// the first present.
func (b *Batch) Capacity() int {
	if b.instances == nil {
		return 0
	}
	return b.instances.Capacity()
}

func (b *Batch) release() {
	if b.instances != nil {
		b.instances.Destroy()
		b.instances = nil
	}
	b.geometry.Release()
	b.pending = nil
}

// BatchManager groups submitted instances by geometry and material class.
// Batches are presented in the order their key was first submitted, not in
// submission order; callers needing strict layering must use depth or
// separate renderers.
type BatchManager struct {
	backend         renderer.RendererBackend
	initialCapacity int
	idleFrameLimit  int
	batches         map[batchID]*Batch
	order           []*Batch
}

// NewBatchManager creates instance buffers of initialCapacity records. A
// batch without submissions for idleFrameLimit presents is dropped, 0
// keeps batches forever.
func NewBatchManager(backend renderer.RendererBackend, initialCapacity, idleFrameLimit int) *BatchManager {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &BatchManager{
		backend:         backend,
		initialCapacity: initialCapacity,
		idleFrameLimit:  idleFrameLimit,
		batches:         make(map[batchID]*Batch),
	}
}

// Submit queues one instance for the next Present.
func (bm *BatchManager) Submit(geometry *GeometryBuffer, class metadata.MaterialClass, record metadata.InstanceRecord) {
	id := batchID{geometry: geometry, class: class}
	b, ok := bm.batches[id]
	if !ok {
		geometry.Acquire()
		b = &Batch{
			key:      BatchKey{Geometry: geometry.ID(), Class: class},
			geometry: geometry,
		}
		bm.batches[id] = b
		bm.order = append(bm.order, b)
	}
	b.pending = append(b.pending, record)
	b.needsRebuild = len(b.pending) != b.lastCount
}

func (bm *BatchManager) prepare(b *Batch, stats *metadata.FrameStats) error {
	count := len(b.pending)
	if b.instances == nil {
		capacity := bm.initialCapacity
		if count > capacity {
			capacity = count
		}
		buf, err := renderer.NewGPUBuffer[metadata.InstanceRecord](bm.backend, metadata.RENDERBUFFER_TYPE_INSTANCE, capacity)
		if err != nil {
			return err
		}
		b.instances = buf
	} else if b.needsRebuild {
		// A growth must not carry last frame's records over.
		b.instances.Reset()
		grew, err := b.instances.Reserve(count)
		if err != nil {
			return err
		}
		if grew {
			stats.BufferGrowths++
		}
	}

	b.instances.Reset()
	if err := b.instances.Write(0, b.pending); err != nil {
		return err
	}
	stats.InstanceWrites++
	return nil
}

// Present uploads the pending instances and records one draw per non empty
// batch. On error the frame is abandoned and every pending instance dropped.
func (bm *BatchManager) Present(encoder renderer.CommandEncoder) (metadata.FrameStats, error) {
	var stats metadata.FrameStats
	var lastClass metadata.MaterialClass
	bound := false

	for _, b := range bm.order {
		count := len(b.pending)
		if count == 0 {
			b.idleFrames++
			b.lastCount = 0
			continue
		}
		b.idleFrames = 0

		if err := bm.prepare(b, &stats); err != nil {
			bm.dropPending()
			return stats, fmt.Errorf("failed to present batch %+v: %w", b.key, err)
		}

		if !bound || b.key.Class != lastClass {
			encoder.SetPipeline(b.key.Class)
			stats.PipelineSwitches++
			lastClass = b.key.Class
			bound = true
		}
		encoder.BindGeometry(b.geometry.VertexBuffer(), b.geometry.IndexBuffer(), b.instances.Handle())
		encoder.DrawIndexed(uint32(b.geometry.IndexCount()), uint32(count))

		stats.DrawCalls++
		stats.Vertices += b.geometry.VertexCount()
		stats.Indices += b.geometry.IndexCount()
		stats.Instances += count

		b.lastCount = count
		b.needsRebuild = false
		b.pending = b.pending[:0]
	}

	bm.evictIdle()
	return stats, nil
}

func (bm *BatchManager) dropPending() {
	for _, b := range bm.order {
		b.pending = b.pending[:0]
		b.needsRebuild = true
	}
}

func (bm *BatchManager) evictIdle() {
	if bm.idleFrameLimit <= 0 {
		return
	}
	kept := bm.order[:0]
	for _, b := range bm.order {
		if b.idleFrames >= bm.idleFrameLimit {
			delete(bm.batches, batchID{geometry: b.geometry, class: b.key.Class})
			b.release()
			continue
		}
		kept = append(kept, b)
	}
	for i := len(kept); i < len(bm.order); i++ {
		bm.order[i] = nil
	}
	bm.order = kept
}

func (bm *BatchManager) BatchCount() int {
	return len(bm.order)
}

// Batches returns the batch keys in presentation order.
func (bm *BatchManager) Batches() []BatchKey {
	keys := make([]BatchKey, len(bm.order))
	for i, b := range bm.order {
		keys[i] = b.key
	}
	return keys
}

// Batch returns the batch of key, mainly for diagnostics.
func (bm *BatchManager) Batch(key BatchKey) (*Batch, bool) {
	for _, b := range bm.order {
		if b.key == key {
			return b, true
		}
	}
	return nil, false
}

// PendingInstances counts the instances queued since the last Present.
func (bm *BatchManager) PendingInstances() int {
	n := 0
	for _, b := range bm.order {
		n += len(b.pending)
	}
	return n
}

func (bm *BatchManager) Shutdown() {
	for _, b := range bm.order {
		b.release()
	}
	bm.order = nil
	bm.batches = make(map[batchID]*Batch)
}
