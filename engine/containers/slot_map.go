package containers

import "fmt"

// Handle is a generation-checked reference to an entry of a SlotMap[T].
// The type parameter only tags the handle so that handles of different
// kinds cannot be mixed up; it is never dereferenced directly.
//
// The zero Handle is a valid reference to the first slot of a fresh map,
// it is not a "nil" sentinel.
type Handle[T any] struct {
	index      uint32
	generation uint32
}

func (h Handle[T]) Index() uint32 {
	return h.index
}

func (h Handle[T]) Generation() uint32 {
	return h.generation
}

// Key packs the handle into a single integer, usable as a map key.
func (h Handle[T]) Key() uint64 {
	return uint64(h.index)<<32 | uint64(h.generation)
}

func (h Handle[T]) String() string {
	return fmt.Sprintf("%d:%d", h.index, h.generation)
}

type slot[T any] struct {
	generation uint32
	occupied   bool
	item       T
}

// SlotMap is an array backed arena with O(1) insert, lookup and removal.
// Freed slots are reused; every reuse bumps the slot generation so that
// handles issued before the removal stop resolving.
type SlotMap[T any] struct {
	slots    []slot[T]
	freeList []uint32
	count    int
}

func NewSlotMap[T any]() *SlotMap[T] {
	return &SlotMap[T]{}
}

// Insert stores item and returns its handle. It never fails.
func (sm *SlotMap[T]) Insert(item T) Handle[T] {
	sm.count++
	if n := len(sm.freeList); n > 0 {
		index := sm.freeList[n-1]
		sm.freeList = sm.freeList[:n-1]

		s := &sm.slots[index]
		s.generation++
		s.occupied = true
		s.item = item
		return Handle[T]{index: index, generation: s.generation}
	}

	index := uint32(len(sm.slots))
	sm.slots = append(sm.slots, slot[T]{occupied: true, item: item})
	return Handle[T]{index: index, generation: 0}
}

func (sm *SlotMap[T]) resolve(h Handle[T]) *slot[T] {
	if int(h.index) >= len(sm.slots) {
		return nil
	}
	s := &sm.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return nil
	}
	return s
}

// Get returns a pointer to the item referenced by h. The pointer stays
// valid until the next Insert; callers must not keep it across frames.
func (sm *SlotMap[T]) Get(h Handle[T]) (*T, bool) {
	s := sm.resolve(h)
	if s == nil {
		return nil, false
	}
	return &s.item, true
}

func (sm *SlotMap[T]) Contains(h Handle[T]) bool {
	return sm.resolve(h) != nil
}

// Remove takes the item out of the map. A stale handle leaves the map
// untouched.
func (sm *SlotMap[T]) Remove(h Handle[T]) (T, bool) {
	var zero T
	s := sm.resolve(h)
	if s == nil {
		return zero, false
	}
	item := s.item
	s.item = zero
	s.occupied = false
	sm.freeList = append(sm.freeList, h.index)
	sm.count--
	return item, true
}

func (sm *SlotMap[T]) Len() int {
	return sm.count
}

// Clear removes every item. Generations of occupied slots are bumped so
// that no handle issued before the call resolves afterwards.
func (sm *SlotMap[T]) Clear() {
	var zero T
	sm.freeList = sm.freeList[:0]
	for i := len(sm.slots) - 1; i >= 0; i-- {
		s := &sm.slots[i]
		if s.occupied {
			s.generation++
			s.occupied = false
			s.item = zero
		}
		sm.freeList = append(sm.freeList, uint32(i))
	}
	sm.count = 0
}

// Each calls fn for every live item until fn returns false. The visiting
// order is unspecified.
func (sm *SlotMap[T]) Each(fn func(Handle[T], *T) bool) {
	for i := range sm.slots {
		s := &sm.slots[i]
		if !s.occupied {
			continue
		}
		if !fn(Handle[T]{index: uint32(i), generation: s.generation}, &s.item) {
			return
		}
	}
}
