package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

type rect struct {
	x, y, w, h uint32
}

func (a rect) overlaps(b rect) bool {
	return a.x < b.x+b.w && b.x < a.x+a.w && a.y < b.y+b.h && b.y < a.y+a.h
}

func TestShelfPackerOpensShelvesTopDown(t *testing.T) {
	p := NewShelfPacker(100, 100, 0)

	x, y, ok := p.Allocate(60, 20)
	require.True(t, ok)
	assert.Equal(t, [2]uint32{0, 0}, [2]uint32{x, y})

	x, y, ok = p.Allocate(60, 30)
	require.True(t, ok)
	assert.Equal(t, [2]uint32{0, 20}, [2]uint32{x, y})
	assert.Equal(t, 2, p.ShelfCount())
	assert.Equal(t, uint32(50), p.RemainingHeight())
}

func TestShelfPackerPrefersLeastWaste(t *testing.T) {
	p := NewShelfPacker(100, 100, 0)
	p.Allocate(50, 30) // shelf 0, height 30
	p.Allocate(60, 20) // shelf 1, height 20

	// Fits both shelves; shelf 1 wastes nothing.
	x, y, ok := p.Allocate(10, 20)
	require.True(t, ok)
	assert.Equal(t, [2]uint32{60, 30}, [2]uint32{x, y})
}

func TestShelfPackerTieBreaksOnLowestShelf(t *testing.T) {
	p := NewShelfPacker(100, 100, 0)
	p.Allocate(60, 20)
	p.Allocate(60, 20)

	x, y, ok := p.Allocate(10, 10)
	require.True(t, ok)
	assert.Equal(t, [2]uint32{60, 0}, [2]uint32{x, y})
}

func TestShelfPackerPadding(t *testing.T) {
	p := NewShelfPacker(32, 32, 2)

	x, y, ok := p.Allocate(10, 10)
	require.True(t, ok)
	assert.Equal(t, [2]uint32{2, 2}, [2]uint32{x, y})

	x, y, ok = p.Allocate(10, 10)
	require.True(t, ok)
	assert.Equal(t, [2]uint32{16, 2}, [2]uint32{x, y})

	assert.False(t, p.Fits(29, 4))
	assert.True(t, p.Fits(28, 28))
	assert.Equal(t, uint64(200), p.UsedArea())
	assert.InDelta(t, 200.0/1024.0, p.Utilization(), 1e-9)
}

func TestShelfPackerFailsWhenFull(t *testing.T) {
	p := NewShelfPacker(16, 16, 0)
	assert.False(t, p.Exhausted())
	_, _, ok := p.Allocate(16, 16)
	require.True(t, ok)
	assert.True(t, p.Exhausted())
	_, _, ok = p.Allocate(1, 1)
	assert.False(t, ok)

	p.Reset()
	_, _, ok = p.Allocate(1, 1)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), p.UsedArea())
}

func TestShelfPackerNotExhaustedByATallMiss(t *testing.T) {
	p := NewShelfPacker(100, 100, 2)
	_, _, ok := p.Allocate(96, 56)
	require.True(t, ok)

	_, _, ok = p.Allocate(96, 50)
	assert.False(t, ok)
	assert.False(t, p.Exhausted())
	assert.Equal(t, uint32(40), p.RemainingHeight())
}

func TestShelfPackerRandomAllocationsStayDisjoint(t *testing.T) {
	const width, height, padding = 512, 512, 2
	rng := rand.New(rand.NewSource(42))
	p := NewShelfPacker(width, height, padding)

	var placed []rect
	for i := 0; i < 2000; i++ {
		w := uint32(1 + rng.Intn(48))
		h := uint32(1 + rng.Intn(48))
		x, y, ok := p.Allocate(w, h)
		if !ok {
			continue
		}
		r := rect{x, y, w, h}
		require.LessOrEqual(t, r.x+r.w, uint32(width))
		require.LessOrEqual(t, r.y+r.h, uint32(height))

		padded := rect{x - padding, y - padding, w + 2*padding, h + 2*padding}
		for _, other := range placed {
			op := rect{other.x - padding, other.y - padding, other.w + 2*padding, other.h + 2*padding}
			require.False(t, padded.overlaps(op), "%+v overlaps %+v", r, other)
		}
		placed = append(placed, r)
	}
	require.NotEmpty(t, placed)
	assert.LessOrEqual(t, p.UsedArea(), p.TotalArea())
}
