package systems

// ShelfPacker packs rectangles into a fixed size page using horizontal
// shelves. Every rectangle is surrounded by padding pixels on each side.
type ShelfPacker struct {
	width    uint32
	height   uint32
	padding  uint32
	shelves  []shelf
	currentY uint32
	usedArea uint64
}

// shelf is a horizontal strip of the page.
type shelf struct {
	y      uint32 // top of the strip
	height uint32 // padded height of the strip
	x      uint32 // next free column
}

func NewShelfPacker(width, height, padding uint32) *ShelfPacker {
	return &ShelfPacker{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// Fits reports whether a w x h image can ever be placed on an empty page.
func (p *ShelfPacker) Fits(w, h uint32) bool {
	return w > 0 && h > 0 && w+p.padding*2 <= p.width && h+p.padding*2 <= p.height
}

// Allocate reserves a w x h rectangle and returns its top left corner.
//
// Among the shelves tall and wide enough, the one wasting the least area
// wins, the lowest one on a tie. When none qualifies a new shelf is opened
// under the last one.
func (p *ShelfPacker) Allocate(w, h uint32) (x, y uint32, ok bool) {
	if !p.Fits(w, h) {
		return 0, 0, false
	}
	pw := w + p.padding*2
	ph := h + p.padding*2

	best := -1
	var bestWaste uint64
	for i := range p.shelves {
		s := &p.shelves[i]
		if ph > s.height || s.x+pw > p.width {
			continue
		}
		waste := uint64(s.height-ph) * uint64(pw)
		if best < 0 || waste < bestWaste {
			best = i
			bestWaste = waste
		}
	}

	if best >= 0 {
		s := &p.shelves[best]
		x, y = s.x+p.padding, s.y+p.padding
		s.x += pw
		p.usedArea += uint64(w) * uint64(h)
		return x, y, true
	}

	if p.currentY+ph > p.height {
		return 0, 0, false
	}
	p.shelves = append(p.shelves, shelf{y: p.currentY, height: ph, x: pw})
	x, y = p.padding, p.currentY+p.padding
	p.currentY += ph
	p.usedArea += uint64(w) * uint64(h)
	return x, y, true
}

func (p *ShelfPacker) Reset() {
	p.shelves = p.shelves[:0]
	p.currentY = 0
	p.usedArea = 0
}

// UsedArea is the sum of the allocated image areas, padding excluded.
func (p *ShelfPacker) UsedArea() uint64 {
	return p.usedArea
}

func (p *ShelfPacker) TotalArea() uint64 {
	return uint64(p.width) * uint64(p.height)
}

// Utilization returns the fraction of the page covered by images, 0 to 1.
func (p *ShelfPacker) Utilization() float64 {
	total := p.TotalArea()
	if total == 0 {
		return 0
	}
	return float64(p.usedArea) / float64(total)
}

func (p *ShelfPacker) ShelfCount() int {
	return len(p.shelves)
}

// Exhausted reports whether not even a 1x1 image can be placed anymore.
func (p *ShelfPacker) Exhausted() bool {
	smallest := 1 + p.padding*2
	if p.height-p.currentY >= smallest {
		return false
	}
	for _, s := range p.shelves {
		if p.width-s.x >= smallest {
			return false
		}
	}
	return true
}

// RemainingHeight is the vertical space left for new shelves.
func (p *ShelfPacker) RemainingHeight() uint32 {
	return p.height - p.currentY
}
