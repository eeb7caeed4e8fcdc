package systems

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type PageState int

const (
	PageEmpty PageState = iota
	PagePartiallyFilled
	PageFull
)

func (s PageState) String() string {
	switch s {
	case PageEmpty:
		return "empty"
	case PagePartiallyFilled:
		return "partially-filled"
	default:
		return "full"
	}
}

type AtlasConfig struct {
	/** @brief Width in pixels of every page. */
	PageWidth uint32
	/** @brief Height in pixels of every page. */
	PageHeight uint32
	/** @brief Empty pixels kept around every image. */
	Padding uint32
	/** @brief Maximum number of pages, 0 means unbounded. */
	MaxPages int
}

type atlasPage struct {
	texture renderer.Texture
	packer  *ShelfPacker
	state   PageState
}

type atlasEntry struct {
	region metadata.TextureRegion
	x      uint32
	y      uint32
}

type AtlasPageStats struct {
	State       PageState
	UsedArea    uint64
	TotalArea   uint64
	Utilization float64
	Shelves     int
}

// TextureAtlas packs images into fixed size texture pages. When every page
// is full a new page is appended; existing images are never moved, so an
// issued TextureRegion stays valid until Clear.
//
// TextureAtlas is not safe for concurrent use.
type TextureAtlas struct {
	backend renderer.RendererBackend
	config  AtlasConfig
	pages   []*atlasPage
	regions map[metadata.Label]atlasEntry
	labels  []metadata.Label
}

func NewTextureAtlas(backend renderer.RendererBackend, config AtlasConfig) *TextureAtlas {
	return &TextureAtlas{
		backend: backend,
		config:  config,
		regions: make(map[metadata.Label]atlasEntry),
	}
}

func (ta *TextureAtlas) Config() AtlasConfig {
	return ta.config
}

func (ta *TextureAtlas) addPage() (*atlasPage, error) {
	if ta.config.MaxPages > 0 && len(ta.pages) >= ta.config.MaxPages {
		return nil, fmt.Errorf("%w: all %d pages are full", core.ErrAtlasCapacityExceeded, ta.config.MaxPages)
	}
	texture, err := ta.backend.TextureCreate(ta.config.PageWidth, ta.config.PageHeight)
	if err != nil {
		return nil, fmt.Errorf("failed to create atlas page %d: %w: %w", len(ta.pages), core.ErrOutOfDeviceMemory, err)
	}
	page := &atlasPage{
		texture: texture,
		packer:  NewShelfPacker(ta.config.PageWidth, ta.config.PageHeight, ta.config.Padding),
		state:   PageEmpty,
	}
	ta.pages = append(ta.pages, page)
	return page, nil
}

func (p *atlasPage) allocate(w, h uint32) (uint32, uint32, bool) {
	x, y, ok := p.packer.Allocate(w, h)
	switch {
	case p.packer.Exhausted():
		p.state = PageFull
	case ok:
		p.state = PagePartiallyFilled
	}
	return x, y, ok
}

// Allocate reserves room for a w x h image on the first page that can hold
// it, appending a page if none can.
func (ta *TextureAtlas) Allocate(w, h uint32) (page int, x, y uint32, err error) {
	empty := ShelfPacker{width: ta.config.PageWidth, height: ta.config.PageHeight, padding: ta.config.Padding}
	if !empty.Fits(w, h) {
		return 0, 0, 0, fmt.Errorf("%w: image %dx%d does not fit a %dx%d page with %d px padding",
			core.ErrAtlasCapacityExceeded, w, h, ta.config.PageWidth, ta.config.PageHeight, ta.config.Padding)
	}

	for i, p := range ta.pages {
		if p.state == PageFull {
			continue
		}
		if x, y, ok := p.allocate(w, h); ok {
			return i, x, y, nil
		}
	}

	p, err := ta.addPage()
	if err != nil {
		return 0, 0, 0, err
	}
	x, y, ok := p.allocate(w, h)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: image %dx%d rejected by an empty page", core.ErrAtlasCapacityExceeded, w, h)
	}
	return len(ta.pages) - 1, x, y, nil
}

// Upload copies RGBA8 pixels into a page. A rectangle outside the page or
// a pixel slice of the wrong length panics.
func (ta *TextureAtlas) Upload(page int, x, y, w, h uint32, pixels []uint8) error {
	if page < 0 || page >= len(ta.pages) {
		panic(fmt.Sprintf("atlas: page %d out of range [0,%d)", page, len(ta.pages)))
	}
	if x+w > ta.config.PageWidth || y+h > ta.config.PageHeight {
		panic(fmt.Sprintf("atlas: rectangle %dx%d at (%d,%d) outside the page", w, h, x, y))
	}
	if len(pixels) != int(w)*int(h)*4 {
		panic(fmt.Sprintf("atlas: expected %d bytes for a %dx%d image, got %d", int(w)*int(h)*4, w, h, len(pixels)))
	}
	if err := ta.pages[page].texture.WriteData(x, y, w, h, pixels); err != nil {
		return fmt.Errorf("failed to upload %dx%d image to page %d: %w", w, h, page, err)
	}
	return nil
}

func (ta *TextureAtlas) regionFor(page int, x, y, w, h uint32) metadata.TextureRegion {
	pw := float32(ta.config.PageWidth)
	ph := float32(ta.config.PageHeight)
	return metadata.TextureRegion{
		PageIndex: uint32(page),
		UOffset:   float32(x) / pw,
		VOffset:   float32(y) / ph,
		UScale:    float32(w) / pw,
		VScale:    float32(h) / ph,
		Width:     w,
		Height:    h,
	}
}

func (ta *TextureAtlas) insert(label metadata.Label, w, h uint32, pixels []uint8) (metadata.TextureRegion, error) {
	page, x, y, err := ta.Allocate(w, h)
	if err != nil {
		return metadata.TextureRegion{}, err
	}
	if err := ta.Upload(page, x, y, w, h, pixels); err != nil {
		return metadata.TextureRegion{}, err
	}
	region := ta.regionFor(page, x, y, w, h)
	if _, exists := ta.regions[label]; !exists {
		ta.labels = append(ta.labels, label)
	}
	ta.regions[label] = atlasEntry{region: region, x: x, y: y}
	return region, nil
}

// Add packs an image under label. Adding a label twice returns the first
// region and ignores the new pixels.
func (ta *TextureAtlas) Add(label metadata.Label, w, h uint32, pixels []uint8) (metadata.TextureRegion, error) {
	if e, ok := ta.regions[label]; ok {
		return e.region, nil
	}
	return ta.insert(label, w, h, pixels)
}

// Replace swaps the pixels of label. Same sized images are rewritten in
// place and keep their region; other sizes get a new region and the old
// space is not reclaimed.
func (ta *TextureAtlas) Replace(label metadata.Label, w, h uint32, pixels []uint8) (metadata.TextureRegion, error) {
	e, ok := ta.regions[label]
	if !ok || e.region.Width != w || e.region.Height != h {
		return ta.insert(label, w, h, pixels)
	}
	if err := ta.Upload(int(e.region.PageIndex), e.x, e.y, w, h, pixels); err != nil {
		return metadata.TextureRegion{}, err
	}
	return e.region, nil
}

func (ta *TextureAtlas) Region(label metadata.Label) (metadata.TextureRegion, bool) {
	e, ok := ta.regions[label]
	return e.region, ok
}

// Labels returns every packed label in insertion order.
func (ta *TextureAtlas) Labels() []metadata.Label {
	out := make([]metadata.Label, len(ta.labels))
	copy(out, ta.labels)
	return out
}

func (ta *TextureAtlas) PageCount() int {
	return len(ta.pages)
}

func (ta *TextureAtlas) PageState(page int) PageState {
	return ta.pages[page].state
}

// Pages returns the page textures, indexed by TextureRegion.PageIndex.
func (ta *TextureAtlas) Pages() []renderer.Texture {
	out := make([]renderer.Texture, len(ta.pages))
	for i, p := range ta.pages {
		out[i] = p.texture
	}
	return out
}

func (ta *TextureAtlas) Stats() []AtlasPageStats {
	out := make([]AtlasPageStats, len(ta.pages))
	for i, p := range ta.pages {
		out[i] = AtlasPageStats{
			State:       p.state,
			UsedArea:    p.packer.UsedArea(),
			TotalArea:   p.packer.TotalArea(),
			Utilization: p.packer.Utilization(),
			Shelves:     p.packer.ShelfCount(),
		}
	}
	return out
}

// UsedArea sums the image areas over every page.
func (ta *TextureAtlas) UsedArea() uint64 {
	var total uint64
	for _, p := range ta.pages {
		total += p.packer.UsedArea()
	}
	return total
}

// Clear destroys every page and forgets every region.
func (ta *TextureAtlas) Clear() {
	for _, p := range ta.pages {
		p.texture.Destroy()
	}
	ta.pages = nil
	ta.regions = make(map[metadata.Label]atlasEntry)
	ta.labels = nil
}
