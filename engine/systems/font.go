package systems

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	firstPrintable rune = 32
	lastPrintable  rune = 126
	tabSpaces           = 4
)

// Font is a glyph table whose glyph images live in a texture atlas.
type Font struct {
	Data   *metadata.FontData
	labels map[rune]metadata.Label
}

// GlyphLabel returns the atlas label of a glyph image. Glyphs without
// pixels, such as space, have no label.
func (f *Font) GlyphLabel(codepoint rune) (metadata.Label, bool) {
	l, ok := f.labels[codepoint]
	return l, ok
}

// FontSystem rasterizes fonts into the atlas shared with images.
type FontSystem struct {
	atlas  *TextureAtlas
	fonts  *containers.SlotMap[Font]
	serial int
}

func NewFontSystem(atlas *TextureAtlas) *FontSystem {
	return &FontSystem{
		atlas: atlas,
		fonts: containers.NewSlotMap[Font](),
	}
}

func (fs *FontSystem) Get(h containers.Handle[Font]) (*Font, bool) {
	return fs.fonts.Get(h)
}

func (fs *FontSystem) Count() int {
	return fs.fonts.Len()
}

func (fs *FontSystem) glyphLabel(face string, codepoint rune) metadata.Label {
	return metadata.NewLabel(fmt.Sprintf("font/%d/%s/%d", fs.serial, face, codepoint))
}

// LoadDefaultFont loads the embedded Go Regular face.
func (fs *FontSystem) LoadDefaultFont(size float64) (containers.Handle[Font], error) {
	return fs.LoadSystemFont("Go Regular", goregular.TTF, size)
}

// LoadSystemFont rasterizes the printable ASCII range of a TrueType or
// OpenType font at size pixels.
func (fs *FontSystem) LoadSystemFont(name string, ttf []byte, size float64) (containers.Handle[Font], error) {
	var zero containers.Handle[Font]
	if size <= 0 {
		return zero, fmt.Errorf("%w: font size %.2f", core.ErrInvalidFont, size)
	}
	parsed, err := opentype.Parse(ttf)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", core.ErrInvalidFont, err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return zero, fmt.Errorf("%w: %w", core.ErrInvalidFont, err)
	}
	defer face.Close()

	fs.serial++
	metrics := face.Metrics()
	data := &metadata.FontData{
		Type:       metadata.FONT_TYPE_SYSTEM,
		Face:       name,
		Size:       uint32(size),
		LineHeight: int32(metrics.Height.Ceil()),
		Baseline:   int32(metrics.Ascent.Ceil()),
		AtlasSizeX: int32(fs.atlas.config.PageWidth),
		AtlasSizeY: int32(fs.atlas.config.PageHeight),
	}
	f := Font{Data: data, labels: make(map[rune]metadata.Label)}

	// Glyphs are drawn with the dot on the baseline, so offsets are
	// relative to the top of the line.
	dot := fixed.Point26_6{X: 0, Y: fixed.I(int(data.Baseline))}
	for r := firstPrintable; r <= lastPrintable; r++ {
		dr, mask, maskp, advance, ok := face.Glyph(dot, r)
		if !ok {
			continue
		}
		g := metadata.FontGlyph{
			Codepoint: r,
			Width:     uint16(dr.Dx()),
			Height:    uint16(dr.Dy()),
			XOffset:   int16(dr.Min.X),
			YOffset:   int16(dr.Min.Y),
			XAdvance:  int16(advance.Round()),
		}
		data.Glyphs = append(data.Glyphs, g)
		if dr.Empty() {
			continue
		}

		rgba := image.NewRGBA(image.Rect(0, 0, dr.Dx(), dr.Dy()))
		draw.DrawMask(rgba, rgba.Bounds(), image.White, image.Point{}, mask, maskp, draw.Src)
		label := fs.glyphLabel(name, r)
		if _, err := fs.atlas.Add(label, uint32(dr.Dx()), uint32(dr.Dy()), rgba.Pix); err != nil {
			return zero, fmt.Errorf("failed to pack glyph %q of %s: %w", r, name, err)
		}
		f.labels[r] = label
	}

	for a := firstPrintable; a <= lastPrintable; a++ {
		for b := firstPrintable; b <= lastPrintable; b++ {
			if k := face.Kern(a, b).Round(); k != 0 {
				data.Kernings = append(data.Kernings, metadata.FontKerning{Codepoint0: a, Codepoint1: b, Amount: int16(k)})
			}
		}
	}
	if space, ok := data.Glyph(' '); ok {
		data.TabXAdvance = float32(space.XAdvance) * tabSpaces
	}

	return fs.fonts.Insert(f), nil
}

// LoadBitmapFont packs the glyphs of an already decoded bitmap font.
func (fs *FontSystem) LoadBitmapFont(res *metadata.BitmapFontResourceData) (containers.Handle[Font], error) {
	var zero containers.Handle[Font]
	if res == nil || res.Data == nil {
		return zero, fmt.Errorf("%w: empty bitmap font", core.ErrInvalidFont)
	}

	pages := make(map[uint8]*metadata.ImageResourceData, len(res.Pages))
	for _, p := range res.Pages {
		if p.Image == nil {
			return zero, fmt.Errorf("%w: page %d (%s) was not decoded", core.ErrInvalidFont, p.ID, p.File)
		}
		pages[uint8(p.ID)] = p.Image
	}

	fs.serial++
	f := Font{Data: res.Data, labels: make(map[rune]metadata.Label)}
	for _, g := range res.Data.Glyphs {
		if g.Width == 0 || g.Height == 0 {
			continue
		}
		page, ok := pages[g.PageID]
		if !ok {
			return zero, fmt.Errorf("%w: glyph %q refers to missing page %d", core.ErrInvalidFont, g.Codepoint, g.PageID)
		}
		pixels, err := subImage(page, uint32(g.X), uint32(g.Y), uint32(g.Width), uint32(g.Height))
		if err != nil {
			return zero, fmt.Errorf("%w: glyph %q: %w", core.ErrInvalidFont, g.Codepoint, err)
		}
		label := fs.glyphLabel(res.Data.Face, g.Codepoint)
		if _, err := fs.atlas.Add(label, uint32(g.Width), uint32(g.Height), pixels); err != nil {
			return zero, fmt.Errorf("failed to pack glyph %q of %s: %w", g.Codepoint, res.Data.Face, err)
		}
		f.labels[g.Codepoint] = label
	}
	if res.Data.TabXAdvance == 0 {
		if space, ok := res.Data.Glyph(' '); ok {
			res.Data.TabXAdvance = float32(space.XAdvance) * tabSpaces
		}
	}

	return fs.fonts.Insert(f), nil
}

// subImage copies a rectangle out of an RGBA page.
func subImage(img *metadata.ImageResourceData, x, y, w, h uint32) ([]uint8, error) {
	if x+w > img.Width || y+h > img.Height {
		return nil, fmt.Errorf("rectangle %dx%d at (%d,%d) outside %dx%d page", w, h, x, y, img.Width, img.Height)
	}
	out := make([]uint8, 0, w*h*4)
	for row := y; row < y+h; row++ {
		start := (row*img.Width + x) * 4
		out = append(out, img.Pixels[start:start+w*4]...)
	}
	return out, nil
}

// Remove forgets a font. Its glyph images stay in the atlas.
func (fs *FontSystem) Remove(h containers.Handle[Font]) bool {
	_, ok := fs.fonts.Remove(h)
	return ok
}

func (fs *FontSystem) Shutdown() {
	fs.fonts.Clear()
}
