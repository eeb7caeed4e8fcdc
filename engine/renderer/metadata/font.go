package metadata

type FontType int

const (
	FONT_TYPE_BITMAP FontType = iota
	FONT_TYPE_SYSTEM
)

func (t FontType) String() string {
	if t == FONT_TYPE_BITMAP {
		return "bitmap"
	}
	return "system"
}

/** @brief Placement of one glyph, in pixels, relative to its source page. */
type FontGlyph struct {
	Codepoint rune
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

type FontKerning struct {
	Codepoint0 rune
	Codepoint1 rune
	Amount     int16
}

/**
 * @brief Metrics and glyph tables shared by bitmap and system fonts.
 */
type FontData struct {
	Type       FontType
	Face       string
	Size       uint32
	LineHeight int32
	Baseline   int32
	/** @brief Width of the source pages the glyph rectangles refer to. */
	AtlasSizeX int32
	/** @brief Height of the source pages the glyph rectangles refer to. */
	AtlasSizeY  int32
	Glyphs      []FontGlyph
	Kernings    []FontKerning
	TabXAdvance float32
}

// Glyph looks up the glyph of codepoint.
func (f *FontData) Glyph(codepoint rune) (FontGlyph, bool) {
	for _, g := range f.Glyphs {
		if g.Codepoint == codepoint {
			return g, true
		}
	}
	return FontGlyph{}, false
}

// Kerning returns the advance adjustment between two codepoints, 0 if the
// pair is not kerned.
func (f *FontData) Kerning(first, second rune) int16 {
	for _, k := range f.Kernings {
		if k.Codepoint0 == first && k.Codepoint1 == second {
			return k.Amount
		}
	}
	return 0
}

type BitmapFontPage struct {
	ID    int8
	File  string
	Image *ImageResourceData
}

type BitmapFontResourceData struct {
	Data  *FontData
	Pages []BitmapFontPage
}

type SystemFontResourceData struct {
	Name string
	/** @brief Raw TrueType/OpenType bytes. */
	Binary []byte
}
