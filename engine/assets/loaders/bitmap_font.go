package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/fzipp/bmfont"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// BitmapFontLoader reads AngelCode .fnt descriptors and decodes their page
// images, which are looked up next to the descriptor.
type BitmapFontLoader struct{}

func (fl *BitmapFontLoader) Load(path string) (*metadata.Resource, error) {
	if filepath.Ext(path) != ".fnt" {
		return nil, fmt.Errorf("%w: unsupported bitmap font file %s", core.ErrInvalidFont, path)
	}
	data, err := fl.importFNTFile(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     data.Data.Face,
		FullPath: path,
		Type:     metadata.ResourceTypeBitmapFont,
		Data:     data,
	}, nil
}

func (fl *BitmapFontLoader) Unload(resource *metadata.Resource) error {
	if resource.Data != nil {
		data := resource.Data.(*metadata.BitmapFontResourceData)
		data.Data.Glyphs = nil
		data.Data.Kernings = nil
		data.Pages = nil
		resource.Data = nil
		resource.FullPath = ""
	}
	return nil
}

func (fl *BitmapFontLoader) importFNTFile(fntFileName string) (*metadata.BitmapFontResourceData, error) {
	font, err := bmfont.Load(fntFileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidFont, err)
	}
	desc := font.Descriptor

	out := &metadata.BitmapFontResourceData{
		Data: &metadata.FontData{
			Type:       metadata.FONT_TYPE_BITMAP,
			Face:       desc.Info.Face,
			Size:       uint32(desc.Info.Size),
			LineHeight: int32(desc.Common.LineHeight),
			Baseline:   int32(desc.Common.Base),
			AtlasSizeX: int32(desc.Common.ScaleW),
			AtlasSizeY: int32(desc.Common.ScaleH),
		},
	}

	images := &ImageLoader{}
	dir := filepath.Dir(fntFileName)
	for _, p := range desc.Pages {
		res, err := images.Load(filepath.Join(dir, p.File))
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", core.ErrInvalidFont, p.ID, err)
		}
		out.Pages = append(out.Pages, metadata.BitmapFontPage{
			ID:    int8(p.ID),
			File:  p.File,
			Image: res.Data.(*metadata.ImageResourceData),
		})
	}

	for _, g := range desc.Chars {
		out.Data.Glyphs = append(out.Data.Glyphs, metadata.FontGlyph{
			Codepoint: rune(g.ID),
			X:         uint16(g.X),
			Y:         uint16(g.Y),
			Width:     uint16(g.Width),
			Height:    uint16(g.Height),
			XOffset:   int16(g.XOffset),
			YOffset:   int16(g.YOffset),
			XAdvance:  int16(g.XAdvance),
			PageID:    uint8(g.Page),
		})
	}

	for p, k := range desc.Kerning {
		out.Data.Kernings = append(out.Data.Kernings, metadata.FontKerning{
			Codepoint0: rune(p.First),
			Codepoint1: rune(p.Second),
			Amount:     int16(k.Amount),
		})
	}

	return out, nil
}
