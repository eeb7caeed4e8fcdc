package systems

import (
	"unicode/utf8"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief One laid out glyph, in pixels relative to the top left of the text. */
type GlyphQuad struct {
	Codepoint rune
	Offset    math.Vec2
	Size      math.Vec2
	Label     metadata.Label
}

/**
 * @brief A run of text drawn with one font. Glyphs are laid out lazily the
 * next time the text is drawn after a content change.
 */
type Text struct {
	Font      containers.Handle[Font]
	Transform math.Transform
	Color     metadata.Color

	content string
	glyphs  []GlyphQuad
	bounds  math.Vec2
	dirty   bool
}

func NewText(font containers.Handle[Font], content string) Text {
	return Text{
		Font:      font,
		Transform: math.TransformCreate(),
		Color:     metadata.ColorWhite,
		content:   content,
		dirty:     true,
	}
}

func (t *Text) Content() string {
	return t.content
}

func (t *Text) SetContent(content string) {
	if content == t.content {
		return
	}
	t.content = content
	t.dirty = true
}

// Glyphs returns the last layout; it is stale while the text is dirty.
func (t *Text) Glyphs() []GlyphQuad {
	return t.glyphs
}

// Bounds is the size in pixels of the last layout.
func (t *Text) Bounds() math.Vec2 {
	return t.bounds
}

func (t *Text) layout(f *Font) {
	t.glyphs, t.bounds = LayoutText(f, t.content)
	t.dirty = false
}

// LayoutText places the glyphs of content left to right, breaking lines
// on '\n'. Codepoints missing from the font are drawn as '?' when the font
// has it, and skipped otherwise.
func LayoutText(f *Font, content string) ([]GlyphQuad, math.Vec2) {
	data := f.Data
	quads := make([]GlyphQuad, 0, utf8.RuneCountInString(content))
	var x, width float32
	y := float32(0)

	for i := 0; i < len(content); {
		r, size := utf8.DecodeRuneInString(content[i:])
		i += size

		switch r {
		case '\n':
			x = 0
			y += float32(data.LineHeight)
			continue
		case '\t':
			x += data.TabXAdvance
			width = math32.Max(width, x)
			continue
		case utf8.RuneError:
			r = '?'
		}

		g, ok := data.Glyph(r)
		if !ok {
			if g, ok = data.Glyph('?'); !ok {
				continue
			}
			r = '?'
		}
		if label, ok := f.GlyphLabel(r); ok {
			quads = append(quads, GlyphQuad{
				Codepoint: r,
				Offset:    math.NewVec2(x+float32(g.XOffset), y+float32(g.YOffset)),
				Size:      math.NewVec2(float32(g.Width), float32(g.Height)),
				Label:     label,
			})
		}

		advance := float32(g.XAdvance)
		if next, nextSize := utf8.DecodeRuneInString(content[i:]); nextSize > 0 {
			advance += float32(data.Kerning(r, next))
		}
		x += advance
		width = math32.Max(width, x)
	}

	return quads, math.NewVec2(width, y+float32(data.LineHeight))
}

// glyphInstance places a glyph quad in the world using the text transform.
// The quad is mapped onto the unit rect, which is centered on its origin.
func glyphInstance(t *Text, q GlyphQuad, region metadata.TextureRegion) metadata.InstanceRecord {
	tr := t.Transform
	local := q.Offset.Add(q.Size.MulScalar(0.5)).Mul(tr.Scale.Truncate())
	sin, cos := math32.Sincos(tr.Rotation.Z)
	rotated := math.NewVec2(local.X*cos-local.Y*sin, local.X*sin+local.Y*cos)

	return metadata.InstanceRecord{
		Position: tr.Position.Add(rotated.Extend(0)),
		Rotation: tr.Rotation,
		Scale:    math.NewVec3(q.Size.X*tr.Scale.X, q.Size.Y*tr.Scale.Y, 1),
		Color:    t.Color.Vec4(),
	}.WithRegion(region)
}
