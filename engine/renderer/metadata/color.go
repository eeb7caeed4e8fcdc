package metadata

import "github.com/spaghettifunk/tessera/engine/math"

/** @brief Linear RGBA color, every channel in [0,1]. */
type Color struct {
	R float32
	G float32
	B float32
	A float32
}

var (
	ColorWhite       = Color{1, 1, 1, 1}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorTransparent = Color{0, 0, 0, 0}
)

func NewColor(r, g, b, a float32) Color {
	return Color{R: r, G: g, B: b, A: a}
}

// ColorFromRGBA8 converts 8 bit channels into a Color.
func ColorFromRGBA8(r, g, b, a uint8) Color {
	return Color{
		R: float32(r) / 255.0,
		G: float32(g) / 255.0,
		B: float32(b) / 255.0,
		A: float32(a) / 255.0,
	}
}

func (c Color) Vec4() math.Vec4 {
	return math.NewVec4(c.R, c.G, c.B, c.A)
}
