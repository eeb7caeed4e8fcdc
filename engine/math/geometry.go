package math

import "github.com/chewxy/math32"

var white = Vec4{1.0, 1.0, 1.0, 1.0}

// RectGeometry builds a quad of the given size centered on the origin,
// wound counter clockwise with texture coordinates covering [0,1].
func RectGeometry(size Vec2) ([]Vertex, []uint32) {
	hw := size.X / 2.0
	hh := size.Y / 2.0

	vertices := []Vertex{
		{Position: Vec3{-hw, -hh, 0}, Colour: white, Texcoord: Vec2{0, 0}},
		{Position: Vec3{hw, -hh, 0}, Colour: white, Texcoord: Vec2{1, 0}},
		{Position: Vec3{hw, hh, 0}, Colour: white, Texcoord: Vec2{1, 1}},
		{Position: Vec3{-hw, hh, 0}, Colour: white, Texcoord: Vec2{0, 1}},
	}
	indices := []uint32{0, 1, 2, 2, 3, 0}
	return vertices, indices
}

// UnitRectGeometry is the 1x1 quad shared by sprites, glyphs and the
// immediate mode shapes. Instances scale it to their final size.
func UnitRectGeometry() ([]Vertex, []uint32) {
	return RectGeometry(NewVec2One())
}

// CircleGeometry builds a triangle fan around the origin. segments below 3
// are raised to 3.
func CircleGeometry(radius float32, segments uint32) ([]Vertex, []uint32) {
	if segments < 3 {
		segments = 3
	}
	vertices := make([]Vertex, 0, segments+1)
	indices := make([]uint32, 0, segments*3)

	vertices = append(vertices, Vertex{Colour: white, Texcoord: Vec2{0.5, 0.5}})
	for i := uint32(0); i < segments; i++ {
		angle := (float32(i) / float32(segments)) * K_PI_2
		x := math32.Cos(angle) * radius
		y := math32.Sin(angle) * radius
		vertices = append(vertices, Vertex{
			Position: Vec3{x, y, 0},
			Colour:   white,
			Texcoord: Vec2{(x/radius + 1.0) * 0.5, (y/radius + 1.0) * 0.5},
		})
	}

	for i := uint32(0); i < segments; i++ {
		next := i + 2
		if next > segments {
			next = 1
		}
		indices = append(indices, 0, i+1, next)
	}
	return vertices, indices
}

// cubeFaces lists, per face, the four corners as signs of the half size.
// Order: front, back, top, bottom, right, left.
var cubeFaces = [6][4]Vec3{
	{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}},
	{{1, -1, -1}, {-1, -1, -1}, {-1, 1, -1}, {1, 1, -1}},
	{{-1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {-1, 1, -1}},
	{{-1, -1, -1}, {1, -1, -1}, {1, -1, 1}, {-1, -1, 1}},
	{{1, -1, 1}, {1, -1, -1}, {1, 1, -1}, {1, 1, 1}},
	{{-1, -1, -1}, {-1, -1, 1}, {-1, 1, 1}, {-1, 1, -1}},
}

// CubeGeometry builds a cube of edge size with 24 vertices, so every face
// gets its own texture coordinates, and 36 indices.
func CubeGeometry(size float32) ([]Vertex, []uint32) {
	s := size / 2.0
	uvs := [4]Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	vertices := make([]Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for f, face := range cubeFaces {
		for c, corner := range face {
			vertices = append(vertices, Vertex{
				Position: corner.MulScalar(s),
				Colour:   white,
				Texcoord: uvs[c],
			})
		}
		base := uint32(f * 4)
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}
