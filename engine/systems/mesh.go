package systems

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief Raw geometry handed to CreateMesh. */
type GeometryDescriptor struct {
	Vertices []math.Vertex
	Indices  []uint32
}

func RectDescriptor(size math.Vec2) GeometryDescriptor {
	v, i := math.RectGeometry(size)
	return GeometryDescriptor{Vertices: v, Indices: i}
}

func CircleDescriptor(radius float32, segments uint32) GeometryDescriptor {
	v, i := math.CircleGeometry(radius, segments)
	return GeometryDescriptor{Vertices: v, Indices: i}
}

func CubeDescriptor(size float32) GeometryDescriptor {
	v, i := math.CubeGeometry(size)
	return GeometryDescriptor{Vertices: v, Indices: i}
}

/**
 * @brief A retained drawable: shared geometry plus a per mesh transform
 * and material. Transform, Material and Visible may be changed freely
 * between frames.
 */
type Mesh struct {
	Transform math.Transform
	Material  metadata.Material
	Visible   bool

	geometry *GeometryBuffer
}

// Geometry returns the shared buffer the mesh draws.
func (m *Mesh) Geometry() *GeometryBuffer {
	return m.geometry
}

func (m *Mesh) instance() metadata.InstanceRecord {
	return metadata.NewInstanceRecord(m.Transform, m.Material.Color)
}
