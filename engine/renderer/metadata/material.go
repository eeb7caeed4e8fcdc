package metadata

import "github.com/spaghettifunk/tessera/engine/math"

/**
 * @brief Describes how a mesh is shaded: a flat tint, optionally
 * multiplied by an atlas image.
 */
type Material struct {
	/** @brief The diffuse colour. */
	Color Color
	/** @brief Atlas image sampled by the mesh, zero for none. */
	Texture Label
}

// Class returns the pipeline class the material is drawn with.
func (m Material) Class() MaterialClass {
	if m.Texture.IsZero() {
		return MaterialClassSolid
	}
	return MaterialClassTextured
}

/**
 * @brief The per instance record uploaded to a batch instance buffer.
 * Only fixed size fields, so the binary layout is stable.
 */
type InstanceRecord struct {
	Position math.Vec3
	Rotation math.Vec3
	Scale    math.Vec3
	Color    math.Vec4
	/** @brief Top left of the sampled atlas area. */
	UVOffset math.Vec2
	/** @brief Size of the sampled atlas area. */
	UVScale math.Vec2
	/** @brief Atlas page sampled by the instance. */
	Page uint32
}

// NewInstanceRecord builds a record sampling the whole unit square of page 0.
func NewInstanceRecord(transform math.Transform, color Color) InstanceRecord {
	return InstanceRecord{
		Position: transform.Position,
		Rotation: transform.Rotation,
		Scale:    transform.Scale,
		Color:    color.Vec4(),
		UVScale:  math.NewVec2One(),
	}
}

// WithRegion points the record at an atlas region.
func (r InstanceRecord) WithRegion(region TextureRegion) InstanceRecord {
	r.UVOffset = math.NewVec2(region.UOffset, region.VOffset)
	r.UVScale = math.NewVec2(region.UScale, region.VScale)
	r.Page = region.PageIndex
	return r
}
