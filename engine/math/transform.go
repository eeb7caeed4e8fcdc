package math

func TransformCreate() Transform {
	return Transform{Scale: NewVec3One()}
}

func TransformFromPosition(position Vec3) Transform {
	return Transform{Position: position, Scale: NewVec3One()}
}

func TransformFromPositionRotationScale(position, rotation, scale Vec3) Transform {
	return Transform{Position: position, Rotation: rotation, Scale: scale}
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
}

func (t *Transform) SetRotation(rotation Vec3) {
	t.Rotation = rotation
}

func (t *Transform) Rotate(rotation Vec3) {
	t.Rotation = t.Rotation.Add(rotation)
}

func (t *Transform) SetScale(scale Vec3) {
	t.Scale = scale
}

func (t *Transform) ScaleBy(scale Vec3) {
	t.Scale = t.Scale.Mul(scale)
}
