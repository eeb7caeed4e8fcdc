package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/**
 * @brief Represents the extents of a 2d object.
 */
type Extents2D struct {
	/** @brief The minimum extents of the object. */
	Min Vec2
	/** @brief The maximum extents of the object. */
	Max Vec2
}

/**
 * @brief Represents a single vertex as uploaded to a geometry buffer.
 * Every field is a fixed size float so the record has a stable binary layout.
 */
type Vertex struct {
	/** @brief The position of the vertex */
	Position Vec3
	/** @brief The colour of the vertex. */
	Colour Vec4
	/** @brief The texture coordinate of the vertex. */
	Texcoord Vec2
}

/**
 * @brief Represents the transform of an object in the world.
 * Rotation holds euler angles in radians; Z is the 2d rotation.
 */
type Transform struct {
	/** @brief The position in the world. */
	Position Vec3
	/** @brief The rotation in the world. */
	Rotation Vec3
	/** @brief The scale in the world. */
	Scale Vec3
}
