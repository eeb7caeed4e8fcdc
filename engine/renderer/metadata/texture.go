package metadata

/**
 * @brief The location of an image inside a texture atlas. UVs are
 * normalized against the page size and never change once issued.
 */
type TextureRegion struct {
	/** @brief Index of the atlas page holding the image. */
	PageIndex uint32
	/** @brief Left edge of the image in normalized page coordinates. */
	UOffset float32
	/** @brief Top edge of the image in normalized page coordinates. */
	VOffset float32
	/** @brief Normalized width of the image. */
	UScale float32
	/** @brief Normalized height of the image. */
	VScale float32
	/** @brief Width of the image in pixels. */
	Width uint32
	/** @brief Height of the image in pixels. */
	Height uint32
}

// Contains reports whether the normalized coordinate lies inside the region.
func (r TextureRegion) Contains(u, v float32) bool {
	return u >= r.UOffset && u <= r.UOffset+r.UScale &&
		v >= r.VOffset && v <= r.VOffset+r.VScale
}

/**
 * @brief Decoded image, always RGBA8.
 */
type ImageResourceData struct {
	/** @brief The width of the image. */
	Width uint32
	/** @brief The height of the image. */
	Height uint32
	/** @brief Tightly packed RGBA pixels, Width*Height*4 bytes. */
	Pixels []uint8
}
