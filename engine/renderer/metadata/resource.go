package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Unknown file, ignored by the asset manager. */
	ResourceTypeNone ResourceType = iota
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Bitmap font resource type. */
	ResourceTypeBitmapFont
	/** @brief System font resource type. */
	ResourceTypeSystemFont
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeImage:
		return "image"
	case ResourceTypeBitmapFont:
		return "bitmap-font"
	case ResourceTypeSystemFont:
		return "system-font"
	default:
		return "none"
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	Type     ResourceType
	/** @brief The resource data. */
	Data interface{}
}
