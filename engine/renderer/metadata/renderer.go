package metadata

import "fmt"

type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RENDERBUFFER_TYPE_UNKNOWN RenderBufferType = iota
	/** @brief Buffer is used for vertex data. */
	RENDERBUFFER_TYPE_VERTEX
	/** @brief Buffer is used for index data. */
	RENDERBUFFER_TYPE_INDEX
	/** @brief Buffer is used for per instance data. */
	RENDERBUFFER_TYPE_INSTANCE
	/** @brief Buffer is used for staging purposes (i.e. from host-visible to device-local memory) */
	RENDERBUFFER_TYPE_STAGING
)

func (t RenderBufferType) String() string {
	switch t {
	case RENDERBUFFER_TYPE_VERTEX:
		return "vertex"
	case RENDERBUFFER_TYPE_INDEX:
		return "index"
	case RENDERBUFFER_TYPE_INSTANCE:
		return "instance"
	case RENDERBUFFER_TYPE_STAGING:
		return "staging"
	default:
		return "unknown"
	}
}

// MaterialClass selects the pipeline a batch is drawn with.
type MaterialClass uint8

const (
	MaterialClassSolid MaterialClass = iota
	MaterialClassTextured
	MaterialClassText
)

func (c MaterialClass) String() string {
	switch c {
	case MaterialClassSolid:
		return "solid"
	case MaterialClassTextured:
		return "textured"
	case MaterialClassText:
		return "text"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

/**
 * @brief Counters collected while presenting one frame.
 */
type FrameStats struct {
	/** @brief Number of DrawIndexed calls issued. */
	DrawCalls int
	/** @brief Sum of the geometry vertex counts of every draw. */
	Vertices int
	/** @brief Sum of the geometry index counts of every draw. */
	Indices int
	/** @brief Number of instances drawn. */
	Instances int
	/** @brief Number of pipeline binds, the first one included. */
	PipelineSwitches int
	/** @brief Number of instance buffer uploads. */
	InstanceWrites int
	/** @brief Number of instance buffers that had to grow. */
	BufferGrowths int
}

// Add accumulates other into s.
func (s *FrameStats) Add(other FrameStats) {
	s.DrawCalls += other.DrawCalls
	s.Vertices += other.Vertices
	s.Indices += other.Indices
	s.Instances += other.Instances
	s.PipelineSwitches += other.PipelineSwitches
	s.InstanceWrites += other.InstanceWrites
	s.BufferGrowths += other.BufferGrowths
}

func (s FrameStats) String() string {
	return fmt.Sprintf("draws=%d vertices=%d indices=%d instances=%d switches=%d writes=%d growths=%d",
		s.DrawCalls, s.Vertices, s.Indices, s.Instances, s.PipelineSwitches, s.InstanceWrites, s.BufferGrowths)
}
