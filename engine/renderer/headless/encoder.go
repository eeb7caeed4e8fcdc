package headless

import (
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

type CommandKind int

const (
	CommandSetPipeline CommandKind = iota
	CommandBindTextures
	CommandBindGeometry
	CommandDrawIndexed
)

// Command is one recorded encoder call. Only the fields of its Kind are set.
type Command struct {
	Kind          CommandKind
	Class         metadata.MaterialClass
	Pages         int
	Vertices      renderer.RenderBuffer
	Indices       renderer.RenderBuffer
	Instances     renderer.RenderBuffer
	IndexCount    uint32
	InstanceCount uint32
}

// Encoder appends every call to Commands.
type Encoder struct {
	ClearColor metadata.Color
	Commands   []Command
}

func (e *Encoder) SetPipeline(class metadata.MaterialClass) {
	e.Commands = append(e.Commands, Command{Kind: CommandSetPipeline, Class: class})
}

func (e *Encoder) BindTextures(pages []renderer.Texture) {
	e.Commands = append(e.Commands, Command{Kind: CommandBindTextures, Pages: len(pages)})
}

func (e *Encoder) BindGeometry(vertices, indices, instances renderer.RenderBuffer) {
	e.Commands = append(e.Commands, Command{
		Kind:      CommandBindGeometry,
		Vertices:  vertices,
		Indices:   indices,
		Instances: instances,
	})
}

func (e *Encoder) DrawIndexed(indexCount, instanceCount uint32) {
	e.Commands = append(e.Commands, Command{
		Kind:          CommandDrawIndexed,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
	})
}
