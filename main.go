/*
Headless demo of the engine: opens two windows backed by the in memory
backend, keeps a few thousand retained meshes moving and prints the
frame statistics until interrupted.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chewxy/math32"
	"github.com/google/uuid"
	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/systems"
)

const meshCount = 2000

type scene struct {
	window uuid.UUID
	meshes []containers.Handle[systems.Mesh]
	label  containers.Handle[systems.Text]
}

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	frames := flag.Int("frames", 0, "number of frames to render, 0 runs until interrupted")
	flag.Parse()

	config := core.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = core.LoadConfig(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	e, err := engine.New(config)
	if err != nil {
		panic(err)
	}

	primary, err := setup(e, "primary")
	if err != nil {
		panic(err)
	}
	tools, err := setup(e, "tools")
	if err != nil {
		panic(err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

loop:
	for frame := 0; *frames == 0 || frame < *frames; frame++ {
		select {
		case <-sigCh:
			break loop
		case <-ticker.C:
		}
		e.Update()
		for _, s := range []*scene{primary, tools} {
			if err := render(e, s, frame); err != nil {
				core.LogError("frame %d: %s", frame, err)
			}
		}
	}

	if err := e.Shutdown(); err != nil {
		panic(err)
	}
}

func setup(e *engine.Engine, name string) (*scene, error) {
	id, err := e.OpenWindow(name, headless.New())
	if err != nil {
		return nil, err
	}
	r, _ := e.Window(id)

	s := &scene{window: id}
	quad := systems.RectDescriptor(math.NewVec2(8, 8))
	for i := 0; i < meshCount; i++ {
		color := metadata.ColorFromRGBA8(uint8(i%255), uint8(i*7%255), 200, 255)
		h, err := r.CreateMesh(quad, metadata.Material{Color: color})
		if err != nil {
			return nil, err
		}
		s.meshes = append(s.meshes, h)
	}

	font, err := r.DefaultFont()
	if err != nil {
		return nil, err
	}
	if s.label, err = r.CreateText(font, name); err != nil {
		return nil, err
	}
	return s, nil
}

func render(e *engine.Engine, s *scene, frame int) error {
	r, ok := e.Window(s.window)
	if !ok {
		return core.ErrUnknownWindow
	}
	if err := r.BeginFrame(metadata.ColorBlack); err != nil {
		return err
	}

	t := float32(frame) / 60.0
	for i, h := range s.meshes {
		m, ok := r.GetMesh(h)
		if !ok {
			continue
		}
		angle := t + float32(i)*0.01
		radius := 100 + float32(i%50)*4
		m.Transform.Position = math.NewVec3(400+math32.Cos(angle)*radius, 300+math32.Sin(angle)*radius, 0)
		r.DrawMesh(h)
	}
	r.DrawText(s.label)
	r.FillRect(math.NewVec2(10, 560), math.NewVec2(float32(frame%780), 4), metadata.ColorWhite)

	stats, err := r.Present()
	if err != nil {
		return err
	}
	if frame%60 == 0 {
		fps, ms := r.Metrics()
		core.LogInfo("%s: %d draws, %d instances, %.1f fps, %.2f ms", r.Name(), stats.DrawCalls, stats.Instances, fps, ms)
	}
	return nil
}
