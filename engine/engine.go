package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every window and stopped watching assets
	EngineStageShutdown
)

func (s Stage) String() string {
	switch s {
	case EngineStageInitialized:
		return "initialized"
	case EngineStageShuttingDown:
		return "shutting-down"
	case EngineStageShutdown:
		return "shutdown"
	default:
		return "uninitialized"
	}
}

// Engine ties the configuration, the asset manager and one renderer per
// window together. Windows and their devices are created by the caller;
// the engine only receives their backends.
type Engine struct {
	currentStage  Stage
	config        *core.Config
	events        *core.EventBus
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
}

// New configures logging, indexes the asset directory and starts the asset
// watcher when enabled. A nil config uses core.DefaultConfig.
func New(config *core.Config) (*Engine, error) {
	if config == nil {
		config = core.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := core.LogSetLevel(config.Logging.Level); err != nil {
		return nil, err
	}

	am, err := assets.NewAssetManager(config.Assets)
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	if err := am.Initialize(); err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	sm, err := systems.NewSystemManager(config)
	if err != nil {
		_ = am.Shutdown()
		core.LogError(err.Error())
		return nil, err
	}

	core.LogInfo("engine initialized, assets in %s", am.Root())
	return &Engine{
		currentStage:  EngineStageInitialized,
		config:        config,
		events:        core.NewEventBus(),
		assetManager:  am,
		systemManager: sm,
	}, nil
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Config() *core.Config {
	return e.config
}

// Events is the bus window and asset events are fired on.
func (e *Engine) Events() *core.EventBus {
	return e.events
}

func (e *Engine) Assets() *assets.AssetManager {
	return e.assetManager
}

// OpenWindow creates the renderer of a new window drawing through backend.
func (e *Engine) OpenWindow(name string, backend renderer.RendererBackend) (uuid.UUID, error) {
	if e.currentStage != EngineStageInitialized {
		return uuid.Nil, fmt.Errorf("cannot open window '%s': engine is %s", name, e.currentStage)
	}
	id, _, err := e.systemManager.CreateRenderer(name, backend)
	if err != nil {
		core.LogError("failed to open window '%s': %s", name, err)
		return uuid.Nil, err
	}
	e.events.Fire(core.EVENT_CODE_WINDOW_OPENED, e, core.EventContext{Window: id, Name: name})
	return id, nil
}

func (e *Engine) Window(id uuid.UUID) (*systems.RendererSystem, bool) {
	return e.systemManager.Renderer(id)
}

// Windows returns the window ids in creation order.
func (e *Engine) Windows() []uuid.UUID {
	var ids []uuid.UUID
	e.systemManager.Each(func(id uuid.UUID, _ *systems.RendererSystem) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// CloseWindow shuts the renderer of a window down, releasing its device
// resources.
func (e *Engine) CloseWindow(id uuid.UUID) error {
	if err := e.systemManager.DestroyRenderer(id); err != nil {
		return err
	}
	e.events.Fire(core.EVENT_CODE_WINDOW_CLOSED, e, core.EventContext{Window: id})
	return nil
}

func (e *Engine) window(id uuid.UUID) (*systems.RendererSystem, error) {
	r, ok := e.systemManager.Renderer(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownWindow, id)
	}
	return r, nil
}

// ImageLabel is the atlas label an asset path is packed under.
func ImageLabel(path string) metadata.Label {
	return metadata.NewLabel(path)
}

// LoadImage packs an image of the asset directory into the atlas of a
// window. path is relative to the asset directory; the image is labelled
// ImageLabel(path) so that hot reload can find it.
func (e *Engine) LoadImage(window uuid.UUID, path string) (metadata.TextureRegion, error) {
	r, err := e.window(window)
	if err != nil {
		return metadata.TextureRegion{}, err
	}
	label := ImageLabel(path)
	if region, ok := r.ImageRegion(label); ok {
		return region, nil
	}
	res, err := e.loadImage(path)
	if err != nil {
		return metadata.TextureRegion{}, err
	}
	img := res.Data.(*metadata.ImageResourceData)
	return r.LoadPixels(label, img.Width, img.Height, img.Pixels)
}

func (e *Engine) loadImage(path string) (*metadata.Resource, error) {
	res, err := e.assetManager.Load(path)
	if err != nil {
		return nil, err
	}
	if res.Type != metadata.ResourceTypeImage {
		return nil, fmt.Errorf("%w: %s is a %s", core.ErrInvalidImage, path, res.Type)
	}
	return res, nil
}

// LoadFont loads a system or bitmap font of the asset directory into a
// window. size is ignored for bitmap fonts.
func (e *Engine) LoadFont(window uuid.UUID, path string, size float64) (containers.Handle[systems.Font], error) {
	r, err := e.window(window)
	if err != nil {
		return containers.Handle[systems.Font]{}, err
	}
	res, err := e.assetManager.Load(path)
	if err != nil {
		return containers.Handle[systems.Font]{}, err
	}
	return r.LoadFontResource(res, size)
}

// Update applies the queued asset reloads: every window holding a changed
// image gets the new pixels. It returns the number of atlas images replaced.
func (e *Engine) Update() int {
	replaced := 0
	for _, ev := range e.assetManager.DrainReloads() {
		if ev.Type != metadata.ResourceTypeImage {
			core.LogDebug("ignoring change of %s (%s)", ev.Path, ev.Type)
			continue
		}
		label := ImageLabel(ev.Path)

		var holders []uuid.UUID
		e.systemManager.Each(func(id uuid.UUID, r *systems.RendererSystem) bool {
			if _, ok := r.ImageRegion(label); ok {
				holders = append(holders, id)
			}
			return true
		})
		if len(holders) == 0 {
			continue
		}

		res, err := e.loadImage(ev.Path)
		if err != nil {
			core.LogWarn("failed to reload %s: %s", ev.Path, err)
			e.events.Fire(core.EVENT_CODE_ASSET_RELOAD_FAILED, e, core.EventContext{Path: ev.Path, Err: err})
			continue
		}
		img := res.Data.(*metadata.ImageResourceData)
		for _, id := range holders {
			r, ok := e.systemManager.Renderer(id)
			if !ok {
				continue
			}
			if _, err := r.ReplacePixels(label, img.Width, img.Height, img.Pixels); err != nil {
				e.events.Fire(core.EVENT_CODE_ASSET_RELOAD_FAILED, e, core.EventContext{Window: id, Path: ev.Path, Err: err})
				continue
			}
			replaced++
			core.LogDebug("reloaded %s in window '%s'", ev.Path, r.Name())
			e.events.Fire(core.EVENT_CODE_ASSET_RELOADED, e, core.EventContext{Window: id, Path: ev.Path})
		}
	}
	return replaced
}

// Shutdown closes every window and stops the asset watcher.
func (e *Engine) Shutdown() error {
	if e.currentStage != EngineStageInitialized {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})

	var errs []error
	if err := e.systemManager.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := e.assetManager.Shutdown(); err != nil && !errors.Is(err, core.ErrWatcherClosed) {
		errs = append(errs, err)
	}
	e.events.Shutdown()
	e.currentStage = EngineStageShutdown

	core.LogInfo("engine shut down")
	return errors.Join(errs...)
}
