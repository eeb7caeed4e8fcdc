package systems

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/assets/loaders"
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Segment count of the cached circle used by FillCircle.
const circleSegments = 48

type RendererSystemConfig struct {
	/** @brief Name used in log lines, usually the window title. */
	Name  string
	Atlas AtlasConfig
	/** @brief Initial instance capacity of every batch. */
	MeshInstanceCapacity int
	/** @brief Presents a batch may stay unused before it is dropped, 0 keeps it. */
	IdleFrameLimit int
	/** @brief Pixel size of the lazily loaded default font. */
	DefaultFontSize float64
	/** @brief Goroutines decoding images in LoadImages. */
	DecodeWorkers int
}

// NewRendererSystemConfig maps the renderer section of the engine
// configuration.
func NewRendererSystemConfig(name string, cfg *core.Config) RendererSystemConfig {
	r := cfg.Renderer
	return RendererSystemConfig{
		Name: name,
		Atlas: AtlasConfig{
			PageWidth:  r.AtlasPageWidth,
			PageHeight: r.AtlasPageHeight,
			Padding:    r.AtlasPadding,
			MaxPages:   r.AtlasMaxPages,
		},
		MeshInstanceCapacity: r.MeshInstanceCapacity,
		IdleFrameLimit:       r.IdleFrameLimit,
		DefaultFontSize:      r.DefaultFontSize,
		DecodeWorkers:        4,
	}
}

// ImageSource is an encoded image waiting to be packed.
type ImageSource struct {
	Label metadata.Label
	Data  []byte
}

// RendererSystem is the retained renderer of one window. It owns the
// geometry cache, the texture atlas and the batches, and turns draw calls
// into as few backend draws as possible.
//
// RendererSystem is not safe for concurrent use.
type RendererSystem struct {
	config  RendererSystemConfig
	backend renderer.RendererBackend

	geometry *GeometryCache
	atlas    *TextureAtlas
	batches  *BatchManager
	fonts    *FontSystem
	jobs     *JobSystem

	meshes      *containers.SlotMap[Mesh]
	texts       *containers.SlotMap[Text]
	defaultFont *containers.Handle[Font]

	unitRect   *GeometryBuffer
	unitCircle *GeometryBuffer

	encoder     renderer.CommandEncoder
	clock       *core.Clock
	metrics     *core.FrameMetrics
	frameNumber uint64
	shutdown    bool
}

func NewRendererSystem(backend renderer.RendererBackend, config RendererSystemConfig) (*RendererSystem, error) {
	if config.DecodeWorkers <= 0 {
		config.DecodeWorkers = 1
	}
	jobs, err := NewJobSystem(config.DecodeWorkers, 0)
	if err != nil {
		return nil, err
	}

	atlas := NewTextureAtlas(backend, config.Atlas)
	r := &RendererSystem{
		config:   config,
		backend:  backend,
		geometry: NewGeometryCache(backend),
		atlas:    atlas,
		batches:  NewBatchManager(backend, config.MeshInstanceCapacity, config.IdleFrameLimit),
		fonts:    NewFontSystem(atlas),
		jobs:     jobs,
		meshes:   containers.NewSlotMap[Mesh](),
		texts:    containers.NewSlotMap[Text](),
		clock:    core.NewClock(),
		metrics:  core.NewFrameMetrics(),
	}

	v, i := math.UnitRectGeometry()
	if r.unitRect, err = r.geometry.GetOrCreate(v, i); err != nil {
		jobs.Shutdown()
		return nil, fmt.Errorf("failed to upload the unit rect: %w", err)
	}
	v, i = math.CircleGeometry(0.5, circleSegments)
	if r.unitCircle, err = r.geometry.GetOrCreate(v, i); err != nil {
		jobs.Shutdown()
		return nil, fmt.Errorf("failed to upload the unit circle: %w", err)
	}

	core.LogDebug("renderer '%s' created, atlas pages %dx%d", config.Name, config.Atlas.PageWidth, config.Atlas.PageHeight)
	return r, nil
}

func (r *RendererSystem) Name() string {
	return r.config.Name
}

func (r *RendererSystem) Geometry() *GeometryCache {
	return r.geometry
}

func (r *RendererSystem) Atlas() *TextureAtlas {
	return r.atlas
}

func (r *RendererSystem) Batches() *BatchManager {
	return r.batches
}

func (r *RendererSystem) FrameNumber() uint64 {
	return r.frameNumber
}

// Meshes

func (r *RendererSystem) CreateMesh(geometry GeometryDescriptor, material metadata.Material) (containers.Handle[Mesh], error) {
	g, err := r.geometry.GetOrCreate(geometry.Vertices, geometry.Indices)
	if err != nil {
		core.LogError("renderer '%s': failed to create mesh: %s", r.config.Name, err)
		return containers.Handle[Mesh]{}, err
	}
	return r.meshes.Insert(Mesh{
		Transform: math.TransformCreate(),
		Material:  material,
		Visible:   true,
		geometry:  g,
	}), nil
}

// GetMesh returns the mesh for in place edits. The pointer is only valid
// until the next CreateMesh.
func (r *RendererSystem) GetMesh(h containers.Handle[Mesh]) (*Mesh, bool) {
	return r.meshes.Get(h)
}

func (r *RendererSystem) RemoveMesh(h containers.Handle[Mesh]) bool {
	m, ok := r.meshes.Remove(h)
	if !ok {
		return false
	}
	m.geometry.Release()
	return true
}

func (r *RendererSystem) MeshCount() int {
	return r.meshes.Len()
}

// Texts

func (r *RendererSystem) CreateText(font containers.Handle[Font], content string) (containers.Handle[Text], error) {
	if _, ok := r.fonts.Get(font); !ok {
		return containers.Handle[Text]{}, fmt.Errorf("%w: unknown font %s", core.ErrInvalidFont, font)
	}
	return r.texts.Insert(NewText(font, content)), nil
}

func (r *RendererSystem) GetText(h containers.Handle[Text]) (*Text, bool) {
	return r.texts.Get(h)
}

func (r *RendererSystem) RemoveText(h containers.Handle[Text]) bool {
	_, ok := r.texts.Remove(h)
	return ok
}

// Images

// LoadImage decodes an encoded image and packs it under label. A label
// that is already packed is returned without decoding data.
func (r *RendererSystem) LoadImage(label metadata.Label, data []byte) (metadata.TextureRegion, error) {
	if region, ok := r.atlas.Region(label); ok {
		return region, nil
	}
	img, err := loaders.DecodeImage(data, false)
	if err != nil {
		return metadata.TextureRegion{}, err
	}
	return r.pack(label, img)
}

// LoadPixels packs raw RGBA8 pixels under label.
func (r *RendererSystem) LoadPixels(label metadata.Label, width, height uint32, pixels []uint8) (metadata.TextureRegion, error) {
	if region, ok := r.atlas.Region(label); ok {
		return region, nil
	}
	img, err := loaders.PixelsImage(width, height, pixels)
	if err != nil {
		return metadata.TextureRegion{}, err
	}
	return r.pack(label, img)
}

func (r *RendererSystem) pack(label metadata.Label, img *metadata.ImageResourceData) (metadata.TextureRegion, error) {
	region, err := r.atlas.Add(label, img.Width, img.Height, img.Pixels)
	if err != nil {
		core.LogWarn("renderer '%s': failed to pack %s (%dx%d): %s", r.config.Name, label, img.Width, img.Height, err)
		return metadata.TextureRegion{}, err
	}
	return region, nil
}

// LoadImages decodes every source on the worker pool, then packs them in
// order. Sources that fail keep a zero region and their error is joined
// into the returned error.
func (r *RendererSystem) LoadImages(sources []ImageSource) ([]metadata.TextureRegion, error) {
	if r.shutdown {
		return nil, core.ErrBackendShutdown
	}
	decoded := make([]*metadata.ImageResourceData, len(sources))
	fns := make([]func() error, len(sources))
	for i, src := range sources {
		i, src := i, src
		fns[i] = func() error {
			if _, ok := r.atlas.regions[src.Label]; ok {
				return nil
			}
			img, err := loaders.DecodeImage(src.Data, false)
			if err != nil {
				return fmt.Errorf("%s: %w", src.Label, err)
			}
			decoded[i] = img
			return nil
		}
	}
	errs := r.jobs.RunAll(fns)

	regions := make([]metadata.TextureRegion, len(sources))
	for i, src := range sources {
		if errs[i] != nil {
			continue
		}
		if decoded[i] == nil {
			regions[i], _ = r.atlas.Region(src.Label)
			continue
		}
		region, err := r.pack(src.Label, decoded[i])
		if err != nil {
			errs[i] = fmt.Errorf("%s: %w", src.Label, err)
			continue
		}
		regions[i] = region
	}
	return regions, errors.Join(errs...)
}

// ReplaceImage swaps the pixels of a packed image, or packs it if the label
// is new.
func (r *RendererSystem) ReplaceImage(label metadata.Label, data []byte) (metadata.TextureRegion, error) {
	img, err := loaders.DecodeImage(data, false)
	if err != nil {
		return metadata.TextureRegion{}, err
	}
	return r.ReplacePixels(label, img.Width, img.Height, img.Pixels)
}

// ReplacePixels is ReplaceImage for raw RGBA8 pixels. Used by hot reload.
func (r *RendererSystem) ReplacePixels(label metadata.Label, width, height uint32, pixels []uint8) (metadata.TextureRegion, error) {
	img, err := loaders.PixelsImage(width, height, pixels)
	if err != nil {
		return metadata.TextureRegion{}, err
	}
	region, err := r.atlas.Replace(label, img.Width, img.Height, img.Pixels)
	if err != nil {
		core.LogWarn("renderer '%s': failed to replace %s: %s", r.config.Name, label, err)
		return metadata.TextureRegion{}, err
	}
	return region, nil
}

func (r *RendererSystem) ImageRegion(label metadata.Label) (metadata.TextureRegion, bool) {
	return r.atlas.Region(label)
}

// Fonts

func (r *RendererSystem) LoadFont(ttf []byte, size float64) (containers.Handle[Font], error) {
	h, err := r.fonts.LoadSystemFont(fmt.Sprintf("font-%d", r.fonts.serial+1), ttf, size)
	if err != nil {
		core.LogError("renderer '%s': failed to load font: %s", r.config.Name, err)
	}
	return h, err
}

// LoadFontFile loads a .ttf, .otf or .fontcfg file.
func (r *RendererSystem) LoadFontFile(path string, size float64) (containers.Handle[Font], error) {
	res, err := (&loaders.SystemFontLoader{}).Load(path)
	if err != nil {
		core.LogError("renderer '%s': failed to load font %s: %s", r.config.Name, path, err)
		return containers.Handle[Font]{}, err
	}
	return r.LoadFontResource(res, size)
}

// LoadBitmapFont loads an AngelCode .fnt file and its pages.
func (r *RendererSystem) LoadBitmapFont(path string) (containers.Handle[Font], error) {
	res, err := (&loaders.BitmapFontLoader{}).Load(path)
	if err != nil {
		core.LogError("renderer '%s': failed to load bitmap font %s: %s", r.config.Name, path, err)
		return containers.Handle[Font]{}, err
	}
	return r.LoadFontResource(res, 0)
}

// LoadFontResource packs a font resource produced by a font loader. size
// only applies to system fonts.
func (r *RendererSystem) LoadFontResource(res *metadata.Resource, size float64) (containers.Handle[Font], error) {
	switch data := res.Data.(type) {
	case *metadata.SystemFontResourceData:
		return r.fonts.LoadSystemFont(data.Name, data.Binary, size)
	case *metadata.BitmapFontResourceData:
		return r.fonts.LoadBitmapFont(data)
	default:
		return containers.Handle[Font]{}, fmt.Errorf("%w: %s is a %s resource", core.ErrInvalidFont, res.Name, res.Type)
	}
}

// DefaultFont returns the embedded Go Regular face, rasterized on first use.
func (r *RendererSystem) DefaultFont() (containers.Handle[Font], error) {
	if r.defaultFont != nil {
		return *r.defaultFont, nil
	}
	h, err := r.fonts.LoadDefaultFont(r.config.DefaultFontSize)
	if err != nil {
		return h, err
	}
	r.defaultFont = &h
	return h, nil
}

// Frame

// BeginFrame opens a frame on the backend. Draw calls are only accepted
// between BeginFrame and Present.
func (r *RendererSystem) BeginFrame(clearColor metadata.Color) error {
	if r.shutdown {
		return core.ErrBackendShutdown
	}
	if r.encoder != nil {
		return core.ErrFrameInProgress
	}
	encoder, err := r.backend.BeginFrame(clearColor)
	if err != nil {
		return fmt.Errorf("renderer '%s': failed to begin frame: %w", r.config.Name, err)
	}
	r.encoder = encoder
	r.clock.Start()
	return nil
}

func (r *RendererSystem) mustBeInFrame(call string) {
	if r.encoder == nil {
		panic(fmt.Sprintf("renderer '%s': %s called outside BeginFrame/Present", r.config.Name, call))
	}
}

// DrawMesh queues a mesh for this frame. It returns false for a stale
// handle. A textured mesh whose image is not packed is drawn untextured.
func (r *RendererSystem) DrawMesh(h containers.Handle[Mesh]) bool {
	r.mustBeInFrame("DrawMesh")
	m, ok := r.meshes.Get(h)
	if !ok {
		core.LogDebug("renderer '%s': DrawMesh with stale handle %s", r.config.Name, h)
		return false
	}
	if !m.Visible {
		return true
	}

	class := m.Material.Class()
	record := m.instance()
	if class == metadata.MaterialClassTextured {
		region, found := r.atlas.Region(m.Material.Texture)
		if found {
			record = record.WithRegion(region)
		} else {
			core.LogWarn("renderer '%s': %s is not loaded, drawing untextured", r.config.Name, m.Material.Texture)
			class = metadata.MaterialClassSolid
		}
	}
	r.batches.Submit(m.geometry, class, record)
	return true
}

// DrawText queues one instance per visible glyph. It returns false when the
// text or its font is gone.
func (r *RendererSystem) DrawText(h containers.Handle[Text]) bool {
	r.mustBeInFrame("DrawText")
	t, ok := r.texts.Get(h)
	if !ok {
		core.LogDebug("renderer '%s': DrawText with stale handle %s", r.config.Name, h)
		return false
	}
	f, ok := r.fonts.Get(t.Font)
	if !ok {
		core.LogWarn("renderer '%s': text %s refers to a removed font", r.config.Name, h)
		return false
	}
	if t.dirty {
		t.layout(f)
	}
	for _, q := range t.glyphs {
		region, found := r.atlas.Region(q.Label)
		if !found {
			continue
		}
		r.batches.Submit(r.unitRect, metadata.MaterialClassText, glyphInstance(t, q, region))
	}
	return true
}

func (r *RendererSystem) submitShape(geometry *GeometryBuffer, center math.Vec2, size math.Vec2, rotation float32, color metadata.Color) {
	record := metadata.NewInstanceRecord(math.TransformFromPositionRotationScale(
		center.Extend(0),
		math.NewVec3(0, 0, rotation),
		size.Extend(1),
	), color)
	r.batches.Submit(geometry, metadata.MaterialClassSolid, record)
}

// FillRect draws a solid rectangle whose top left corner is pos.
func (r *RendererSystem) FillRect(pos, size math.Vec2, color metadata.Color) {
	r.mustBeInFrame("FillRect")
	r.submitShape(r.unitRect, pos.Add(size.MulScalar(0.5)), size, 0, color)
}

func (r *RendererSystem) FillCircle(center math.Vec2, radius float32, color metadata.Color) {
	r.mustBeInFrame("FillCircle")
	d := radius * 2
	r.submitShape(r.unitCircle, center, math.NewVec2(d, d), 0, color)
}

// DrawLine draws a segment as a rotated rectangle of the given thickness.
func (r *RendererSystem) DrawLine(from, to math.Vec2, thickness float32, color metadata.Color) {
	r.mustBeInFrame("DrawLine")
	delta := to.Sub(from)
	length := delta.Length()
	if length == 0 {
		return
	}
	center := from.Add(delta.MulScalar(0.5))
	r.submitShape(r.unitRect, center, math.NewVec2(length, thickness), math32.Atan2(delta.Y, delta.X), color)
}

// StrokeRect outlines a rectangle whose top left corner is pos.
func (r *RendererSystem) StrokeRect(pos, size math.Vec2, thickness float32, color metadata.Color) {
	tl := pos
	tr := pos.Add(math.NewVec2(size.X, 0))
	bl := pos.Add(math.NewVec2(0, size.Y))
	br := pos.Add(size)
	r.DrawLine(tl, tr, thickness, color)
	r.DrawLine(tr, br, thickness, color)
	r.DrawLine(br, bl, thickness, color)
	r.DrawLine(bl, tl, thickness, color)
}

// DrawImage draws a packed image with its top left corner at pos. It
// returns false when label is not packed.
func (r *RendererSystem) DrawImage(label metadata.Label, pos, size math.Vec2, tint metadata.Color) bool {
	r.mustBeInFrame("DrawImage")
	region, ok := r.atlas.Region(label)
	if !ok {
		core.LogDebug("renderer '%s': DrawImage of unknown %s", r.config.Name, label)
		return false
	}
	record := metadata.NewInstanceRecord(math.TransformFromPositionRotationScale(
		pos.Add(size.MulScalar(0.5)).Extend(0),
		math.NewVec3Zero(),
		size.Extend(1),
	), tint).WithRegion(region)
	r.batches.Submit(r.unitRect, metadata.MaterialClassTextured, record)
	return true
}

// Present draws every batch, closes the frame and returns its statistics.
func (r *RendererSystem) Present() (metadata.FrameStats, error) {
	if r.encoder == nil {
		return metadata.FrameStats{}, core.ErrFrameNotStarted
	}
	encoder := r.encoder
	r.encoder = nil

	if r.atlas.PageCount() > 0 {
		encoder.BindTextures(r.atlas.Pages())
	}
	stats, err := r.batches.Present(encoder)
	if err != nil {
		core.LogError("renderer '%s': frame %d aborted: %s", r.config.Name, r.frameNumber, err)
	}
	if endErr := r.backend.EndFrame(encoder); endErr != nil {
		err = errors.Join(err, fmt.Errorf("renderer '%s': failed to end frame: %w", r.config.Name, endErr))
	}

	r.clock.Update()
	r.metrics.Update(r.clock.Elapsed().Seconds())
	r.clock.Stop()
	r.frameNumber++
	return stats, err
}

// Metrics returns the frames per second and the average frame time in
// milliseconds, measured from BeginFrame to Present.
func (r *RendererSystem) Metrics() (fps float64, frameMs float64) {
	return r.metrics.Frame()
}

// Shutdown releases every device resource owned by the renderer, then the
// backend itself.
func (r *RendererSystem) Shutdown() error {
	if r.shutdown {
		return nil
	}
	r.shutdown = true
	r.encoder = nil

	if err := r.jobs.Shutdown(); err != nil {
		return err
	}
	r.batches.Shutdown()
	r.meshes.Clear()
	r.texts.Clear()
	r.fonts.Shutdown()
	r.atlas.Clear()
	r.geometry.Shutdown()

	core.LogDebug("renderer '%s' shut down after %d frames", r.config.Name, r.frameNumber)
	return r.backend.Shutdown()
}
