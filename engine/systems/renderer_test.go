package systems

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// regionPixel reads the top left pixel of region from its atlas page.
func regionPixel(r *RendererSystem, region metadata.TextureRegion) [4]uint8 {
	page := r.Atlas().Pages()[region.PageIndex].(*headless.Texture)
	x := uint32(region.UOffset*float32(page.Width()) + 0.5)
	y := uint32(region.VOffset*float32(page.Height()) + 0.5)
	return page.Pixel(x, y)
}

func TestRendererStartsWithSharedShapes(t *testing.T) {
	r, backend := newTestRenderer(t, testRendererConfig())
	assert.Equal(t, 2, r.Geometry().Len())
	assert.Equal(t, 4, backend.LiveBuffers())
	assert.Equal(t, "test", r.Name())
}

func TestRendererPacksManyRandomImages(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	rng := rand.New(rand.NewSource(42))

	type packed struct {
		region metadata.TextureRegion
		x, y   uint32
	}
	var all []packed
	for i := 0; i < 500; i++ {
		data, w, h := randomPNG(t, rng, 5, 70)
		label := metadata.NewLabel(fmt.Sprintf("random/%d", i))
		region, err := r.LoadImage(label, data)
		require.NoError(t, err)
		require.Equal(t, uint32(w), region.Width)
		require.Equal(t, uint32(h), region.Height)

		e := r.Atlas().regions[label]
		for _, other := range all {
			if other.region.PageIndex != region.PageIndex {
				continue
			}
			disjoint := e.x+region.Width <= other.x || other.x+other.region.Width <= e.x ||
				e.y+region.Height <= other.y || other.y+other.region.Height <= e.y
			require.True(t, disjoint, "image %d overlaps an earlier image", i)
		}
		all = append(all, packed{region: region, x: e.x, y: e.y})
	}

	assert.Len(t, r.Atlas().Labels(), 500)
	for _, p := range all {
		assert.True(t, p.region.UOffset >= 0 && p.region.UOffset+p.region.UScale <= 1)
		assert.True(t, p.region.VOffset >= 0 && p.region.VOffset+p.region.VScale <= 1)
	}
}

func TestRendererLoadImageUploadsPixels(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	label := metadata.NewLabel("teal")
	region, err := r.LoadImage(label, encodePNG(t, 12, 7, color.RGBA{R: 0, G: 128, B: 128, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{0, 128, 128, 255}, regionPixel(r, region))

	again, err := r.LoadImage(label, []byte("not decoded"))
	require.NoError(t, err)
	assert.Equal(t, region, again)

	_, err = r.LoadImage(metadata.NewLabel("broken"), []byte("garbage"))
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestRendererLoadPixels(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	region, err := r.LoadPixels(metadata.NewLabel("raw"), 3, 3, solidPixels(3, 3, [4]uint8{5, 6, 7, 8}))
	require.NoError(t, err)
	assert.Equal(t, [4]uint8{5, 6, 7, 8}, regionPixel(r, region))

	_, err = r.LoadPixels(metadata.NewLabel("short"), 3, 3, make([]uint8, 5))
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestRendererLoadImages(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	rng := rand.New(rand.NewSource(7))

	var sources []ImageSource
	for i := 0; i < 20; i++ {
		data, _, _ := randomPNG(t, rng, 4, 32)
		sources = append(sources, ImageSource{Label: metadata.NewLabel(fmt.Sprintf("batch/%d", i)), Data: data})
	}
	sources[5].Data = []byte("broken")

	regions, err := r.LoadImages(sources)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
	require.Len(t, regions, 20)
	for i, region := range regions {
		if i == 5 {
			assert.Zero(t, region)
			continue
		}
		got, ok := r.ImageRegion(sources[i].Label)
		require.True(t, ok)
		assert.Equal(t, got, region)
	}
	// Packing follows the source order.
	assert.Equal(t, sources[0].Label, r.Atlas().Labels()[0])
	assert.Len(t, r.Atlas().Labels(), 19)

	again, err := r.LoadImages(sources[:2])
	require.NoError(t, err)
	assert.Equal(t, regions[:2], again)
}

func TestRendererReplaceImage(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	label := metadata.NewLabel("sprite.png")
	region, err := r.LoadImage(label, encodePNG(t, 8, 8, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)

	replaced, err := r.ReplaceImage(label, encodePNG(t, 8, 8, color.RGBA{B: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, region, replaced)
	assert.Equal(t, [4]uint8{0, 0, 255, 255}, regionPixel(r, region))

	bigger, err := r.ReplaceImage(label, encodePNG(t, 16, 16, color.RGBA{G: 255, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, uint32(16), bigger.Width)
	assert.Equal(t, [4]uint8{0, 255, 0, 255}, regionPixel(r, bigger))

	_, err = r.ReplaceImage(label, []byte("nope"))
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestRendererThousandMeshesOneDraw(t *testing.T) {
	r, backend := newTestRenderer(t, testRendererConfig())

	handles := make([]containers.Handle[Mesh], 0, 1000)
	for i := 0; i < 1000; i++ {
		h, err := r.CreateMesh(RectDescriptor(math.NewVec2(32, 32)), metadata.Material{Color: metadata.ColorWhite})
		require.NoError(t, err)
		m, ok := r.GetMesh(h)
		require.True(t, ok)
		m.Transform.SetPosition(math.NewVec3(float32(i), 0, 0))
		handles = append(handles, h)
	}
	assert.Equal(t, 3, r.Geometry().Len())
	assert.Equal(t, 1000, r.MeshCount())

	stats := frame(t, r, func() {
		for _, h := range handles {
			assert.True(t, r.DrawMesh(h))
		}
	})
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 1000, stats.Instances)
	require.Len(t, backend.Draws(), 1)
	assert.Equal(t, uint32(1000), backend.Draws()[0].InstanceCount)
	assert.Equal(t, uint64(1), r.FrameNumber())
}

func TestRendererStaleMeshHandles(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	h, err := r.CreateMesh(CubeDescriptor(1), metadata.Material{Color: metadata.ColorWhite})
	require.NoError(t, err)
	m, _ := r.GetMesh(h)
	g := m.Geometry()
	assert.Equal(t, 1, g.RefCount())

	assert.True(t, r.RemoveMesh(h))
	assert.False(t, r.RemoveMesh(h))
	assert.Equal(t, 0, g.RefCount())

	reused, err := r.CreateMesh(CubeDescriptor(2), metadata.Material{Color: metadata.ColorWhite})
	require.NoError(t, err)
	assert.Equal(t, h.Index(), reused.Index())

	stats := frame(t, r, func() {
		assert.False(t, r.DrawMesh(h))
		assert.True(t, r.DrawMesh(reused))
	})
	assert.Equal(t, 1, stats.Instances)

	_, err = r.CreateMesh(GeometryDescriptor{}, metadata.Material{})
	assert.ErrorIs(t, err, core.ErrInvalidGeometry)
}

func TestRendererInvisibleMeshIsSkipped(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	h, err := r.CreateMesh(CubeDescriptor(1), metadata.Material{Color: metadata.ColorWhite})
	require.NoError(t, err)
	m, _ := r.GetMesh(h)
	m.Visible = false

	stats := frame(t, r, func() {
		assert.True(t, r.DrawMesh(h))
	})
	assert.Equal(t, 0, stats.DrawCalls)
}

func TestRendererTexturedMeshes(t *testing.T) {
	r, backend := newTestRenderer(t, testRendererConfig())
	label := metadata.NewLabel("crate.png")
	region, err := r.LoadImage(label, encodePNG(t, 16, 16, color.RGBA{R: 100, A: 255}))
	require.NoError(t, err)

	textured, err := r.CreateMesh(CubeDescriptor(1), metadata.Material{Color: metadata.ColorWhite, Texture: label})
	require.NoError(t, err)
	missing, err := r.CreateMesh(CubeDescriptor(1), metadata.Material{Color: metadata.ColorWhite, Texture: metadata.NewLabel("missing.png")})
	require.NoError(t, err)

	stats := frame(t, r, func() {
		r.DrawMesh(textured)
		r.DrawMesh(missing)
	})
	assert.Equal(t, 2, stats.DrawCalls)
	assert.Equal(t, 2, stats.PipelineSwitches)

	cube, _ := r.GetMesh(textured)
	b, ok := r.Batches().Batch(BatchKey{Geometry: cube.Geometry().ID(), Class: metadata.MaterialClassTextured})
	require.True(t, ok)
	rec := b.instances.Slice()[0]
	assert.Equal(t, math.NewVec2(region.UOffset, region.VOffset), rec.UVOffset)
	assert.Equal(t, math.NewVec2(region.UScale, region.VScale), rec.UVScale)

	_, ok = r.Batches().Batch(BatchKey{Geometry: cube.Geometry().ID(), Class: metadata.MaterialClassSolid})
	assert.True(t, ok)

	first := backend.LastFrame()[0]
	assert.Equal(t, headless.CommandBindTextures, first.Kind)
	assert.Equal(t, 1, first.Pages)
}

func TestRendererImmediateShapes(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	rectKey := BatchKey{Geometry: r.unitRect.ID(), Class: metadata.MaterialClassSolid}
	circleKey := BatchKey{Geometry: r.unitCircle.ID(), Class: metadata.MaterialClassSolid}

	stats := frame(t, r, func() {
		r.FillRect(math.NewVec2(10, 20), math.NewVec2(30, 40), metadata.ColorWhite)
		r.DrawLine(math.NewVec2(0, 0), math.NewVec2(10, 0), 2, metadata.ColorBlack)
		r.DrawLine(math.NewVec2(3, 3), math.NewVec2(3, 3), 2, metadata.ColorBlack)
		r.FillCircle(math.NewVec2(5, 5), 4, metadata.ColorWhite)
	})
	assert.Equal(t, 2, stats.DrawCalls)
	assert.Equal(t, 3, stats.Instances)

	rects, ok := r.Batches().Batch(rectKey)
	require.True(t, ok)
	records := rects.instances.Slice()
	require.Len(t, records, 2)
	assert.Equal(t, math.NewVec3(25, 40, 0), records[0].Position)
	assert.Equal(t, math.NewVec3(30, 40, 1), records[0].Scale)
	assert.Equal(t, math.NewVec3(5, 0, 0), records[1].Position)
	assert.Equal(t, math.NewVec3(10, 2, 1), records[1].Scale)
	assert.Equal(t, float32(0), records[1].Rotation.Z)

	circles, ok := r.Batches().Batch(circleKey)
	require.True(t, ok)
	assert.Equal(t, math.NewVec3(5, 5, 0), circles.instances.Slice()[0].Position)
	assert.Equal(t, math.NewVec3(8, 8, 1), circles.instances.Slice()[0].Scale)

	stats = frame(t, r, func() {
		r.StrokeRect(math.NewVec2(0, 0), math.NewVec2(10, 10), 1, metadata.ColorWhite)
	})
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 4, stats.Instances)
}

func TestRendererDrawImage(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	label := metadata.NewLabel("icon.png")
	region, err := r.LoadImage(label, encodePNG(t, 10, 10, color.RGBA{G: 10, A: 255}))
	require.NoError(t, err)

	stats := frame(t, r, func() {
		assert.True(t, r.DrawImage(label, math.NewVec2(0, 0), math.NewVec2(20, 20), metadata.ColorWhite))
		assert.True(t, r.DrawImage(label, math.NewVec2(50, 0), math.NewVec2(20, 20), metadata.ColorWhite))
		assert.False(t, r.DrawImage(metadata.NewLabel("unknown"), math.NewVec2(0, 0), math.NewVec2(1, 1), metadata.ColorWhite))
	})
	assert.Equal(t, 1, stats.DrawCalls)
	assert.Equal(t, 2, stats.Instances)

	b, ok := r.Batches().Batch(BatchKey{Geometry: r.unitRect.ID(), Class: metadata.MaterialClassTextured})
	require.True(t, ok)
	rec := b.instances.Slice()[0]
	assert.Equal(t, math.NewVec3(10, 10, 0), rec.Position)
	assert.Equal(t, region.PageIndex, rec.Page)
}

func TestRendererDrawText(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	font, err := r.DefaultFont()
	require.NoError(t, err)
	same, err := r.DefaultFont()
	require.NoError(t, err)
	assert.Equal(t, font, same)

	h, err := r.CreateText(font, "Hi there")
	require.NoError(t, err)

	stats := frame(t, r, func() {
		assert.True(t, r.DrawText(h))
	})
	assert.Equal(t, 1, stats.DrawCalls)
	// The space has no pixels.
	assert.Equal(t, 7, stats.Instances)

	text, ok := r.GetText(h)
	require.True(t, ok)
	text.SetContent("Hello, world")
	stats = frame(t, r, func() {
		assert.True(t, r.DrawText(h))
	})
	assert.Equal(t, 11, stats.Instances)
	assert.Greater(t, text.Bounds().X, float32(0))

	assert.True(t, r.RemoveText(h))
	stats = frame(t, r, func() {
		assert.False(t, r.DrawText(h))
	})
	assert.Equal(t, 0, stats.DrawCalls)

	empty, err := r.CreateText(font, "")
	require.NoError(t, err)
	stats = frame(t, r, func() {
		assert.True(t, r.DrawText(empty))
	})
	assert.Equal(t, 0, stats.Instances)
}

func TestRendererCreateTextRejectsUnknownFont(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	_, err := r.CreateText(containers.Handle[Font]{}, "nothing loaded")
	assert.ErrorIs(t, err, core.ErrInvalidFont)
}

func TestRendererFrameLifecycle(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())

	assert.Panics(t, func() { r.FillRect(math.NewVec2Zero(), math.NewVec2One(), metadata.ColorWhite) })
	assert.Panics(t, func() { r.DrawMesh(containers.Handle[Mesh]{}) })

	_, err := r.Present()
	assert.ErrorIs(t, err, core.ErrFrameNotStarted)

	require.NoError(t, r.BeginFrame(metadata.ColorBlack))
	assert.ErrorIs(t, r.BeginFrame(metadata.ColorBlack), core.ErrFrameInProgress)
	_, err = r.Present()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.FrameNumber())
}

func TestRendererMetrics(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	now := time.Unix(0, 0)
	r.clock = core.NewClockFrom(func() time.Time {
		now = now.Add(20 * time.Millisecond)
		return now
	})

	for i := 0; i < 51; i++ {
		frame(t, r, func() {})
	}
	fps, frameMs := r.Metrics()
	assert.InDelta(t, 20, frameMs, 0.001)
	assert.InDelta(t, 50, fps, 1)
}

func TestRendererShutdown(t *testing.T) {
	r, backend := newTestRenderer(t, testRendererConfig())
	_, err := r.LoadImage(metadata.NewLabel("a"), encodePNG(t, 4, 4, color.RGBA{A: 255}))
	require.NoError(t, err)
	h, err := r.CreateMesh(CubeDescriptor(1), metadata.Material{Color: metadata.ColorWhite})
	require.NoError(t, err)
	frame(t, r, func() { r.DrawMesh(h) })

	require.NoError(t, r.Shutdown())
	assert.Equal(t, 0, backend.LiveBuffers())
	assert.Equal(t, 0, r.MeshCount())
	assert.Equal(t, 0, r.Atlas().PageCount())
	assert.ErrorIs(t, r.BeginFrame(metadata.ColorBlack), core.ErrBackendShutdown)

	regions, err := r.LoadImages([]ImageSource{{Label: metadata.NewLabel("b"), Data: encodePNG(t, 4, 4, color.RGBA{A: 255})}})
	assert.ErrorIs(t, err, core.ErrBackendShutdown)
	assert.Nil(t, regions)
	assert.NoError(t, r.Shutdown())
}

func TestRendererLoadFontFiles(t *testing.T) {
	r, _ := newTestRenderer(t, testRendererConfig())
	dir := t.TempDir()
	path := filepath.Join(dir, "go.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o644))

	h, err := r.LoadFontFile(path, 12)
	require.NoError(t, err)
	text, err := r.CreateText(h, "ok")
	require.NoError(t, err)
	stats := frame(t, r, func() { r.DrawText(text) })
	assert.Equal(t, 2, stats.Instances)

	_, err = r.LoadFontFile(filepath.Join(dir, "missing.ttf"), 12)
	assert.Error(t, err)
	_, err = r.LoadBitmapFont(path)
	assert.ErrorIs(t, err, core.ErrInvalidFont)

	_, err = r.LoadFontResource(&metadata.Resource{Name: "img", Type: metadata.ResourceTypeImage, Data: &metadata.ImageResourceData{}}, 12)
	assert.ErrorIs(t, err, core.ErrInvalidFont)
}
