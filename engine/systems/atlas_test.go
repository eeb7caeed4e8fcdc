package systems

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func newTestAtlas(width, height uint32, maxPages int) (*TextureAtlas, *headless.Backend) {
	backend := headless.New()
	return NewTextureAtlas(backend, AtlasConfig{PageWidth: width, PageHeight: height, Padding: 2, MaxPages: maxPages}), backend
}

func TestAtlasAddComputesRegion(t *testing.T) {
	atlas, _ := newTestAtlas(64, 32, 0)
	assert.Equal(t, 0, atlas.PageCount())

	region, err := atlas.Add(metadata.NewLabel("a"), 16, 8, solidPixels(16, 8, [4]uint8{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Equal(t, metadata.TextureRegion{
		PageIndex: 0,
		UOffset:   2.0 / 64.0,
		VOffset:   2.0 / 32.0,
		UScale:    16.0 / 64.0,
		VScale:    8.0 / 32.0,
		Width:     16,
		Height:    8,
	}, region)
	assert.Equal(t, 1, atlas.PageCount())
	assert.Equal(t, PagePartiallyFilled, atlas.PageState(0))
}

func TestAtlasUploadsPixels(t *testing.T) {
	atlas, _ := newTestAtlas(64, 64, 0)
	label := metadata.NewLabel("red")
	_, err := atlas.Add(label, 4, 4, solidPixels(4, 4, [4]uint8{255, 0, 0, 255}))
	require.NoError(t, err)

	page := atlas.Pages()[0].(*headless.Texture)
	e := atlas.regions[label]
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, page.Pixel(e.x, e.y))
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, page.Pixel(e.x+3, e.y+3))
	assert.Equal(t, [4]uint8{0, 0, 0, 0}, page.Pixel(e.x+4, e.y))
}

func TestAtlasReAddReturnsSameRegion(t *testing.T) {
	atlas, _ := newTestAtlas(64, 64, 0)
	label := metadata.NewLabel("twice")
	first, err := atlas.Add(label, 8, 8, solidPixels(8, 8, [4]uint8{1, 1, 1, 1}))
	require.NoError(t, err)
	second, err := atlas.Add(label, 16, 16, solidPixels(16, 16, [4]uint8{2, 2, 2, 2}))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []metadata.Label{label}, atlas.Labels())
}

func TestAtlasAppendsPagesAndKeepsUVsStable(t *testing.T) {
	atlas, _ := newTestAtlas(64, 64, 0)
	a := metadata.NewLabel("a")
	regionA, err := atlas.Add(a, 60, 60, solidPixels(60, 60, [4]uint8{9, 9, 9, 9}))
	require.NoError(t, err)

	regionB, err := atlas.Add(metadata.NewLabel("b"), 60, 60, solidPixels(60, 60, [4]uint8{8, 8, 8, 8}))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), regionB.PageIndex)
	assert.Equal(t, 2, atlas.PageCount())
	assert.Equal(t, PageFull, atlas.PageState(0))

	got, ok := atlas.Region(a)
	require.True(t, ok)
	assert.Equal(t, regionA, got)
}

func TestAtlasReusesPageAfterTallMiss(t *testing.T) {
	atlas, _ := newTestAtlas(100, 100, 2)

	page, _, _, err := atlas.Allocate(96, 56)
	require.NoError(t, err)
	assert.Equal(t, 0, page)

	page, _, _, err = atlas.Allocate(96, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, PagePartiallyFilled, atlas.PageState(0))

	page, _, _, err = atlas.Allocate(96, 40)
	require.NoError(t, err)
	assert.Equal(t, 1, page)
	assert.Equal(t, PageFull, atlas.PageState(1))

	page, x, y, err := atlas.Allocate(10, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, page)
	assert.Equal(t, [2]uint32{2, 62}, [2]uint32{x, y})
	assert.Equal(t, 2, atlas.PageCount())
}

func TestAtlasRejectsOversizedImages(t *testing.T) {
	atlas, _ := newTestAtlas(64, 64, 0)
	_, err := atlas.Add(metadata.NewLabel("big"), 61, 10, solidPixels(61, 10, [4]uint8{}))
	assert.ErrorIs(t, err, core.ErrAtlasCapacityExceeded)
	assert.Equal(t, 0, atlas.PageCount())
}

func TestAtlasMaxPages(t *testing.T) {
	atlas, _ := newTestAtlas(64, 64, 1)
	_, err := atlas.Add(metadata.NewLabel("a"), 60, 60, solidPixels(60, 60, [4]uint8{}))
	require.NoError(t, err)
	_, err = atlas.Add(metadata.NewLabel("b"), 60, 60, solidPixels(60, 60, [4]uint8{}))
	assert.ErrorIs(t, err, core.ErrAtlasCapacityExceeded)
	_, ok := atlas.Region(metadata.NewLabel("b"))
	assert.False(t, ok)
}

func TestAtlasUploadPanicsOnBadInput(t *testing.T) {
	atlas, _ := newTestAtlas(64, 64, 0)
	_, err := atlas.Add(metadata.NewLabel("a"), 4, 4, solidPixels(4, 4, [4]uint8{}))
	require.NoError(t, err)

	assert.Panics(t, func() { _ = atlas.Upload(0, 0, 0, 4, 4, make([]uint8, 3)) })
	assert.Panics(t, func() { _ = atlas.Upload(0, 62, 0, 4, 4, make([]uint8, 64)) })
	assert.Panics(t, func() { _ = atlas.Upload(3, 0, 0, 1, 1, make([]uint8, 4)) })
}

func TestAtlasReplace(t *testing.T) {
	atlas, _ := newTestAtlas(64, 64, 0)
	label := metadata.NewLabel("hot")
	region, err := atlas.Add(label, 4, 4, solidPixels(4, 4, [4]uint8{1, 1, 1, 255}))
	require.NoError(t, err)

	same, err := atlas.Replace(label, 4, 4, solidPixels(4, 4, [4]uint8{7, 7, 7, 255}))
	require.NoError(t, err)
	assert.Equal(t, region, same)
	e := atlas.regions[label]
	assert.Equal(t, [4]uint8{7, 7, 7, 255}, atlas.Pages()[0].(*headless.Texture).Pixel(e.x, e.y))

	bigger, err := atlas.Replace(label, 8, 8, solidPixels(8, 8, [4]uint8{3, 3, 3, 255}))
	require.NoError(t, err)
	assert.NotEqual(t, region, bigger)
	assert.Equal(t, uint32(8), bigger.Width)
	got, _ := atlas.Region(label)
	assert.Equal(t, bigger, got)
	assert.Len(t, atlas.Labels(), 1)

	fresh, err := atlas.Replace(metadata.NewLabel("new"), 2, 2, solidPixels(2, 2, [4]uint8{}))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), fresh.Height)
}

func TestAtlasUVStabilityUnderRandomLoad(t *testing.T) {
	atlas, _ := newTestAtlas(256, 256, 0)
	rng := rand.New(rand.NewSource(3))

	issued := map[metadata.Label]metadata.TextureRegion{}
	for i := 0; i < 300; i++ {
		w := uint32(1 + rng.Intn(40))
		h := uint32(1 + rng.Intn(40))
		label := metadata.NewLabel(fmt.Sprintf("img-%d", i))
		region, err := atlas.Add(label, w, h, solidPixels(w, h, [4]uint8{uint8(i), 0, 0, 255}))
		require.NoError(t, err)
		issued[label] = region

		for l, want := range issued {
			got, ok := atlas.Region(l)
			require.True(t, ok)
			require.Equal(t, want, got)
		}
	}
	assert.Greater(t, atlas.PageCount(), 1)
}

func TestAtlasStatsAndClear(t *testing.T) {
	atlas, backend := newTestAtlas(64, 64, 0)
	_, err := atlas.Add(metadata.NewLabel("a"), 10, 10, solidPixels(10, 10, [4]uint8{}))
	require.NoError(t, err)

	stats := atlas.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, uint64(100), stats[0].UsedArea)
	assert.Equal(t, uint64(64*64), stats[0].TotalArea)
	assert.Equal(t, 1, stats[0].Shelves)
	assert.Equal(t, uint64(100), atlas.UsedArea())
	assert.Equal(t, 1, backend.Counters().TexturesCreated)

	atlas.Clear()
	assert.Equal(t, 0, atlas.PageCount())
	assert.Empty(t, atlas.Labels())
	_, ok := atlas.Region(metadata.NewLabel("a"))
	assert.False(t, ok)
}
