package systems

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/spaghettifunk/tessera/engine/renderer/headless"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func testRendererConfig() RendererSystemConfig {
	return RendererSystemConfig{
		Name:                 "test",
		Atlas:                AtlasConfig{PageWidth: 1024, PageHeight: 1024, Padding: 2},
		MeshInstanceCapacity: 8,
		DefaultFontSize:      16,
		DecodeWorkers:        2,
	}
}

func newTestRenderer(t *testing.T, config RendererSystemConfig) (*RendererSystem, *headless.Backend) {
	t.Helper()
	backend := headless.New()
	r, err := NewRendererSystem(backend, config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r, backend
}

func solidPixels(w, h uint32, c [4]uint8) []uint8 {
	out := make([]uint8, 0, w*h*4)
	for i := uint32(0); i < w*h; i++ {
		out = append(out, c[0], c[1], c[2], c[3])
	}
	return out
}

func encodePNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func randomPNG(t *testing.T, rng *rand.Rand, minSize, maxSize int) ([]byte, int, int) {
	w := minSize + rng.Intn(maxSize-minSize+1)
	h := minSize + rng.Intn(maxSize-minSize+1)
	c := color.RGBA{R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255}
	return encodePNG(t, w, h, c), w, h
}

func frame(t *testing.T, r *RendererSystem, draw func()) metadata.FrameStats {
	t.Helper()
	require.NoError(t, r.BeginFrame(metadata.ColorBlack))
	draw()
	stats, err := r.Present()
	require.NoError(t, err)
	return stats
}
