package loaders

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// twoRowPNG encodes a 2x2 image with a red top row and a blue bottom row.
func twoRowPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(0, 1, color.NRGBA{B: 255, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(twoRowPNG(t), false)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.Len(t, img.Pixels, 16)
	assert.Equal(t, []uint8{255, 0, 0, 255}, img.Pixels[:4])
	assert.Equal(t, []uint8{0, 0, 255, 255}, img.Pixels[8:12])

	flipped, err := DecodeImage(twoRowPNG(t), true)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 0, 255, 255}, flipped.Pixels[:4])
	assert.Equal(t, []uint8{255, 0, 0, 255}, flipped.Pixels[8:12])

	_, err = DecodeImage([]byte("definitely not an image"), false)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestPixelsImage(t *testing.T) {
	img, err := PixelsImage(1, 2, make([]uint8, 8))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), img.Height)

	_, err = PixelsImage(0, 2, nil)
	assert.ErrorIs(t, err, core.ErrInvalidImage)
	_, err = PixelsImage(2, 2, make([]uint8, 15))
	assert.ErrorIs(t, err, core.ErrInvalidImage)
}

func TestImageLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprite.png")
	require.NoError(t, os.WriteFile(path, twoRowPNG(t), 0o644))

	loader := &ImageLoader{}
	res, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, metadata.ResourceTypeImage, res.Type)
	assert.Equal(t, uint32(2), res.Data.(*metadata.ImageResourceData).Width)
	require.NoError(t, loader.Unload(res))
	assert.Nil(t, res.Data)

	_, err = loader.Load(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSystemFontLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "goregular.ttf"), goregular.TTF, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ui.fontcfg"), []byte("# ui font\nfile=goregular.ttf\nface=Go UI\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nofile.fontcfg"), []byte("face=Nothing\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.ttf"), []byte("garbage"), 0o644))

	loader := &SystemFontLoader{}
	res, err := loader.Load(filepath.Join(dir, "goregular.ttf"))
	require.NoError(t, err)
	assert.Equal(t, "goregular", res.Name)
	assert.Equal(t, goregular.TTF, res.Data.(*metadata.SystemFontResourceData).Binary)

	res, err = loader.Load(filepath.Join(dir, "ui.fontcfg"))
	require.NoError(t, err)
	assert.Equal(t, "Go UI", res.Name)
	assert.Equal(t, filepath.Join(dir, "goregular.ttf"), res.FullPath)

	_, err = loader.Load(filepath.Join(dir, "nofile.fontcfg"))
	assert.ErrorIs(t, err, core.ErrInvalidFont)
	_, err = loader.Load(filepath.Join(dir, "broken.ttf"))
	assert.ErrorIs(t, err, core.ErrInvalidFont)
}

const tinyFNT = `info face="tiny" size=8 bold=0 italic=0 charset="" unicode=1 stretchH=100 smooth=1 aa=1 padding=0,0,0,0 spacing=1,1 outline=0
common lineHeight=10 base=8 scaleW=2 scaleH=2 pages=1 packed=0 alphaChnl=0 redChnl=0 greenChnl=0 blueChnl=0
page id=0 file="tiny_0.png"
chars count=2
char id=97   x=0     y=0     width=2     height=1     xoffset=0     yoffset=1     xadvance=3     page=0  chnl=15
char id=98   x=0     y=1     width=2     height=1     xoffset=0     yoffset=1     xadvance=4     page=0  chnl=15
kernings count=1
kerning first=97  second=98  amount=-1
`

func TestBitmapFontLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.fnt"), []byte(tinyFNT), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny_0.png"), twoRowPNG(t), 0o644))

	loader := &BitmapFontLoader{}
	res, err := loader.Load(filepath.Join(dir, "tiny.fnt"))
	require.NoError(t, err)
	assert.Equal(t, metadata.ResourceTypeBitmapFont, res.Type)

	data := res.Data.(*metadata.BitmapFontResourceData)
	assert.Equal(t, "tiny", data.Data.Face)
	assert.Equal(t, int32(10), data.Data.LineHeight)
	assert.Equal(t, int32(8), data.Data.Baseline)
	require.Len(t, data.Pages, 1)
	assert.Equal(t, uint32(2), data.Pages[0].Image.Width)

	b, ok := data.Data.Glyph('b')
	require.True(t, ok)
	assert.Equal(t, uint16(1), b.Y)
	assert.Equal(t, int16(4), b.XAdvance)
	assert.Equal(t, int16(-1), data.Data.Kerning('a', 'b'))

	require.NoError(t, loader.Unload(res))
	assert.Nil(t, res.Data)

	_, err = loader.Load(filepath.Join(dir, "tiny_0.png"))
	assert.ErrorIs(t, err, core.ErrInvalidFont)
}

func TestParseFontConfig(t *testing.T) {
	file, face, err := parseFontConfig([]byte("\n# comment\nface=First\nface=Second\nfile=a.ttf\n"))
	require.NoError(t, err)
	assert.Equal(t, "a.ttf", file)
	assert.Equal(t, "First", face)
}
