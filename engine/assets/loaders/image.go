package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// ImageLoader decodes png, jpeg, gif, bmp, tiff and webp files into RGBA8.
type ImageLoader struct {
	/** @brief Indicates if the image should be flipped on the y-axis when loaded. */
	FlipY bool
}

func (il *ImageLoader) Load(path string) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := DecodeImage(data, il.FlipY)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &metadata.Resource{
		Name:     path,
		FullPath: path,
		Type:     metadata.ResourceTypeImage,
		Data:     img,
	}, nil
}

func (il *ImageLoader) Unload(res *metadata.Resource) error {
	res.Data = nil
	return nil
}

// DecodeImage decodes an encoded image held in memory.
func DecodeImage(data []byte, flipY bool) (*metadata.ImageResourceData, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidImage, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", core.ErrInvalidImage)
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) || rgba.Stride != b.Dx()*4 {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	pixels := rgba.Pix
	if flipY {
		pixels = flipRows(pixels, b.Dx()*4, b.Dy())
	}
	return &metadata.ImageResourceData{
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
		Pixels: pixels,
	}, nil
}

// PixelsImage wraps raw RGBA8 pixels, checking their length.
func PixelsImage(width, height uint32, pixels []uint8) (*metadata.ImageResourceData, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: size %dx%d", core.ErrInvalidImage, width, height)
	}
	if len(pixels) != int(width)*int(height)*4 {
		return nil, fmt.Errorf("%w: %dx%d needs %d bytes, got %d", core.ErrInvalidImage, width, height, int(width)*int(height)*4, len(pixels))
	}
	return &metadata.ImageResourceData{Width: width, Height: height, Pixels: pixels}, nil
}

func flipRows(pixels []uint8, rowBytes, rows int) []uint8 {
	out := make([]uint8, len(pixels))
	for r := 0; r < rows; r++ {
		copy(out[r*rowBytes:(r+1)*rowBytes], pixels[(rows-1-r)*rowBytes:(rows-r)*rowBytes])
	}
	return out
}
