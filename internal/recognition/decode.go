package recognition

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/spakin/netpbm"
)

// DecodeImage decodes raster bytes using netpbm first (PPM/PGM/PBM
// screendumps), then the standard decoders (PNG, JPEG)
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	if img, err := netpbm.Decode(bytes.NewReader(data), nil); err == nil {
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	return img, nil
}

// toGray converts an image into a flat row-major luminance buffer
func toGray(img image.Image) (pixels []uint8, width, height int) {
	bounds := img.Bounds()
	width = bounds.Dx()
	height = bounds.Dy()
	pixels = make([]uint8, width*height)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// Standard luma weights, components are 16-bit
			luma := (299*r + 587*g + 114*b) / 1000
			pixels[i] = uint8(luma >> 8)
			i++
		}
	}
	return pixels, width, height
}
