package mosaic

import (
	"bytes"
	"image"

	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
)

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	webpMagic = []byte("RIFF")
)

// Decode sniffs the container from magic bytes and decodes a tile image.
// PNG and JPEG take the fast path, WEBP goes through chai2010/webp, anything
// else falls back to the registered stdlib decoders.
func Decode(data []byte) (image.Image, error) {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], pngMagic):
		return png.Decode(bytes.NewReader(data))
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return jpeg.Decode(bytes.NewReader(data))
	case len(data) >= 12 && bytes.Equal(data[:4], webpMagic) && bytes.Equal(data[8:12], []byte("WEBP")):
		return webp.Decode(bytes.NewReader(data))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}
