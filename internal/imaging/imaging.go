// Package imaging validates and normalizes uploaded face images before
// they are shipped to the embedding server.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// ErrDecode indicates the submitted bytes are not a valid encoded image.
var ErrDecode = errors.New("invalid image data")

// MaxDimension bounds the longest side of images sent to the extractor.
const MaxDimension = 1024

// Decode checks that data is a valid encoded image (jpeg, png or bmp) and
// returns its decoded form. Images are transient; nothing here persists.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Normalize decodes data and re-encodes it as JPEG, downscaling so the
// longest side fits MaxDimension while keeping aspect ratio. The extractor
// does its own detection; this only bounds the payload size.
func Normalize(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= MaxDimension && height <= MaxDimension {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = MaxDimension
		newHeight = int(float64(height) * float64(MaxDimension) / float64(width))
	} else {
		newHeight = MaxDimension
		newWidth = int(float64(width) * float64(MaxDimension) / float64(height))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}
