package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"

	"github.com/disintegration/imaging"
)

// Decode reads a single image from r.
//
// Supported formats are whatever the registered decoders accept (PNG, JPEG,
// GIF, plus BMP and TIFF registered by disintegration/imaging). EXIF
// orientation tags are ignored: pixels are returned in stored order, so
// width and height always match the encoded image.
//
// # Errors
//
//   - Returns error if r cannot be read
//   - Returns error if the data is not a recognized image format
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// Dimensions returns the pixel dimensions of img.
func Dimensions(img image.Image) DimensionsResult {
	bounds := img.Bounds()
	return DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}
