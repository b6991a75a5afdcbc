package imaging

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// Blur engines.
const (
	// EngineImaging blurs with disintegration/imaging. sigma is the Gaussian
	// standard deviation in pixels.
	EngineImaging = "imaging"

	// EngineBild blurs with anthonynsimon/bild. sigma is passed as the
	// kernel radius.
	EngineBild = "bild"
)

// BlurOptions configures a Blurrer.
type BlurOptions struct {
	// Sigma is the blur strength. Must be positive.
	Sigma float64

	// Engine is EngineImaging or EngineBild. Empty selects EngineImaging.
	Engine string

	// JPEGQuality is the output quality (1-100). Zero selects 75.
	JPEGQuality int
}

// BlurResult describes a blurred image written to disk.
type BlurResult struct {
	// Path is the output file, relative when the configured directory is.
	Path string `json:"path"`

	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`
}

// Blurrer applies a fixed Gaussian blur and stores results as JPEG files
// named by random UUIDs inside one output directory.
//
// A Blurrer holds no mutable state and is safe for concurrent use.
type Blurrer struct {
	dir     string
	sigma   float64
	engine  string
	quality int
}

// NewBlurrer creates a Blurrer writing into dir. The directory is created
// on first write, not here.
func NewBlurrer(dir string, opts BlurOptions) (*Blurrer, error) {
	if dir == "" {
		return nil, fmt.Errorf("output directory must not be empty")
	}
	if opts.Sigma <= 0 {
		return nil, fmt.Errorf("blur sigma must be positive, got %g", opts.Sigma)
	}
	if opts.Engine == "" {
		opts.Engine = EngineImaging
	}
	if opts.Engine != EngineImaging && opts.Engine != EngineBild {
		return nil, fmt.Errorf("unknown blur engine: %s", opts.Engine)
	}
	if opts.JPEGQuality == 0 {
		opts.JPEGQuality = 75
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		return nil, fmt.Errorf("jpeg quality must be 1-100, got %d", opts.JPEGQuality)
	}

	return &Blurrer{
		dir:     dir,
		sigma:   opts.Sigma,
		engine:  opts.Engine,
		quality: opts.JPEGQuality,
	}, nil
}

// Dir returns the output directory.
func (b *Blurrer) Dir() string {
	return b.dir
}

// Apply returns a blurred copy of img. The source image is not modified
// and the result has the same dimensions.
func (b *Blurrer) Apply(img image.Image) image.Image {
	switch b.engine {
	case EngineBild:
		return blur.Gaussian(img, b.sigma)
	default:
		return imaging.Blur(img, b.sigma)
	}
}

// BlurToFile decodes an image from r, blurs it, and writes it as
// <dir>/<uuid>.jpg, creating dir if it does not exist.
//
// # Errors
//
//   - Returns error if r does not hold a decodable image
//   - Returns error if the directory cannot be created or the file written
func (b *Blurrer) BlurToFile(r io.Reader) (*BlurResult, error) {
	img, err := Decode(r)
	if err != nil {
		return nil, err
	}

	blurred := b.Apply(img)

	if err := os.MkdirAll(b.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(b.dir, uuid.NewString()+".jpg")
	if err := imaging.Save(blurred, path, imaging.JPEGQuality(b.quality)); err != nil {
		return nil, fmt.Errorf("failed to save blurred image: %w", err)
	}

	dims := Dimensions(blurred)
	return &BlurResult{
		Path:   path,
		Width:  dims.Width,
		Height: dims.Height,
	}, nil
}
