package imaging

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

// newSplitImage returns an image whose left half is black and right half white.
func newSplitImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{0, 0, 0, 255}
			if x >= width/2 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

// encodePNG encodes img as PNG bytes.
func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return buf.Bytes()
}

// encodeJPEGWithOrientation encodes img as JPEG and inserts an EXIF APP1
// segment carrying the given orientation tag right after the SOI marker.
func encodeJPEGWithOrientation(t *testing.T, img image.Image, orientation uint16) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	data := buf.Bytes()

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	binary.Write(&tiff, binary.BigEndian, uint16(42))
	binary.Write(&tiff, binary.BigEndian, uint32(8)) // IFD0 offset
	binary.Write(&tiff, binary.BigEndian, uint16(1)) // entry count
	binary.Write(&tiff, binary.BigEndian, uint16(0x0112))
	binary.Write(&tiff, binary.BigEndian, uint16(3)) // SHORT
	binary.Write(&tiff, binary.BigEndian, uint32(1))
	binary.Write(&tiff, binary.BigEndian, orientation)
	binary.Write(&tiff, binary.BigEndian, uint16(0))
	binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(data[:2]) // SOI
	out.Write([]byte{0xff, 0xe1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(data[2:])
	return out.Bytes()
}

func TestNewBlurrer_Validation(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		opts    BlurOptions
		wantErr bool
	}{
		{"defaults", "out", BlurOptions{Sigma: 5}, false},
		{"bild engine", "out", BlurOptions{Sigma: 5, Engine: EngineBild}, false},
		{"empty dir", "", BlurOptions{Sigma: 5}, true},
		{"zero sigma", "out", BlurOptions{Sigma: 0}, true},
		{"unknown engine", "out", BlurOptions{Sigma: 5, Engine: "opencv"}, true},
		{"quality too high", "out", BlurOptions{Sigma: 5, JPEGQuality: 120}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBlurrer(tt.dir, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewBlurrer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBlurrer_Apply_PreservesDimensions(t *testing.T) {
	src := newSplitImage(64, 40)

	for _, engine := range []string{EngineImaging, EngineBild} {
		t.Run(engine, func(t *testing.T) {
			b, err := NewBlurrer(t.TempDir(), BlurOptions{Sigma: 5, Engine: engine})
			if err != nil {
				t.Fatalf("NewBlurrer failed: %v", err)
			}

			out := b.Apply(src)
			if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 40 {
				t.Errorf("dimensions: got %dx%d, want 64x40", out.Bounds().Dx(), out.Bounds().Dy())
			}

			// The pixel right at the black/white boundary must be a mid tone.
			r, _, _, _ := out.At(32, 20).RGBA()
			if r == 0 || r == 0xffff {
				t.Errorf("boundary pixel not blurred: r=%d", r)
			}

			// Source is untouched.
			sr, _, _, _ := src.At(32, 20).RGBA()
			if sr != 0xffff {
				t.Errorf("source image modified: r=%d", sr)
			}
		})
	}
}

func TestBlurrer_BlurToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blurred_images")
	b, err := NewBlurrer(dir, BlurOptions{Sigma: 5})
	if err != nil {
		t.Fatalf("NewBlurrer failed: %v", err)
	}

	result, err := b.BlurToFile(bytes.NewReader(encodePNG(t, newSplitImage(120, 80))))
	if err != nil {
		t.Fatalf("BlurToFile failed: %v", err)
	}

	if filepath.Dir(result.Path) != dir {
		t.Errorf("output written outside %s: %s", dir, result.Path)
	}
	if !strings.HasSuffix(result.Path, ".jpg") {
		t.Errorf("output should have .jpg suffix: %s", result.Path)
	}
	if result.Width != 120 || result.Height != 80 {
		t.Errorf("result dimensions: got %dx%d, want 120x80", result.Width, result.Height)
	}

	f, err := os.Open(result.Path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		t.Fatalf("output is not a valid image: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format: got %s, want jpeg", format)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 80 {
		t.Errorf("saved dimensions: got %dx%d, want 120x80", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestBlurrer_BlurToFile_UniqueNames(t *testing.T) {
	b, err := NewBlurrer(t.TempDir(), BlurOptions{Sigma: 2})
	if err != nil {
		t.Fatalf("NewBlurrer failed: %v", err)
	}
	data := encodePNG(t, newSplitImage(16, 16))

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		result, err := b.BlurToFile(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("BlurToFile failed: %v", err)
		}
		if seen[result.Path] {
			t.Fatalf("duplicate output path: %s", result.Path)
		}
		seen[result.Path] = true
	}
}

func TestBlurrer_BlurToFile_InvalidImage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	b, err := NewBlurrer(dir, BlurOptions{Sigma: 5})
	if err != nil {
		t.Fatalf("NewBlurrer failed: %v", err)
	}

	if _, err := b.BlurToFile(strings.NewReader("not an image")); err == nil {
		t.Error("BlurToFile should fail for invalid image data")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("output directory should not be created when decoding fails")
	}
}

func TestDecode(t *testing.T) {
	img, err := Decode(bytes.NewReader(encodePNG(t, newSplitImage(30, 20))))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	dims := Dimensions(img)
	if dims.Width != 30 || dims.Height != 20 {
		t.Errorf("dimensions: got %dx%d, want 30x20", dims.Width, dims.Height)
	}

	if _, err := Decode(strings.NewReader("")); err == nil {
		t.Error("Decode should fail for empty input")
	}
}

func TestBlurrer_BlurToFile_IgnoresEXIFOrientation(t *testing.T) {
	data := encodeJPEGWithOrientation(t, newSplitImage(40, 30), 6)

	// The fixture must carry a tag that an orientation-aware decoder honours.
	rotated, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		t.Fatalf("fixture does not decode: %v", err)
	}
	if rotated.Bounds().Dx() != 30 || rotated.Bounds().Dy() != 40 {
		t.Fatalf("fixture orientation tag not recognized: got %dx%d", rotated.Bounds().Dx(), rotated.Bounds().Dy())
	}

	b, err := NewBlurrer(t.TempDir(), BlurOptions{Sigma: 2})
	if err != nil {
		t.Fatalf("NewBlurrer failed: %v", err)
	}

	result, err := b.BlurToFile(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("BlurToFile failed: %v", err)
	}
	if result.Width != 40 || result.Height != 30 {
		t.Errorf("result dimensions: got %dx%d, want 40x30", result.Width, result.Height)
	}

	f, err := os.Open(result.Path)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("output is not a valid image: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 30 {
		t.Errorf("saved dimensions: got %dx%d, want 40x30", cfg.Width, cfg.Height)
	}
}
