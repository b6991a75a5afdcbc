package imaging

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// JPEGDataURLPrefix is stripped from capture payloads before decoding.
const JPEGDataURLPrefix = "data:image/jpeg;base64,"

// DecodeDataURL removes every occurrence of JPEGDataURLPrefix from s,
// drops any character outside the standard base64 alphabet (line breaks and
// spaces in wrapped payloads) and decodes the remainder. The bytes are
// returned as-is; they are not checked to be an image.
func DecodeDataURL(s string) ([]byte, error) {
	payload := strings.Map(keepBase64, strings.ReplaceAll(s, JPEGDataURLPrefix, ""))
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	return data, nil
}

func keepBase64(r rune) rune {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return r
	case r == '+', r == '/', r == '=':
		return r
	}
	return -1
}

// CaptureStore writes decoded captures to disk.
//
// In fixed mode every capture overwrites the same file and the parent
// directory must already exist. In per-request mode each capture gets its
// own <uuid>.jpg inside a directory that is created on demand.
type CaptureStore struct {
	path string
	dir  string
}

// NewFixedCapture returns a store that always writes to path.
func NewFixedCapture(path string) *CaptureStore {
	return &CaptureStore{path: path}
}

// NewPerRequestCapture returns a store that writes a new file per capture
// inside dir.
func NewPerRequestCapture(dir string) *CaptureStore {
	return &CaptureStore{dir: dir}
}

// Save decodes a data URL (or bare base64) payload and writes it out,
// returning the path written.
func (c *CaptureStore) Save(dataURL string) (string, error) {
	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	path := c.path
	if path == "" {
		if err := os.MkdirAll(c.dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create capture directory: %w", err)
		}
		path = filepath.Join(c.dir, uuid.NewString()+".jpg")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write capture: %w", err)
	}
	return path, nil
}
