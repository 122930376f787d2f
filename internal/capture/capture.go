package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
)

// Preview is one captured window as reported by a capture service: a
// window name and an image URL (data: or file:).
type Preview struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Service captures the windows currently on screen. width and height bound
// the size of each returned image.
type Service interface {
	CaptureWindow(ctx context.Context, width, height int) ([]Preview, error)
}

// Backend is a Service that can be probed and named, used by Router.
type Backend interface {
	Service

	// Name returns a human-readable name for this backend
	Name() string

	// Close releases resources held by the backend
	Close() error
}

// PNGDataURL encodes img as a data:image/png;base64 URL.
func PNGDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return DataURL("image/png", buf.Bytes()), nil
}

// DataURL embeds data with the given mime type.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
