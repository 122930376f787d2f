// Package media loads the overlay video and plays it through a decoder
// subprocess that emits raw RGBA frames.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bryanchriswhite/Silhouette/internal/crop"
)

// Intrinsic size of the bundled video.
const (
	DefaultWidth  = 962
	DefaultHeight = 720
)

// ErrAssetLoad is returned when the video file cannot be used.
var ErrAssetLoad = errors.New("video asset load failed")

var mimeTypes = map[string]string{
	".webm": "video/webm",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".ogv":  "video/ogg",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
}

// Asset is a video file held fully in memory. It is immutable after
// LoadAsset returns.
type Asset struct {
	Path   string
	Width  int
	Height int
	Mime   string
	data   []byte
}

// LoadAsset reads the whole file. width and height are the encoded
// resolution; the file is not probed.
func LoadAsset(path string, width, height int) (*Asset, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrAssetLoad, width, height)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssetLoad, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrAssetLoad, path)
	}

	mime, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = "application/octet-stream"
	}

	return &Asset{Path: path, Width: width, Height: height, Mime: mime, data: data}, nil
}

// Matroska track codec IDs, stored as plain ASCII in the track header.
var matroskaCodecs = []struct {
	id    []byte
	codec string
}{
	{[]byte("V_VP9"), "vp9"},
	{[]byte("V_VP8"), "vp8"},
}

// codecProbeSize bounds how much of the file is searched for a codec ID.
const codecProbeSize = 64 << 10

// Codec returns "vp8" or "vp9" for a WebM or Matroska file carrying that
// video track, and "" otherwise.
func (a *Asset) Codec() string {
	head := a.data
	if len(head) > codecProbeSize {
		head = head[:codecProbeSize]
	}
	for _, c := range matroskaCodecs {
		if bytes.Contains(head, c.id) {
			return c.codec
		}
	}
	return ""
}

// Bytes returns the file contents. Callers must not modify them.
func (a *Asset) Bytes() []byte { return a.data }

// Size is the intrinsic size used for cropping.
func (a *Asset) Size() crop.Size {
	return crop.Size{Width: float64(a.Width), Height: float64(a.Height)}
}

// DataURL embeds the video as a base64 data URL.
func (a *Asset) DataURL() string {
	return "data:" + a.Mime + ";base64," + base64.StdEncoding.EncodeToString(a.data)
}
